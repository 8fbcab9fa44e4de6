package event

// 领域事件种类
// 种类决定事件投递到哪个 Kafka topic（见 Dispatcher 的 topic 映射）
const (
	KindBill        = "BILL"
	KindTransaction = "TRANSACTION"
	KindSocial      = "SOCIAL"
	KindMessage     = "MESSAGE"
)

// Event 领域事件
//
// 数据变更的处理器只负责产出事件，投递方式（在线直推 / 离线落库通知 /
// 发件箱）由派发器统一决策，变更逻辑与传输层解耦
type Event struct {
	Kind       string  // 事件种类，决定发件箱 topic；为空则不进发件箱
	Key        string  // 发件箱分区键（账单号 / 转账 reference / 会话ID）
	Recipients []int64 // 接收人用户ID

	// 离线落库的通知内容
	Title      string
	Message    string
	NotifyType string
	Metadata   map[string]interface{} // 深链元数据（bill_id / transaction_id / message_id 等）

	// 在线直推的实时帧
	LiveEvent   string
	LivePayload interface{}

	// 投递策略开关
	LiveOnly      bool // 仅在线直推，离线接收人不落库（bill_updated / transaction_received 这类尽力而为信号）
	SkipLive      bool // 不直推（调用方已通过房间广播完成实时投递），只为离线接收人落库
	AlwaysPersist bool // 无论在线与否都落库（账单创建这类非实时事件）
}
