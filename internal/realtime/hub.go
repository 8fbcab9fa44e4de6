package realtime

import (
	"log"
	"sync"
)

// Hub 在线连接注册表：userID -> 当前会话，conversationID -> 加入该房间的会话集合
// 同一用户重复注册时覆盖旧条目；注销时仅当存储的会话就是断开的这一个才移除，
// 防止旧连接的迟到断开把新连接的注册摘掉
type Hub struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	rooms    map[int64]map[*Session]struct{}
	closed   bool
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[int64]*Session),
		rooms:    make(map[int64]map[*Session]struct{}),
	}
}

// Register 注册会话，覆盖该用户已有的条目
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.sessions[s.userID] = s
}

// Unregister 注销会话，返回是否真正移除了在线条目
// 旧连接断开时 sessions 里已是新会话，此时不动注册表，仅清理房间成员关系
func (h *Hub) Unregister(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for convID, members := range h.rooms {
		if _, ok := members[s]; ok {
			delete(members, s)
			if len(members) == 0 {
				delete(h.rooms, convID)
			}
		}
	}

	if cur, ok := h.sessions[s.userID]; ok && cur == s {
		delete(h.sessions, s.userID)
		return true
	}
	return false
}

// Lookup 查询用户当前连接 ID
func (h *Hub) Lookup(userID int64) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[userID]
	if !ok {
		return "", false
	}
	return s.id, true
}

// IsOnline 实现 event.Presence
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[userID]
	return ok
}

// Push 向指定用户的当前连接投递一帧，用户离线返回 false
// 实现 event.Presence
func (h *Hub) Push(userID int64, eventName string, payload interface{}) bool {
	h.mu.RLock()
	s, ok := h.sessions[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return s.Enqueue(Frame{Event: eventName, Data: payload})
}

// JoinRoom 将会话加入会话房间
func (h *Hub) JoinRoom(conversationID int64, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	members, ok := h.rooms[conversationID]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[conversationID] = members
	}
	members[s] = struct{}{}
}

// LeaveRoom 将会话移出会话房间
func (h *Hub) LeaveRoom(conversationID int64, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, conversationID)
	}
}

// SendToRoom 向房间内所有会话广播一帧，except 不为 nil 时跳过该会话
func (h *Hub) SendToRoom(conversationID int64, eventName string, payload interface{}, except *Session) {
	h.mu.RLock()
	members := h.rooms[conversationID]
	targets := make([]*Session, 0, len(members))
	for s := range members {
		if s == except {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	frame := Frame{Event: eventName, Data: payload}
	for _, s := range targets {
		if !s.Enqueue(frame) {
			log.Printf("[Hub] 房间广播丢帧: conversation=%d user=%d event=%s", conversationID, s.userID, eventName)
		}
	}
}

// OnlineCount 当前在线用户数
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown 关闭所有在线会话并拒绝后续注册
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[int64]*Session)
	h.rooms = make(map[int64]map[*Session]struct{})
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
