package realtime

import (
	"testing"
)

func takeFrame(s *Session) (Frame, bool) {
	select {
	case f := <-s.send:
		return f, true
	default:
		return Frame{}, false
	}
}

func newTestSession(userID int64) *Session {
	return &Session{
		id:     "conn-" + string(rune('a'+userID)),
		userID: userID,
		send:   make(chan Frame, sendBufferSize),
		done:   make(chan struct{}),
	}
}

func TestHubRegisterOverwriteAndStaleUnregister(t *testing.T) {
	hub := NewHub()
	s1 := newTestSession(1)
	s2 := &Session{id: "conn-second", userID: 1, send: make(chan Frame, sendBufferSize), done: make(chan struct{})}

	hub.Register(s1)
	hub.Register(s2)

	id, ok := hub.Lookup(1)
	if !ok || id != s2.id {
		t.Fatalf("Lookup = (%q, %v), 期望新连接 %q", id, ok, s2.id)
	}

	// 旧连接迟到断开不得摘掉新连接
	if hub.Unregister(s1) {
		t.Fatal("旧连接注销不应移除在线条目")
	}
	if !hub.IsOnline(1) {
		t.Fatal("旧连接注销后用户应仍在线")
	}

	if !hub.Unregister(s2) {
		t.Fatal("当前连接注销应移除在线条目")
	}
	if hub.IsOnline(1) {
		t.Fatal("当前连接注销后用户应离线")
	}
}

func TestHubPush(t *testing.T) {
	hub := NewHub()
	s := newTestSession(7)
	hub.Register(s)

	if !hub.Push(7, EventUserStatusChanged, UserStatusData{UserID: 3, Status: StatusOnline}) {
		t.Fatal("在线用户投递应成功")
	}
	frame, ok := takeFrame(s)
	if !ok || frame.Event != EventUserStatusChanged {
		t.Fatalf("收到帧 %+v，期望 %s", frame, EventUserStatusChanged)
	}

	if hub.Push(99, EventUserStatusChanged, nil) {
		t.Fatal("离线用户投递应返回 false")
	}
}

func TestHubRoomBroadcast(t *testing.T) {
	hub := NewHub()
	sender := newTestSession(1)
	member := newTestSession(2)
	outsider := newTestSession(3)
	for _, s := range []*Session{sender, member, outsider} {
		hub.Register(s)
	}
	hub.JoinRoom(10, sender)
	hub.JoinRoom(10, member)

	hub.SendToRoom(10, EventNewMessage, "hello", sender)

	if _, ok := takeFrame(sender); ok {
		t.Fatal("except 指定的会话不应收到广播")
	}
	if frame, ok := takeFrame(member); !ok || frame.Event != EventNewMessage {
		t.Fatalf("房间成员应收到 %s，实际 %+v", EventNewMessage, frame)
	}
	if _, ok := takeFrame(outsider); ok {
		t.Fatal("未入房的会话不应收到广播")
	}

	hub.LeaveRoom(10, member)
	hub.SendToRoom(10, EventNewMessage, "again", nil)
	if _, ok := takeFrame(member); ok {
		t.Fatal("离开房间后不应再收到广播")
	}
}

func TestHubUnregisterCleansRooms(t *testing.T) {
	hub := NewHub()
	s := newTestSession(5)
	hub.Register(s)
	hub.JoinRoom(10, s)
	hub.JoinRoom(11, s)

	hub.Unregister(s)

	hub.SendToRoom(10, EventNewMessage, "x", nil)
	hub.SendToRoom(11, EventNewMessage, "x", nil)
	if _, ok := takeFrame(s); ok {
		t.Fatal("注销后不应再留在任何房间")
	}
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub()
	s := newTestSession(1)
	hub.Register(s)

	hub.Shutdown()

	if hub.IsOnline(1) {
		t.Fatal("停机后不应有在线用户")
	}
	if s.Enqueue(Frame{Event: EventNewMessage}) {
		t.Fatal("已关闭的会话不应接受新帧")
	}

	late := newTestSession(2)
	hub.Register(late)
	if hub.IsOnline(2) {
		t.Fatal("停机后不应接受新注册")
	}
}
