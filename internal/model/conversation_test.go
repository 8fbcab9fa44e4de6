package model

import "testing"

func TestDirectConversationKey(t *testing.T) {
	if DirectConversationKey(1, 2) != DirectConversationKey(2, 1) {
		t.Error("无序用户对键应与参数顺序无关")
	}
	if DirectConversationKey(1, 2) == DirectConversationKey(1, 3) {
		t.Error("不同用户对的键不应相同")
	}
}

// direct_key 建有唯一索引，GROUP 会话必须落 NULL 而不是空串，
// 否则第二个 GROUP 会话就会撞索引建不出来
func TestGroupConversationDirectKeyIsNull(t *testing.T) {
	group := Conversation{Type: ConversationTypeGroup, Name: "周末聚餐"}
	if group.DirectKey != nil {
		t.Errorf("GROUP 会话 direct_key 应为 NULL, got %q", *group.DirectKey)
	}

	key := DirectConversationKey(1, 2)
	direct := Conversation{Type: ConversationTypeDirect, DirectKey: &key}
	if direct.DirectKey == nil || *direct.DirectKey != key {
		t.Errorf("DIRECT 会话 direct_key = %v, want %q", direct.DirectKey, key)
	}
}
