package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestNextIDUnique(t *testing.T) {
	const n = 10000
	seen := make(map[int64]struct{}, n)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n/4; i++ {
				id := NextID()
				mu.Lock()
				if _, dup := seen[id]; dup {
					t.Errorf("生成了重复ID: %d", id)
				}
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestNextIDMonotonic(t *testing.T) {
	prev := NextID()
	for i := 0; i < 1000; i++ {
		id := NextID()
		if id <= prev {
			t.Fatalf("ID 非递增: prev=%d, next=%d", prev, id)
		}
		prev = id
	}
}

func TestGenerateBillNo(t *testing.T) {
	no := GenerateBillNo()
	if !strings.HasPrefix(no, "BIL") {
		t.Errorf("账单号前缀错误: %s", no)
	}
	if len(no) != 3+14+8 {
		t.Errorf("账单号长度错误: %s (len=%d)", no, len(no))
	}
	if no == GenerateBillNo() && no == GenerateBillNo() {
		t.Error("连续生成的账单号不应全部相同")
	}
}

// 重置令牌必须是随机 UUID，带时间成分的令牌可以被推算出来
func TestGenerateResetTokenRandom(t *testing.T) {
	tok := GenerateResetToken()
	parsed, err := uuid.Parse(tok)
	if err != nil {
		t.Fatalf("令牌不是合法 UUID: %s, err=%v", tok, err)
	}
	if parsed.Version() != 4 {
		t.Errorf("令牌 UUID 版本 = %d, want 4", parsed.Version())
	}
	if tok == GenerateResetToken() {
		t.Error("连续生成的令牌不应相同")
	}
}
