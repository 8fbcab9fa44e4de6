package model

import (
	"errors"
	"testing"
	"time"
)

func participants(paid ...bool) []BillParticipant {
	out := make([]BillParticipant, 0, len(paid))
	for i, p := range paid {
		bp := BillParticipant{UserID: int64(i + 1), Amount: 10}
		if p {
			bp.PaidAmount = 10
			bp.IsPaid = true
		}
		out = append(out, bp)
	}
	return out
}

func TestDeriveBillStatus(t *testing.T) {
	tests := []struct {
		name    string
		current string
		parts   []BillParticipant
		want    string
	}{
		{"无人支付保持 PENDING", BillStatusPending, participants(false, false), BillStatusPending},
		{"部分支付", BillStatusPending, participants(true, false), BillStatusPartiallyPaid},
		{"全部支付", BillStatusPending, participants(true, true), BillStatusPaid},
		{"部分支付后继续部分支付", BillStatusPartiallyPaid, participants(true, false), BillStatusPartiallyPaid},
		{"部分支付后结清", BillStatusPartiallyPaid, participants(true, true), BillStatusPaid},
		{"CANCELLED 不被推导覆盖", BillStatusCancelled, participants(true, true), BillStatusCancelled},
		{"PAID 终态保持", BillStatusPaid, participants(true, false), BillStatusPaid},
		{"OVERDUE 部分支付不清除逾期", BillStatusOverdue, participants(true, false), BillStatusOverdue},
		{"OVERDUE 结清后转 PAID", BillStatusOverdue, participants(true, true), BillStatusPaid},
		{"空参与人列表保持现状", BillStatusPending, nil, BillStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveBillStatus(tt.current, tt.parts)
			if got != tt.want {
				t.Errorf("DeriveBillStatus(%s) = %s, want %s", tt.current, got, tt.want)
			}
			// 幂等：再推导一次结果不变
			again := DeriveBillStatus(got, tt.parts)
			if again != got {
				t.Errorf("推导不幂等: 第一次 %s, 第二次 %s", got, again)
			}
		})
	}
}

func TestApplyPayment(t *testing.T) {
	now := time.Now()

	t.Run("部分支付不翻转 is_paid", func(t *testing.T) {
		p := BillParticipant{Amount: 100}
		if err := p.ApplyPayment(40, now); err != nil {
			t.Fatalf("ApplyPayment: %v", err)
		}
		if p.IsPaid {
			t.Error("部分支付后 is_paid 不应为 true")
		}
		if p.PaidAmount != 40 {
			t.Errorf("paid_amount = %v, want 40", p.PaidAmount)
		}
		if p.PaidAt != nil {
			t.Error("未结清不应记录 paid_at")
		}
	})

	t.Run("累计达到应付金额时翻转", func(t *testing.T) {
		p := BillParticipant{Amount: 100, PaidAmount: 60}
		if err := p.ApplyPayment(40, now); err != nil {
			t.Fatalf("ApplyPayment: %v", err)
		}
		if !p.IsPaid {
			t.Error("结清后 is_paid 应为 true")
		}
		if p.PaidAt == nil || !p.PaidAt.Equal(now) {
			t.Errorf("paid_at = %v, want %v", p.PaidAt, now)
		}
	})

	t.Run("超额支付也算结清", func(t *testing.T) {
		p := BillParticipant{Amount: 100}
		if err := p.ApplyPayment(150, now); err != nil {
			t.Fatalf("ApplyPayment: %v", err)
		}
		if !p.IsPaid {
			t.Error("超额支付后 is_paid 应为 true")
		}
	})

	t.Run("已支付再次支付返回冲突", func(t *testing.T) {
		p := BillParticipant{Amount: 100, PaidAmount: 100, IsPaid: true}
		err := p.ApplyPayment(10, now)
		if !errors.Is(err, ErrAlreadyPaid) {
			t.Fatalf("err = %v, want ErrAlreadyPaid", err)
		}
		if p.PaidAmount != 100 {
			t.Errorf("冲突后 paid_amount 被修改: %v", p.PaidAmount)
		}
	})

	t.Run("非法金额被拒绝", func(t *testing.T) {
		p := BillParticipant{Amount: 100}
		if err := p.ApplyPayment(0, now); !errors.Is(err, ErrInvalidPayment) {
			t.Fatalf("err = %v, want ErrInvalidPayment", err)
		}
		if err := p.ApplyPayment(-5, now); !errors.Is(err, ErrInvalidPayment) {
			t.Fatalf("err = %v, want ErrInvalidPayment", err)
		}
	})
}

func TestValidateParticipantAmounts(t *testing.T) {
	tests := []struct {
		name    string
		total   float64
		amounts []float64
		wantErr bool
	}{
		{"金额一致", 100, []float64{60, 40}, false},
		{"容差范围内", 100, []float64{60, 40.009}, false},
		{"超出容差", 100, []float64{60, 41}, true},
		{"少于总额", 100, []float64{60, 30}, true},
		{"无参与人", 100, nil, true},
		{"金额为零", 100, []float64{100, 0}, true},
		{"负金额", 100, []float64{110, -10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := make([]BillParticipant, 0, len(tt.amounts))
			for i, a := range tt.amounts {
				parts = append(parts, BillParticipant{UserID: int64(i + 1), Amount: a})
			}
			err := ValidateParticipantAmounts(tt.total, parts)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateParticipantAmounts = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCanBillTransitionTo(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{BillStatusPending, BillStatusPartiallyPaid, true},
		{BillStatusPending, BillStatusCancelled, true},
		{BillStatusPending, BillStatusOverdue, true},
		{BillStatusPartiallyPaid, BillStatusPaid, true},
		{BillStatusOverdue, BillStatusPaid, true},
		{BillStatusOverdue, BillStatusPartiallyPaid, false},
		{BillStatusCancelled, BillStatusPending, false},
		{BillStatusCancelled, BillStatusPaid, false},
		{BillStatusPaid, BillStatusCancelled, false},
		{BillStatusPending, BillStatusPending, false},
	}

	for _, tt := range tests {
		if got := CanBillTransitionTo(tt.from, tt.to); got != tt.want {
			t.Errorf("CanBillTransitionTo(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
