package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTieredPolicy_Refund(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name  string
		until time.Duration
		want  int64
	}{
		{"2日前は全額", 48 * time.Hour, 7000},
		{"ちょうど24時間前は全額", 24 * time.Hour, 7000},
		{"12時間前は一部返金", 12 * time.Hour, 3500},
		{"ちょうど2時間前は一部返金", 2 * time.Hour, 3500},
		{"1時間前は返金なし", time.Hour, 0},
		{"開始後は返金なし", -time.Minute, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Refund(7000, tt.until))
		})
	}
}

func TestNoRefundPolicy(t *testing.T) {
	assert.Equal(t, int64(0), NoRefundPolicy{}.Refund(7000, 72*time.Hour))
}
