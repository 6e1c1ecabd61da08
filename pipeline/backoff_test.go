package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestBackoffDuration(t *testing.T) {
	b := Backoff{Initial: 500 * time.Millisecond, Max: 3 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
		{10, 3 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Duration(tt.attempt); got != tt.want {
			t.Errorf("Duration(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDefaults(t *testing.T) {
	var b Backoff
	if got := b.Duration(0); got != 500*time.Millisecond {
		t.Errorf("zero-value Duration(0) = %v, want 500ms", got)
	}
	if got := b.Duration(5); got != 16*time.Second {
		t.Errorf("uncapped Duration(5) = %v, want 16s", got)
	}
}

func TestSleepCtxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Minute); err != context.Canceled {
		t.Errorf("sleepCtx on cancelled context = %v, want context.Canceled", err)
	}
}
