package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingBackgrounder struct {
	calls   atomic.Int32
	err     error
	flushed chan struct{}
}

var _ Backgrounder = (*countingBackgrounder)(nil)

func (b *countingBackgrounder) Background(ctx context.Context) error {
	b.calls.Add(1)
	if b.flushed != nil {
		select {
		case b.flushed <- struct{}{}:
		default:
		}
	}
	return b.err
}

func TestStateFlusher_FlushOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "success"},
		{name: "store failure is logged", err: errors.New("bolt: database not open")},
		{name: "disk full", err: errors.New("disk full")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target := &countingBackgrounder{err: tt.err}
			NewStateFlusher(target, time.Minute, zap.NewNop()).FlushOnce(context.Background())
			if target.calls.Load() != 1 {
				t.Errorf("Expected one flush, got %d", target.calls.Load())
			}
		})
	}
}

func TestStateFlusher_Start(t *testing.T) {
	t.Parallel()

	target := &countingBackgrounder{flushed: make(chan struct{}, 1)}
	f := NewStateFlusher(target, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Start(ctx) }()

	select {
	case <-target.flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a periodic flush")
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Start() = %v, want context.Canceled", err)
	}
}

func TestStateFlusher_DisabledInterval(t *testing.T) {
	t.Parallel()

	target := &countingBackgrounder{}
	f := NewStateFlusher(target, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := f.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Start() = %v, want context.DeadlineExceeded", err)
	}
	if target.calls.Load() != 0 {
		t.Errorf("Expected no flushes with interval 0, got %d", target.calls.Load())
	}
}

func TestStateFlusher_StartUntilDeadline(t *testing.T) {
	t.Parallel()

	target := &countingBackgrounder{}
	f := NewStateFlusher(target, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := f.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
	if target.calls.Load() == 0 {
		t.Error("Expected at least one flush")
	}
}
