package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunAll(t *testing.T) {
	t.Run("results are positional", func(t *testing.T) {
		tasks := []Task[string]{
			func(ctx context.Context) (string, error) {
				time.Sleep(30 * time.Millisecond)
				return "slow", nil
			},
			func(ctx context.Context) (string, error) { return "fast", nil },
			func(ctx context.Context) (string, error) { return "mid", nil },
		}

		outcomes, err := RunAll(context.Background(), tasks, 3)
		if err != nil {
			t.Fatalf("RunAll() error = %v", err)
		}
		want := []string{"slow", "fast", "mid"}
		for i, o := range outcomes {
			if o.Value != want[i] {
				t.Errorf("outcome %d = %q, want %q", i, o.Value, want[i])
			}
		}
	})

	t.Run("failure does not cancel siblings", func(t *testing.T) {
		var finished atomic.Int32
		tasks := []Task[int]{
			func(ctx context.Context) (int, error) { return 0, errors.New("first failed") },
			func(ctx context.Context) (int, error) {
				select {
				case <-time.After(50 * time.Millisecond):
				case <-ctx.Done():
					return 0, ctx.Err()
				}
				finished.Add(1)
				return 2, nil
			},
			func(ctx context.Context) (int, error) {
				finished.Add(1)
				return 3, nil
			},
		}

		outcomes, err := RunAll(context.Background(), tasks, 3)
		if err == nil {
			t.Fatal("expected joined error")
		}
		var taskErr *TaskError
		if !errors.As(err, &taskErr) || taskErr.Index != 0 {
			t.Errorf("expected TaskError for index 0, got %v", err)
		}
		if finished.Load() != 2 {
			t.Errorf("expected both siblings to finish, got %d", finished.Load())
		}
		if outcomes[1].Value != 2 || outcomes[2].Value != 3 {
			t.Errorf("unexpected outcomes %+v", outcomes)
		}
		if outcomes[0].Err == nil {
			t.Error("outcome 0 should carry its error")
		}
	})

	t.Run("concurrency is bounded", func(t *testing.T) {
		var inFlight, peak atomic.Int32
		task := func(ctx context.Context) (struct{}, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return struct{}{}, nil
		}
		tasks := make([]Task[struct{}], 9)
		for i := range tasks {
			tasks[i] = task
		}

		if _, err := RunAll(context.Background(), tasks, 3); err != nil {
			t.Fatalf("RunAll() error = %v", err)
		}
		if peak.Load() > 3 {
			t.Errorf("peak concurrency %d exceeds limit 3", peak.Load())
		}
	})

	t.Run("panic becomes an error", func(t *testing.T) {
		tasks := []Task[int]{
			func(ctx context.Context) (int, error) { panic("boom") },
			func(ctx context.Context) (int, error) { return 1, nil },
		}
		outcomes, err := RunAll(context.Background(), tasks, 0)
		if err == nil || outcomes[0].Err == nil {
			t.Fatal("expected panic to surface as error")
		}
		if outcomes[1].Value != 1 {
			t.Errorf("sibling outcome = %d", outcomes[1].Value)
		}
	})

	t.Run("empty group", func(t *testing.T) {
		outcomes, err := RunAll[int](context.Background(), nil, 3)
		if err != nil || len(outcomes) != 0 {
			t.Fatalf("RunAll(nil) = %v, %v", outcomes, err)
		}
	})
}
