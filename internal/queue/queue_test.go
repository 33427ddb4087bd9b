package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testObservation(content string) domain.Observation {
	return domain.Observation{
		ID:          uuid.New(),
		CapturedAt:  time.Now().UTC(),
		Content:     content,
		ContentType: domain.ContentTypeInputText,
		Source:      "test",
	}
}

func openTestQueue(t *testing.T, min, max int) *Queue {
	t.Helper()
	q, err := Open(Options{
		InMemory:     true,
		MinBatchSize: min,
		MaxBatchSize: max,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestEnqueueDrainConfirm(t *testing.T) {
	q := openTestQueue(t, 2, 10)
	ctx := context.Background()

	first := testObservation("opened editor")
	second := testObservation("ran tests")
	if err := q.Enqueue(ctx, first); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue(ctx, second); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if got := q.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}

	batch, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(batch.Observations) != 2 {
		t.Fatalf("Drain() returned %d observations, want 2", len(batch.Observations))
	}
	if batch.Observations[0].ID != first.ID || batch.Observations[1].ID != second.ID {
		t.Errorf("Drain() order mismatch: got %v then %v", batch.Observations[0].ID, batch.Observations[1].ID)
	}

	if err := q.Confirm(batch.Token); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if got := q.Pending(); got != 0 {
		t.Errorf("Pending() after confirm = %d, want 0", got)
	}
}

func TestDrainWaitsForMinBatch(t *testing.T) {
	q := openTestQueue(t, 3, 10)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testObservation("one")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue(ctx, testObservation("two")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := q.Drain(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Drain() below min batch: error = %v, want deadline exceeded", err)
	}

	done := make(chan *domain.Batch, 1)
	go func() {
		batch, err := q.Drain(ctx)
		if err != nil {
			t.Errorf("Drain() error = %v", err)
			done <- nil
			return
		}
		done <- batch
	}()

	if err := q.Enqueue(ctx, testObservation("three")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	select {
	case batch := <-done:
		if batch == nil {
			t.Fatal("Drain() failed")
		}
		if len(batch.Observations) != 3 {
			t.Errorf("Drain() returned %d observations, want 3", len(batch.Observations))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Drain() did not release after min batch reached")
	}
}

func TestFlushReleasesPartialBatch(t *testing.T) {
	q := openTestQueue(t, 5, 10)
	ctx := context.Background()

	obs := testObservation("lonely")
	if err := q.Enqueue(ctx, obs); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	q.Flush()

	batch, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(batch.Observations) != 1 {
		t.Fatalf("Drain() after flush returned %d observations, want 1", len(batch.Observations))
	}
	if batch.Observations[0].ID != obs.ID {
		t.Errorf("Drain() returned wrong observation")
	}
}

func TestFlushOnEmptyQueue(t *testing.T) {
	q := openTestQueue(t, 5, 10)
	q.Flush()

	batch, err := q.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if !batch.Empty() {
		t.Errorf("Drain() on flushed empty queue = %d observations, want empty", len(batch.Observations))
	}
}

func TestMaxBatchSizeCapsDrain(t *testing.T) {
	q := openTestQueue(t, 2, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(ctx, testObservation("obs")); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	first, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(first.Observations) != 3 {
		t.Errorf("first Drain() = %d observations, want max batch 3", len(first.Observations))
	}

	second, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(second.Observations) != 2 {
		t.Errorf("second Drain() = %d observations, want 2", len(second.Observations))
	}
	if first.Token == second.Token {
		t.Errorf("batches share token %d", first.Token)
	}
}

func TestReplayAfterReopen(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		Dir:          dir,
		MinBatchSize: 5,
		MaxBatchSize: 50,
		Logger:       zap.NewNop(),
	}
	ctx := context.Background()

	q, err := Open(opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	want := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		obs := testObservation("durable")
		want = append(want, obs.ID)
		if err := q.Enqueue(ctx, obs); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	// Drain without confirming, then crash.
	if _, err := q.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	q, err = Open(opts)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer q.Close()

	if got := q.Pending(); got != 5 {
		t.Fatalf("Pending() after reopen = %d, want 5", got)
	}
	batch, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain() after reopen error = %v", err)
	}
	if len(batch.Observations) != 5 {
		t.Fatalf("replayed %d observations, want 5", len(batch.Observations))
	}
	for i, obs := range batch.Observations {
		if obs.ID != want[i] {
			t.Errorf("replayed observation %d = %s, want %s", i, obs.ID, want[i])
		}
	}

	if err := q.Confirm(batch.Token); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	q, err = Open(opts)
	if err != nil {
		t.Fatalf("second reopen error = %v", err)
	}
	defer q.Close()
	if got := q.Pending(); got != 0 {
		t.Errorf("Pending() after confirmed close = %d, want 0", got)
	}
}

func TestConfirmUnknownToken(t *testing.T) {
	q := openTestQueue(t, 2, 10)
	if err := q.Confirm(99); err == nil {
		t.Error("Confirm() with unknown token should fail")
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	q := openTestQueue(t, 2, 10)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	err := q.Enqueue(context.Background(), testObservation("late"))
	if !errors.Is(err, domain.ErrQueueClosed) {
		t.Errorf("Enqueue() after close error = %v, want ErrQueueClosed", err)
	}
}
