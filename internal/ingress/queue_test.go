package ingress

import (
	"sync"
	"testing"
)

func TestQueueOrderAndDrain(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) rejected", i)
		}
	}

	select {
	case <-q.Wake():
	default:
		t.Fatal("no wake signal after push")
	}

	got := q.Drain()
	if len(got) != 5 {
		t.Fatalf("drained %d items, want 5", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Errorf("item %d = %d", i, v)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d after drain", q.Len())
	}
	if again := q.Drain(); again != nil {
		t.Errorf("second drain returned %v", again)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := New[int]()
	const producers, each = 8, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	total := 0
	for batch := q.Drain(); batch != nil; batch = q.Drain() {
		total += len(batch)
	}
	if total != producers*each {
		t.Errorf("received %d items, want %d", total, producers*each)
	}
}

func TestQueueClose(t *testing.T) {
	q := New[string]()
	q.Push("kept")
	q.Close()

	if !q.Closed() {
		t.Fatal("Closed() = false after Close")
	}
	if q.Push("dropped") {
		t.Error("Push accepted after Close")
	}
	got := q.Drain()
	if len(got) != 1 || got[0] != "kept" {
		t.Errorf("Drain after Close = %v", got)
	}
}
