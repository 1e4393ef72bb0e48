package events

import (
	"sync"
	"testing"
	"time"
)

func TestBuffer_PushPop(t *testing.T) {
	buf := NewBuffer[int](10)

	for i := 0; i < 5; i++ {
		if !buf.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	if buf.Len() != 5 {
		t.Errorf("Len() = %d, want 5", buf.Len())
	}

	for i := 0; i < 5; i++ {
		val, ok := buf.Pop()
		if !ok {
			t.Fatalf("Pop() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("popped %d, want %d", val, i)
		}
	}

	if buf.Len() != 0 {
		t.Errorf("Len() = %d after draining, want 0", buf.Len())
	}
}

func TestBuffer_GrowsAndKeepsOrder(t *testing.T) {
	buf := NewBuffer[int](4)

	// Interleave pops so the ring wraps before growing
	buf.Push(-2)
	buf.Push(-1)
	buf.Pop()
	buf.Pop()

	for i := 0; i < 100; i++ {
		if !buf.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	stats := buf.Stats()
	if stats.Pending != 100 {
		t.Errorf("Pending = %d, want 100", stats.Pending)
	}
	if stats.Resizes < 3 {
		t.Errorf("Resizes = %d, expected at least 3", stats.Resizes)
	}

	for i := 0; i < 100; i++ {
		val, ok := buf.Pop()
		if !ok {
			t.Fatalf("Pop() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("popped %d, want %d", val, i)
		}
	}
}

func TestBuffer_BlockingPop(t *testing.T) {
	buf := NewBuffer[int](10)
	got := make(chan int, 1)

	go func() {
		if val, ok := buf.Pop(); ok {
			got <- val
		}
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Push(42)

	select {
	case val := <-got:
		if val != 42 {
			t.Errorf("popped %d, want 42", val)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked Pop")
	}
}

func TestBuffer_Close(t *testing.T) {
	buf := NewBuffer[int](10)
	buf.Push(1)
	buf.Push(2)
	buf.Close()

	if buf.Push(3) {
		t.Error("Push should return false after Close")
	}

	for _, want := range []int{1, 2} {
		val, ok := buf.Pop()
		if !ok || val != want {
			t.Errorf("Pop() = %d, %v; want %d, true", val, ok, want)
		}
	}

	if _, ok := buf.Pop(); ok {
		t.Error("Pop should return false when closed and drained")
	}
}

func TestBuffer_CloseUnblocksPop(t *testing.T) {
	buf := NewBuffer[int](10)
	done := make(chan bool, 1)

	go func() {
		_, ok := buf.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop should return false when closed and empty")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Pop")
	}
}

func TestBuffer_ConcurrentPushPop(t *testing.T) {
	buf := NewBuffer[int](2)
	const n = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			buf.Push(i)
		}
	}()

	for i := 0; i < n; i++ {
		val, ok := buf.Pop()
		if !ok {
			t.Fatalf("Pop() returned false at %d", i)
		}
		if val != i {
			t.Fatalf("popped %d, want %d", val, i)
		}
	}
	wg.Wait()

	stats := buf.Stats()
	if stats.Pushed != n || stats.Popped != n {
		t.Errorf("Pushed/Popped = %d/%d, want %d/%d", stats.Pushed, stats.Popped, n, n)
	}
}
