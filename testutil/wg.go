package testutil

import (
	"testing"
	"time"
)

// Waiter is implemented by *sync.WaitGroup.
type Waiter interface {
	Wait()
}

// WaitWithTimeout fails the test if w does not return from Wait within timeout.
func WaitWithTimeout(t testing.TB, w Waiter, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("timeout after %s waiting for %T", timeout, w)
	}
}
