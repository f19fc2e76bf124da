package testutil

import (
	"sync"
	"testing"
)

// RunConcurrent calls fn from n goroutines at once and waits for all of
// them; a panicking worker fails the test instead of the binary.
func RunConcurrent(t *testing.T, n int, fn func(workerID int)) {
	t.Helper()

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)

	for i := range n {
		wg.Add(1)

		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("worker %d panicked: %v", i, r)
				}
			}()

			<-start
			fn(i)
		}()
	}

	close(start)
	wg.Wait()
}
