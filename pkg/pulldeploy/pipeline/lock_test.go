package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocker(t *testing.T) {
	t.Run("same key is exclusive", func(t *testing.T) {
		l := NewLocker()
		unlock := l.Lock("/var/www/infra")

		acquired := make(chan struct{})
		go func() {
			unlock := l.Lock("/var/www/infra")
			close(acquired)
			unlock()
		}()

		select {
		case <-acquired:
			t.Fatal("lock acquired twice")
		case <-time.After(50 * time.Millisecond):
		}

		unlock()
		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("lock never handed over")
		}
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		l := NewLocker()
		unlockA := l.Lock("/var/www/a")
		defer unlockA()

		done := make(chan struct{})
		go func() {
			l.Lock("/var/www/b")()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("unrelated key blocked")
		}
	})

	t.Run("unused locks are forgotten", func(t *testing.T) {
		l := NewLocker()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.Lock("/var/www/infra")()
			}()
		}
		wg.Wait()
		assert.Equal(t, 0, l.held())
	})
}
