package eventemitter

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holmberd/go-vpack/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEventEmitter(t *testing.T) {
	t.Run("Add listener and emit event", func(t *testing.T) {
		e := New[int]()
		var got1, got2 int

		token := e.AddListener("my-event", func(n int) { got1 = n })
		assert.NotZero(t, token, "should return a valid token")
		assert.True(t, e.Emit("my-event", 1), "should return true if listeners are triggered")
		assert.Equal(t, 1, got1)

		token2 := e.AddListener("My-Event", func(n int) { got2 = n })
		assert.NotEqual(t, token, token2, "tokens should be unique")
		assert.True(t, e.Emit("My-Event", 2))
		assert.Equal(t, 2, got2)
		assert.Equal(t, 1, got1, "event names are case sensitive")
	})

	t.Run("Emit event with no listeners", func(t *testing.T) {
		e := New[string]()
		assert.False(t, e.Emit("no-listeners", "x"), "should return false if no listeners exist")
	})

	t.Run("Listeners run in registration order", func(t *testing.T) {
		e := New[string]()
		var order []string
		e.AddListener("ev", func(s string) { order = append(order, "a"+s) })
		e.AddListener("ev", func(s string) { order = append(order, "b"+s) })
		e.Emit("ev", "1")
		assert.Equal(t, []string{"a1", "b1"}, order)
		assert.Equal(t, 2, e.ListenerCount("ev"))
	})

	t.Run("Remove existing listener", func(t *testing.T) {
		e := New[struct{}]()
		called := false
		token := e.AddListener("remove-me", func(struct{}) { called = true })

		assert.True(t, e.RemoveListener("remove-me", token), "should successfully remove listener")
		e.Emit("remove-me", struct{}{})
		assert.False(t, called, "should not call listener after removal")
		assert.False(t, e.RemoveListener("remove-me", token), "should not remove twice")
	})

	t.Run("Listener removes itself while emitting", func(t *testing.T) {
		e := New[int]()
		var calls int
		var token ListenerToken
		token = e.AddListener("once", func(int) {
			calls++
			e.RemoveListener("once", token)
		})
		e.AddListener("once", func(int) { calls++ })

		e.Emit("once", 0)
		assert.Equal(t, 2, calls, "removal does not skip the next listener")
		e.Emit("once", 0)
		assert.Equal(t, 3, calls)
	})

	t.Run("Remove all listeners", func(t *testing.T) {
		e := New[int]()
		e.AddListener("cleanup", func(int) {})
		e.AddListener("cleanup", func(int) {})

		assert.True(t, e.RemoveAllListeners("cleanup"))
		assert.False(t, e.Emit("cleanup", 0), "should return false after all listeners are removed")
		assert.False(t, e.RemoveAllListeners("ghost"))
	})

	t.Run("Emit concurrent events", func(t *testing.T) {
		e := New[int]()
		const numListeners = 100
		const numEmitters = 50
		var wg sync.WaitGroup
		var called atomic.Int32

		for range numListeners {
			e.AddListener("tick", func(n int) { called.Add(int32(n)) })
		}
		for range numEmitters {
			wg.Add(1)
			go func() {
				defer wg.Done()
				e.Emit("tick", 1)
			}()
		}
		testutil.WaitWithTimeout(t, &wg, time.Second)
		assert.Equal(t, numListeners*numEmitters, int(called.Load()), "should have called all listeners for each emit")
	})

	t.Run("Asynchronous listeners", func(t *testing.T) {
		e := New[int]()
		const numListeners = 100
		var wg sync.WaitGroup
		var called atomic.Int32

		for range numListeners {
			e.AddListener("tick", func(int) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					called.Add(1)
				}()
			})
		}
		e.Emit("tick", 0)
		testutil.WaitWithTimeout(t, &wg, time.Second)
		assert.Equal(t, numListeners, int(called.Load()), "should have called each asynchronous listener")
	})
}

func TestEventTarget(t *testing.T) {
	t.Run("Return event name", func(t *testing.T) {
		et := NewEventTarget[int]("my-event")
		assert.Equal(t, "my-event", et.EventName())
	})

	t.Run("Targets share their emitter", func(t *testing.T) {
		e := New[[]string]()
		added := e.Target("added")
		removed := e.Target("removed")

		var got []string
		added.AddListener(func(keys []string) { got = keys })
		assert.False(t, removed.Emit([]string{"x"}), "other events are not triggered")
		assert.True(t, added.Emit([]string{"a", "b"}))
		assert.Equal(t, []string{"a", "b"}, got)
		assert.Equal(t, 1, e.ListenerCount("added"))
	})

	t.Run("Remove listeners", func(t *testing.T) {
		et := NewEventTarget[int]("removable")
		called := false
		token := et.AddListener(func(int) { called = true })
		et.AddListener(func(int) {})
		assert.Equal(t, 2, et.ListenerCount())

		assert.True(t, et.RemoveListener(token))
		et.Emit(1)
		assert.False(t, called, "should not call listener after removal")

		assert.True(t, et.RemoveAllListeners())
		assert.False(t, et.Emit(1), "should not emit after removing all listeners")
	})
}
