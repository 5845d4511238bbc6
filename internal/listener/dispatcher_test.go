package listener

import (
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/handle"
)

const flushTimeout = 5 * time.Second

// collector records callback deliveries.
type collector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *collector) callback(e event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) snapshot() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event(nil), c.events...)
}

func TestStorage_AddCallbackListener_DeliversOnDispatcher(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	var c collector

	l := s.AddCallbackListener(c.callback)
	require.True(t, l.IsValid())
	s.Activate(l, event.Topic, nil)

	s.NotifyTopic(nil, event.Publish, []event.TopicInfo{topic("/a"), topic("/b")})
	require.True(t, s.WaitForListenerQueue(flushTimeout))

	got := c.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, l, got[0].Listener)
	assert.Equal(t, "/a", got[0].TopicInfo().Name)
	assert.Equal(t, "/b", got[1].TopicInfo().Name)
}

func TestStorage_AddCallbackListener_SharesOneDispatcher(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	var c1, c2 collector

	l1 := s.AddCallbackListener(c1.callback)
	l2 := s.AddCallbackListener(c2.callback)
	s.Activate(l1, event.ValueAll, nil)
	s.Activate(l2, event.LogMessage, nil)

	s.NotifyValue(nil, event.ValueRemote, 0, 0, event.Value{Type: event.TypeDouble, Data: 1.5})
	s.NotifyLog(event.LogMessage, event.LevelInfo, "x.go", 3, "hi")
	require.True(t, s.WaitForListenerQueue(flushTimeout))

	require.Len(t, c1.snapshot(), 1)
	require.Len(t, c2.snapshot(), 1)
	assert.Equal(t, "hi", c2.snapshot()[0].LogMessage().Message)
	assert.Equal(t, 2, s.Stats().Callbacks)
	assert.Equal(t, 1, s.Stats().Pollers)
}

func TestStorage_AddCallbackListener_NilCallbackReturnsInvalid(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)

	assert.False(t, s.AddCallbackListener(nil).IsValid())
}

func TestStorage_Callback_CanRemoveItself(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)

	var (
		mu    sync.Mutex
		calls int
		self  handle.Handle
	)
	l := s.AddCallbackListener(func(event.Event) {
		mu.Lock()
		calls++
		mu.Unlock()
		s.RemoveListener(self)
	})
	self = l
	s.Activate(l, event.ValueAll, nil)

	s.NotifyValue(nil, event.ValueLocal, 0, 0, event.Value{Type: event.TypeInteger, Data: 1})
	s.NotifyValue(nil, event.ValueLocal, 0, 0, event.Value{Type: event.TypeInteger, Data: 2})
	require.True(t, s.WaitForListenerQueue(flushTimeout))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.Stats().Callbacks)
}

func TestStorage_RemoveListener_StopsFutureCallbacks(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	var c collector

	l := s.AddCallbackListener(c.callback)
	s.Activate(l, event.Topic, nil)
	s.NotifyTopic(nil, event.Publish, []event.TopicInfo{topic("/before")})
	require.True(t, s.WaitForListenerQueue(flushTimeout))

	removed := s.RemoveListener(l)
	require.Len(t, removed, 1)
	assert.Equal(t, event.Topic, removed[0].Mask)

	s.NotifyTopic([]handle.Handle{l}, event.Publish, []event.TopicInfo{topic("/after")})
	s.NotifyTopic(nil, event.Publish, []event.TopicInfo{topic("/after")})
	require.True(t, s.WaitForListenerQueue(flushTimeout))

	got := c.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "/before", got[0].TopicInfo().Name)
}

func TestStorage_Callback_PanicIsRecovered(t *testing.T) {
	t.Parallel()
	rec := &countingRecorder{}
	s := newTestStorage(t, WithRecorder(rec))
	var c collector

	bad := s.AddCallbackListener(func(event.Event) { panic("boom") })
	good := s.AddCallbackListener(c.callback)
	s.Activate(bad, event.LogMessage, nil)
	s.Activate(good, event.LogMessage, nil)

	s.NotifyLog(event.LogMessage, event.LevelError, "y.go", 9, "first")
	require.True(t, s.WaitForListenerQueue(flushTimeout))
	s.NotifyLog(event.LogMessage, event.LevelError, "y.go", 9, "second")
	require.True(t, s.WaitForListenerQueue(flushTimeout))

	assert.Len(t, c.snapshot(), 2)
	assert.Equal(t, 2, rec.panics())
}

func TestStorage_WaitForListenerQueue_NoDispatcherReturnsFalse(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)

	assert.False(t, s.WaitForListenerQueue(time.Second))
}

func TestStorage_WaitForListenerQueue_EmptyQueueCompletes(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	var c collector
	s.AddCallbackListener(c.callback)

	assert.True(t, s.WaitForListenerQueue(flushTimeout))
	assert.True(t, s.WaitForListenerQueue(flushTimeout))
}

func TestStorage_WaitForListenerQueue_TimesOutWhileCallbackBlocks(t *testing.T) {
	t.Parallel()
	clk := testclock.NewClock(time.Now())
	s := newTestStorage(t, WithClock(clk))

	entered := make(chan struct{})
	release := make(chan struct{})
	l := s.AddCallbackListener(func(event.Event) {
		close(entered)
		<-release
	})
	s.Activate(l, event.ValueAll, nil)
	s.NotifyValue(nil, event.ValueLocal, 0, 0, event.Value{Type: event.TypeBoolean, Data: true})
	<-entered

	result := make(chan bool)
	go func() { result <- s.WaitForListenerQueue(time.Second) }()

	require.NoError(t, clk.WaitAdvance(time.Second, flushTimeout, 1))
	assert.False(t, <-result)
	close(release)
}

func TestStorage_Close_StopsDispatcher(t *testing.T) {
	t.Parallel()
	s := New(0)
	var c collector

	l := s.AddCallbackListener(c.callback)
	require.True(t, l.IsValid())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.False(t, s.AddCallbackListener(c.callback).IsValid())
	assert.False(t, s.WaitForListenerQueue(time.Second))
}

func TestStorage_Close_WithoutDispatcher(t *testing.T) {
	t.Parallel()
	s := New(0)

	require.NoError(t, s.Close())
	assert.False(t, s.AddCallbackListener(func(event.Event) {}).IsValid())
}

func TestStorage_DestroyListenerPoller_DispatcherPollerRemovesCallbacks(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	var c collector

	l1 := s.AddCallbackListener(c.callback)
	l2 := s.AddCallbackListener(c.callback)
	s.Activate(l1, event.Topic, nil)
	s.Activate(l2, event.ValueAll, nil)

	s.mu.Lock()
	dp := s.dispatcher.poller
	s.mu.Unlock()

	removed := s.DestroyListenerPoller(dp)
	assert.ElementsMatch(t, []Removed{
		{Listener: l1, Mask: event.Topic},
		{Listener: l2, Mask: event.ValueAll},
	}, removed)

	s.NotifyTopic(nil, event.Publish, []event.TopicInfo{topic("/gone")})
	require.True(t, s.WaitForListenerQueue(flushTimeout))
	assert.Empty(t, c.snapshot())

	st := s.Stats()
	assert.Equal(t, 0, st.Listeners)
	assert.Equal(t, 0, st.Callbacks)
	assert.False(t, s.AddCallbackListener(c.callback).IsValid())
}

type countingRecorder struct {
	nopRecorder
	mu       sync.Mutex
	panicked int
}

func (r *countingRecorder) CallbackDone(panicked bool) {
	if !panicked {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panicked++
}

func (r *countingRecorder) panics() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.panicked
}
