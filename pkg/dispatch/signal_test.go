package dispatch

import (
	"context"
	"runtime"
	"sync"
	"testing"

	"github.com/goclaw/dispatch/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSignal(opts ...Option) *Signal {
	return New(append([]Option{WithName("test"), WithLogger(logger.Discard())}, opts...)...)
}

func TestNew_Defaults(t *testing.T) {
	s := New()
	assert.NotEmpty(t, s.ID())
	assert.Contains(t, s.Name(), "signal-")
	assert.Equal(t, 0, s.Len())

	named := New(WithName("user.saved"))
	assert.Equal(t, "user.saved", named.Name())
	assert.NotEqual(t, s.ID(), named.ID())
}

func TestConnect_Idempotent(t *testing.T) {
	s := newTestSignal()
	r := newRecorder("r")

	require.NoError(t, s.Connect(r))
	require.NoError(t, s.Connect(r))
	assert.Equal(t, 1, s.Len())

	_, err := s.Send(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestConnect_SenderIsPartOfKey(t *testing.T) {
	s := newTestSignal()
	r := newRecorder("r")

	require.NoError(t, s.Connect(r, WithSender("users")))
	require.NoError(t, s.Connect(r, WithSender("orders")))
	require.NoError(t, s.Connect(r))
	assert.Equal(t, 3, s.Len())
}

func TestConnect_Tag(t *testing.T) {
	s := newTestSignal()
	first := Func(func(context.Context, *Event) (any, error) { return 1, nil })
	second := Func(func(context.Context, *Event) (any, error) { return 2, nil })

	require.NoError(t, s.Connect(first, WithTag("audit"), Strong()))
	require.NoError(t, s.Connect(second, WithTag("audit"), Strong()))
	assert.Equal(t, 1, s.Len())

	responses, err := s.Send(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1}, responses.Values())
}

func TestConnect_ByQualifiedName(t *testing.T) {
	a := &listener{name: "a"}
	b := &listener{name: "b"}

	s := newTestSignal()
	require.NoError(t, s.Connect(Method(a, (*listener).OnEvent), ByQualifiedName()))
	require.NoError(t, s.Connect(Method(b, (*listener).OnEvent), ByQualifiedName()))
	assert.Equal(t, 1, s.Len())

	byIdentity := newTestSignal()
	require.NoError(t, byIdentity.Connect(Method(a, (*listener).OnEvent)))
	require.NoError(t, byIdentity.Connect(Method(b, (*listener).OnEvent)))
	assert.Equal(t, 2, byIdentity.Len())
}

func TestConnect_BoundMethodDedup(t *testing.T) {
	s := newTestSignal()
	l := &listener{name: "l"}

	require.NoError(t, s.Connect(Method(l, (*listener).OnEvent)))
	require.NoError(t, s.Connect(Method(l, (*listener).OnEvent)))
	require.NoError(t, s.Connect(Method(l, (*listener).OnOther)))
	assert.Equal(t, 2, s.Len())
}

func TestConnect_InvalidReceiver(t *testing.T) {
	s := newTestSignal()

	assert.ErrorIs(t, s.Connect(42), ErrInvalidReceiver)
	assert.ErrorIs(t, s.Connect(nil), ErrInvalidReceiver)
	assert.ErrorIs(t, s.Connect(func() {}), ErrInvalidReceiver)
	assert.Equal(t, 0, s.Len())
}

func TestConnect_ClosuresFromOneLiteral(t *testing.T) {
	s := newTestSignal()
	handler := func(name string) Func {
		return func(context.Context, *Event) (any, error) { return name, nil }
	}
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, s.Connect(handler(name), Strong()))
	}
	assert.Equal(t, 3, s.Len())

	fn := handler("d")
	require.NoError(t, s.Connect(fn, Strong()))
	require.NoError(t, s.Connect(fn, Strong()))
	assert.Equal(t, 4, s.Len(), "the same closure connects once")

	responses, err := s.Send(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c", "d"}, responses.Values())
}

func TestConnect_UnsupportedReferenceKind(t *testing.T) {
	s := newTestSignal()

	fn := Func(namedReceiver)
	assert.ErrorIs(t, s.Connect(fn), ErrUnsupportedReferenceKind)
	assert.ErrorIs(t, s.Connect(stateless{}), ErrUnsupportedReferenceKind)
	assert.ErrorIs(t, s.Connect(&stateless{}), ErrUnsupportedReferenceKind)
	assert.ErrorIs(t, s.Connect(Method[listener](nil, (*listener).OnEvent)), ErrUnsupportedReferenceKind)
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Connect(fn, Strong()))
	require.NoError(t, s.Connect(stateless{}, Strong()))
	assert.Equal(t, 2, s.Len())
}

func TestConnect_DefaultWeakOption(t *testing.T) {
	s := newTestSignal(WithDefaultWeak(false))
	require.NoError(t, s.Connect(Func(namedReceiver)))

	assert.ErrorIs(t, s.Connect(AsyncFunc(namedReceiver), Weak(true)), ErrUnsupportedReferenceKind)
	assert.Equal(t, 1, s.Len())
}

func TestDisconnect(t *testing.T) {
	s := newTestSignal()
	r := newRecorder("r")

	assert.False(t, s.Disconnect(r), "never connected")

	require.NoError(t, s.Connect(r))
	assert.True(t, s.Disconnect(r))
	assert.False(t, s.Disconnect(r), "second disconnect")
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.HasListeners(nil))
}

func TestDisconnect_MatchesSenderAndTag(t *testing.T) {
	s := newTestSignal()
	r := newRecorder("r")

	require.NoError(t, s.Connect(r, WithSender("users")))
	assert.False(t, s.Disconnect(r), "registered for a specific sender")
	assert.False(t, s.Disconnect(r, WithSender("orders")))
	assert.True(t, s.Disconnect(r, WithSender("users")))

	require.NoError(t, s.Connect(Func(namedReceiver), WithTag("uid"), Strong()))
	assert.True(t, s.Disconnect(nil, WithTag("uid")))
	assert.Equal(t, 0, s.Len())
}

func TestHasListeners(t *testing.T) {
	s := newTestSignal()
	users := &struct{ name string }{"users"}
	orders := &struct{ name string }{"orders"}
	r := newRecorder("r")

	assert.False(t, s.HasListeners(nil))

	require.NoError(t, s.Connect(r, WithSender(users)))
	assert.True(t, s.HasListeners(users))
	assert.False(t, s.HasListeners(orders))
	assert.False(t, s.HasListeners(nil), "sender-specific receivers do not answer anonymous events")

	require.True(t, s.Disconnect(r, WithSender(users)))
	assert.False(t, s.HasListeners(users))

	a := newAsyncRecorder("a")
	require.NoError(t, s.Connect(a, Strong()))
	assert.True(t, s.HasListeners(nil))
	assert.True(t, s.HasListeners(orders), "any-sender receivers answer every sender")
}

func TestStats(t *testing.T) {
	s := newTestSignal()
	weakly := newRecorder("weak")
	require.NoError(t, s.Connect(weakly))
	require.NoError(t, s.Connect(newAsyncRecorder("async"), Strong()))
	require.NoError(t, s.Connect(Func(namedReceiver), Strong()))

	st := s.Stats()
	runtime.KeepAlive(weakly)
	assert.Equal(t, "test", st.Name)
	assert.Equal(t, s.ID(), st.ID)
	assert.Equal(t, 3, st.Registrations)
	assert.Equal(t, 1, st.Async)
	assert.Equal(t, 1, st.Weak)
	assert.Equal(t, 0, st.Stale)
}

func TestConnectAll(t *testing.T) {
	saved, deleted := newTestSignal(), newTestSignal()
	r := newRecorder("r")

	require.NoError(t, ConnectAll(r, []*Signal{saved, deleted}))
	assert.True(t, saved.HasListeners(nil))
	assert.True(t, deleted.HasListeners(nil))
	runtime.KeepAlive(r)

	assert.ErrorIs(t, ConnectAll(Func(namedReceiver), []*Signal{saved}), ErrUnsupportedReferenceKind)
}

func TestSignal_ConcurrentRegistryAccess(t *testing.T) {
	s := newTestSignal()
	receivers := make([]*recorder, 16)
	for i := range receivers {
		receivers[i] = newRecorder("r")
	}

	var wg sync.WaitGroup
	for _, r := range receivers {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for range 50 {
				_ = s.Connect(r, Strong())
				s.Disconnect(r)
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				_ = s.SendRobust(context.Background(), nil, nil)
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				_ = s.HasListeners(r)
				_ = s.Stats()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, s.Len())
}
