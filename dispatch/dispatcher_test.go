package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloop/agentloop/core"
	"github.com/agentloop/agentloop/model"
)

func transientErr(backend string) error {
	return &core.BackendError{Backend: backend, Class: core.ClassTransient, Err: errors.New("upstream 503")}
}

func structuralErr(backend string) error {
	return &core.BackendError{Backend: backend, Class: core.ClassStructural, Err: errors.New("invalid api key")}
}

func fastOpts(o *Options) {
	o.BaseDelay = time.Millisecond
	o.MaxDelay = 2 * time.Millisecond
}

func userReq(text string) model.Request {
	return model.Request{Messages: []core.Message{core.NewUserMessage(text)}}
}

func TestDispatcher_RequiresBackends(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestDispatcher_SuccessOnFirstBackend(t *testing.T) {
	a := model.NewMockBackend("a")
	a.AddResponse("hi", "hello")
	d, err := New([]model.Backend{a, model.NewMockBackend("b")}, fastOpts)
	require.NoError(t, err)

	msg, err := d.Call(context.Background(), userReq("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, 1, a.Calls())
	assert.Equal(t, "a", d.Current())
}

func TestDispatcher_TransientRetriesThenSuccess(t *testing.T) {
	a := model.NewMockBackend("a")
	a.FailWith(transientErr("a"), transientErr("a"))
	a.AddResponse("hi", "hello")
	d, err := New([]model.Backend{a}, fastOpts)
	require.NoError(t, err)

	msg, err := d.Call(context.Background(), userReq("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, 3, a.Calls())
}

func TestDispatcher_FallbackRotation(t *testing.T) {
	// A fails transiently on every attempt, B succeeds: A is invoked exactly
	// three times, then B once.
	a := model.NewMockBackend("a")
	a.FailWith(transientErr("a"), transientErr("a"), transientErr("a"))
	b := model.NewMockBackend("b")
	b.AddResponse("hi", "from b")
	c := model.NewMockBackend("c")

	d, err := New([]model.Backend{a, b, c}, fastOpts)
	require.NoError(t, err)

	msg, err := d.Call(context.Background(), userReq("hi"))
	require.NoError(t, err)
	assert.Equal(t, "from b", msg.Content)
	assert.Equal(t, 3, a.Calls())
	assert.Equal(t, 1, b.Calls())
	assert.Equal(t, 0, c.Calls())
}

func TestDispatcher_AllBackendsExhausted(t *testing.T) {
	backends := make([]model.Backend, 0, 3)
	mocks := make([]*model.MockBackend, 0, 3)
	for _, name := range []string{"a", "b", "c"} {
		m := model.NewMockBackend(name)
		m.FailWith(transientErr(name), transientErr(name), transientErr(name))
		backends = append(backends, m)
		mocks = append(mocks, m)
	}
	d, err := New(backends, fastOpts)
	require.NoError(t, err)

	_, err = d.Call(context.Background(), userReq("hi"))
	require.Error(t, err)

	var exhausted *core.AllBackendsExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempted)

	// No backend is called a fourth time.
	for _, m := range mocks {
		assert.Equal(t, 3, m.Calls())
	}
}

func TestDispatcher_StructuralErrorSkipsRetries(t *testing.T) {
	a := model.NewMockBackend("a")
	a.FailWith(structuralErr("a"))
	b := model.NewMockBackend("b")
	b.AddResponse("hi", "from b")

	d, err := New([]model.Backend{a, b}, fastOpts)
	require.NoError(t, err)

	msg, err := d.Call(context.Background(), userReq("hi"))
	require.NoError(t, err)
	assert.Equal(t, "from b", msg.Content)
	assert.Equal(t, 1, a.Calls(), "structural failure gets no per-attempt retries")
}

func TestDispatcher_StickyCursor(t *testing.T) {
	// First call exhausts A and B and ends on C; the next call must begin on
	// C rather than resetting to A.
	a := model.NewMockBackend("a")
	a.FailWith(transientErr("a"), transientErr("a"), transientErr("a"))
	b := model.NewMockBackend("b")
	b.FailWith(transientErr("b"), transientErr("b"), transientErr("b"))
	c := model.NewMockBackend("c")
	c.AddResponse("hi", "from c")
	c.AddResponse("again", "still c")

	d, err := New([]model.Backend{a, b, c}, fastOpts)
	require.NoError(t, err)

	_, err = d.Call(context.Background(), userReq("hi"))
	require.NoError(t, err)
	assert.Equal(t, "c", d.Current())

	aCalls, bCalls := a.Calls(), b.Calls()
	msg, err := d.Call(context.Background(), userReq("again"))
	require.NoError(t, err)
	assert.Equal(t, "still c", msg.Content)
	assert.Equal(t, aCalls, a.Calls(), "next call does not revisit a")
	assert.Equal(t, bCalls, b.Calls(), "next call does not revisit b")
}

func TestDispatcher_StartBackendSelection(t *testing.T) {
	a := model.NewMockBackend("a")
	b := model.NewMockBackend("b")
	b.AddResponse("hi", "from b")

	d, err := New([]model.Backend{a, b}, fastOpts, func(o *Options) { o.Start = "b" })
	require.NoError(t, err)

	msg, err := d.Call(context.Background(), userReq("hi"))
	require.NoError(t, err)
	assert.Equal(t, "from b", msg.Content)
	assert.Equal(t, 0, a.Calls())

	_, err = New([]model.Backend{a}, func(o *Options) { o.Start = "missing" })
	require.Error(t, err)
}

func TestDispatcher_ContextCancelledDuringBackoff(t *testing.T) {
	a := model.NewMockBackend("a")
	a.FailWith(transientErr("a"), transientErr("a"), transientErr("a"))
	d, err := New([]model.Backend{a}, func(o *Options) {
		o.BaseDelay = time.Hour
		o.MaxDelay = time.Hour
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = d.Call(ctx, userReq("hi"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, a.Calls())
}
