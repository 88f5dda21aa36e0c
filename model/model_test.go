package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloop/agentloop/core"
)

// Interface compliance (compile-time assertion)
var _ Backend = (*MockBackend)(nil)

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, core.ClassTransient, ClassifyStatus(429))
	assert.Equal(t, core.ClassTransient, ClassifyStatus(500))
	assert.Equal(t, core.ClassTransient, ClassifyStatus(503))
	assert.Equal(t, core.ClassStructural, ClassifyStatus(400))
	assert.Equal(t, core.ClassStructural, ClassifyStatus(401))
	assert.Equal(t, core.ClassStructural, ClassifyStatus(404))
}

func TestClassifyErr(t *testing.T) {
	assert.Equal(t, core.ClassTransient, ClassifyErr(errors.New("context deadline exceeded")))
	assert.Equal(t, core.ClassTransient, ClassifyErr(errors.New("read: connection reset by peer")))
	assert.Equal(t, core.ClassTransient, ClassifyErr(errors.New("Rate limit reached")))
	assert.Equal(t, core.ClassStructural, ClassifyErr(errors.New("invalid request body")))
}

func TestMockBackend_CannedResponse(t *testing.T) {
	backend := NewMockBackend("mock-1")
	backend.AddResponse("What is 2+2?", "4")

	msg, err := backend.Invoke(context.Background(), Request{
		Messages: []core.Message{core.NewUserMessage("What is 2+2?")},
	})
	require.NoError(t, err)
	assert.Equal(t, core.RoleAssistant, msg.Role)
	assert.Equal(t, "4", msg.Content)
	assert.Equal(t, 1, backend.Calls())
}

func TestMockBackend_ScriptedErrorsDrainFirst(t *testing.T) {
	backend := NewMockBackend("mock-1")
	backend.AddResponse("hi", "hello")
	backend.FailWith(&core.BackendError{Backend: "mock-1", Class: core.ClassTransient, Err: errors.New("429")})

	_, err := backend.Invoke(context.Background(), Request{Messages: []core.Message{core.NewUserMessage("hi")}})
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))

	msg, err := backend.Invoke(context.Background(), Request{Messages: []core.Message{core.NewUserMessage("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
}
