package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallContext_RoundTrip(t *testing.T) {
	ctx := WithCallContext(context.Background(), &CallContext{SessionKey: "s1", VMID: "vm-1"})
	cc, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "s1", cc.SessionKey)
	assert.Equal(t, "vm-1", cc.VMID)
}

func TestCallContext_AbsentFromBareContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}
