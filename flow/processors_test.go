package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/internal/testutil"
	"github.com/hupe1980/impromptu/model"
)

func TestContentsProcessor_CopiesLog(t *testing.T) {
	conv := testutil.Conversation(
		core.NewSystemMessage("p"),
		core.NewUserMessage("u"),
		testutil.NewReplyBuilder().Call("c1", "askTimeAndTimeZone", nil).Build(),
		testutil.Result("c1", "askTimeAndTimeZone", "now"),
	)

	var req model.Request
	require.NoError(t, NewContentsProcessor().ProcessRequest(context.Background(), conv, &req))
	require.Len(t, req.Messages, 4)
	assert.Equal(t, core.RoleTool, req.Messages[3].Role)

	req.Messages[0] = core.NewUserMessage("mutated")
	assert.Equal(t, core.RoleSystem, conv.Messages()[0].Role)
}

func TestToolsProcessor_EmptyRegistry(t *testing.T) {
	var req model.Request
	require.NoError(t, NewToolsProcessor(newRegistry(t)).ProcessRequest(context.Background(), core.NewConversation(), &req))
	assert.Nil(t, req.Tools)
}

func TestInstructionsProcessor_RequiresPolicyFirst(t *testing.T) {
	var req model.Request
	err := NewInstructionsProcessor().ProcessRequest(context.Background(), core.NewConversation(), &req)
	assert.Error(t, err)
}
