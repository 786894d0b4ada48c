package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolCtx(id string) *core.ToolContext {
	return core.NewToolContext(context.Background(), id, "test", logging.NoOpLogger{})
}

var sumParams = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"a": map[string]any{"type": "number"},
		"b": map[string]any{"type": "number"},
	},
	"required": []string{"a", "b"},
}

func TestFunctionTool_Success(t *testing.T) {
	sumTool, err := NewFunctionTool("sum", "Add numbers", sumParams, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
	require.NoError(t, err)

	result, err := sumTool.Call(toolCtx("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationErrorBeforeSideEffect(t *testing.T) {
	called := false
	tTool, err := NewFunctionTool("sum", "Add", sumParams, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		called = true
		return 0, nil
	})
	require.NoError(t, err)

	_, err = tTool.Call(toolCtx("fc2"), map[string]any{"a": 1.0})
	require.Error(t, err)
	assert.False(t, called)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.True(t, IsValidationError(err))

	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	execTool, err := NewFunctionTool("fail", "Fails", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	require.NoError(t, err)

	_, err = execTool.Call(toolCtx("fc3"), map[string]any{})
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
	assert.False(t, IsValidationError(err))
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("x", "nope", "CUSTOM")
	ft, err := NewFunctionTool("x", "", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, custom
	})
	require.NoError(t, err)

	_, err = ft.Call(toolCtx("fc4"), nil)
	assert.Same(t, custom, err)
}

func TestFunctionTool_FnValidationErrorKeepsCode(t *testing.T) {
	ft, err := NewFunctionTool("x", "", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, &ValidationError{Field: "endDate", Message: "end before start"}
	})
	require.NoError(t, err)

	_, err = ft.Call(toolCtx("fc5"), nil)
	assert.True(t, IsValidationError(err))
}

func TestNewFunctionTool_Rejects(t *testing.T) {
	_, err := NewFunctionTool("", "", nil, func(*core.ToolContext, map[string]any) (any, error) { return nil, nil })
	assert.Error(t, err)

	_, err = NewFunctionTool("x", "", nil, nil)
	assert.Error(t, err)

	_, err = NewFunctionTool("x", "", map[string]any{"type": 7}, func(*core.ToolContext, map[string]any) (any, error) { return nil, nil })
	assert.Error(t, err)
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type args struct {
		Question string `json:"question" description:"Question to relay"`
	}
	ft, err := NewFunctionToolFromStruct("ask", "Ask", args{}, func(_ *core.ToolContext, a map[string]any) (any, error) {
		return a["question"], nil
	})
	require.NoError(t, err)

	out, err := ft.Call(toolCtx("fc6"), map[string]any{"question": "where?"})
	require.NoError(t, err)
	assert.Equal(t, "where?", out)

	assert.Error(t, ft.Validate(map[string]any{}))
}

func TestRegistry(t *testing.T) {
	mk := func(name string) Tool {
		ft, err := NewFunctionTool(name, name, nil, func(*core.ToolContext, map[string]any) (any, error) { return name, nil })
		require.NoError(t, err)
		return ft
	}

	r, err := NewRegistry(mk("b"), mk("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, r.Names())
	assert.Equal(t, []string{"a", "b"}, r.SortedNames())
	assert.Equal(t, 2, r.Len())

	got, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Name())

	_, ok = r.Lookup("zzz")
	assert.False(t, ok)

	_, err = NewRegistry(mk("a"), mk("a"))
	assert.Error(t, err)

	var nilReg *Registry
	_, ok = nilReg.Lookup("a")
	assert.False(t, ok)
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
