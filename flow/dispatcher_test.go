package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/internal/testutil"
	"github.com/hupe1980/impromptu/tool"
)

func newRegistry(t *testing.T, tools ...tool.Tool) *tool.Registry {
	t.Helper()
	reg, err := tool.NewRegistry(tools...)
	require.NoError(t, err)
	return reg
}

func TestDispatcher_PreservesRequestOrder(t *testing.T) {
	reg := newRegistry(t,
		&testutil.StubTool{ToolName: "slow", Delay: 60 * time.Millisecond, Result: "slow done"},
		&testutil.StubTool{ToolName: "fast", Result: "fast done"},
	)
	conv := testutil.Conversation(core.NewSystemMessage("p"), core.NewUserMessage("u"))

	calls := []core.FunctionCall{
		testutil.Call("1", "slow", nil),
		testutil.Call("2", "fast", nil),
	}
	results, err := NewDispatcher(reg).Dispatch(context.Background(), conv, calls)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].ID)
	assert.Equal(t, "slow done", results[0].Response)
	assert.Equal(t, "2", results[1].ID)
	assert.Equal(t, "fast done", results[1].Response)
}

func TestDispatcher_RunsConcurrently(t *testing.T) {
	var inflight, peak atomic.Int32
	fn := func(_ *core.ToolContext, _ map[string]any) (any, error) {
		cur := inflight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inflight.Add(-1)
		return "ok", nil
	}
	reg := newRegistry(t, &testutil.StubTool{ToolName: "work", Fn: fn})
	conv := testutil.Conversation(core.NewSystemMessage("p"))

	calls := []core.FunctionCall{testutil.Call("a", "work", nil), testutil.Call("b", "work", nil), testutil.Call("c", "work", nil)}
	_, err := NewDispatcher(reg).Dispatch(context.Background(), conv, calls)
	require.NoError(t, err)
	assert.Greater(t, peak.Load(), int32(1))

	peak.Store(0)
	_, err = NewDispatcher(reg, func(o *DispatcherOptions) { o.MaxParallel = 1 }).Dispatch(context.Background(), conv, calls)
	require.NoError(t, err)
	assert.Equal(t, int32(1), peak.Load())
}

func TestDispatcher_ToolLevelFailuresBecomeText(t *testing.T) {
	reg := newRegistry(t,
		&testutil.StubTool{ToolName: "broken", Err: errors.New("disk full")},
		&testutil.StubTool{ToolName: "typed", Err: tool.NewToolError("typed", "bad input", tool.CodeValidation)},
	)
	conv := testutil.Conversation(core.NewSystemMessage("p"))

	calls := []core.FunctionCall{
		testutil.Call("1", "missing", nil),
		testutil.Call("2", "broken", nil),
		testutil.Call("3", "typed", nil),
		testutil.Call("4", "broken", "[1,2]"),
	}
	results, err := NewDispatcher(reg).Dispatch(context.Background(), conv, calls)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "Error: NOT_FOUND: tool missing not found", results[0].Content())
	assert.Equal(t, "Error: disk full", results[1].Content())
	assert.Equal(t, "Error: VALIDATION_ERROR: bad input", results[2].Content())
	assert.Contains(t, results[3].Content(), "Error: INVALID_ARGUMENTS")
}

func TestDispatcher_PanicIsFatal(t *testing.T) {
	reg := newRegistry(t, &testutil.StubTool{ToolName: "boom", Panic: "kaboom"})
	conv := testutil.Conversation(core.NewSystemMessage("p"))

	_, err := NewDispatcher(reg).Dispatch(context.Background(), conv, []core.FunctionCall{testutil.Call("1", "boom", nil)})
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.Tool)
	assert.NotEmpty(t, pe.Stack)
}

func TestDispatcher_TimeoutIsFatal(t *testing.T) {
	reg := newRegistry(t, &testutil.StubTool{ToolName: "hang", Delay: time.Second})
	conv := testutil.Conversation(core.NewSystemMessage("p"))

	d := NewDispatcher(reg, func(o *DispatcherOptions) { o.Timeout = 20 * time.Millisecond })
	_, err := d.Dispatch(context.Background(), conv, []core.FunctionCall{testutil.Call("1", "hang", nil)})
	assert.ErrorIs(t, err, core.ErrToolTimeout)
}

func TestDispatcher_CancelledRun(t *testing.T) {
	reg := newRegistry(t, &testutil.StubTool{ToolName: "hang", Delay: time.Second})
	conv := testutil.Conversation(core.NewSystemMessage("p"))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := NewDispatcher(reg).Dispatch(ctx, conv, []core.FunctionCall{testutil.Call("1", "hang", nil)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatcher_Prerequisite(t *testing.T) {
	var ran atomic.Bool
	reg := newRegistry(t,
		&testutil.StubTool{ToolName: "askTimeAndTimeZone", Result: "now"},
		&testutil.StubTool{ToolName: "makeGCalendarEntry", Fn: func(*core.ToolContext, map[string]any) (any, error) {
			ran.Store(true)
			return "created", nil
		}},
	)
	d := NewDispatcher(reg, WithPrerequisite("makeGCalendarEntry", "askTimeAndTimeZone"))

	conv := testutil.Conversation(core.NewSystemMessage("p"), core.NewUserMessage("u"),
		testutil.NewReplyBuilder().Call("1", "askTimeAndTimeZone", nil).Call("2", "makeGCalendarEntry", map[string]any{}).Build())

	results, err := d.Dispatch(context.Background(), conv, conv.PendingCalls())
	require.NoError(t, err)
	assert.Equal(t, "now", results[0].Content())
	assert.Equal(t, "Error: tool makeGCalendarEntry requires a prior askTimeAndTimeZone result", results[1].Content())
	assert.False(t, ran.Load())

	for _, r := range results {
		_, err := conv.Append(core.NewToolResultMessage(r))
		require.NoError(t, err)
	}
	_, err = conv.Append(testutil.NewReplyBuilder().Call("3", "makeGCalendarEntry", map[string]any{}).Build())
	require.NoError(t, err)

	results, err = d.Dispatch(context.Background(), conv, conv.PendingCalls())
	require.NoError(t, err)
	assert.Equal(t, "created", results[0].Content())
	assert.True(t, ran.Load())
}

func TestDispatcher_PrerequisiteIgnoresFailedResult(t *testing.T) {
	var ran atomic.Bool
	reg := newRegistry(t,
		&testutil.StubTool{ToolName: "askTimeAndTimeZone", Result: "now"},
		&testutil.StubTool{ToolName: "makeGCalendarEntry", Fn: func(*core.ToolContext, map[string]any) (any, error) {
			ran.Store(true)
			return "created", nil
		}},
	)
	d := NewDispatcher(reg, WithPrerequisite("makeGCalendarEntry", "askTimeAndTimeZone"))

	conv := testutil.Conversation(core.NewSystemMessage("p"), core.NewUserMessage("u"),
		testutil.NewReplyBuilder().Call("1", "askTimeAndTimeZone", nil).Build(),
		core.NewToolResultMessage(core.FunctionResponse{ID: "1", Name: "askTimeAndTimeZone", Error: "INVALID_ARGUMENTS: not an object"}),
		testutil.NewReplyBuilder().Call("2", "makeGCalendarEntry", map[string]any{}).Build())

	results, err := d.Dispatch(context.Background(), conv, conv.PendingCalls())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Error: tool makeGCalendarEntry requires a prior askTimeAndTimeZone result", results[0].Content())
	assert.False(t, ran.Load())
}

func TestDispatcher_ToolContext(t *testing.T) {
	var got struct {
		id, name string
		now      time.Time
	}
	reg := newRegistry(t, &testutil.StubTool{ToolName: "clock", Fn: func(tc *core.ToolContext, _ map[string]any) (any, error) {
		got.id, got.name, got.now = tc.FunctionCallID(), tc.ToolName(), tc.Now()
		return nil, nil
	}})
	d := NewDispatcher(reg, func(o *DispatcherOptions) { o.Clock = core.FixedClock(testutil.Epoch) })

	_, err := d.Dispatch(context.Background(), testutil.Conversation(), []core.FunctionCall{testutil.Call("c9", "clock", nil)})
	require.NoError(t, err)
	assert.Equal(t, "c9", got.id)
	assert.Equal(t, "clock", got.name)
	assert.Equal(t, testutil.Epoch, got.now)
}
