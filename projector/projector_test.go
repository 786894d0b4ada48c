package projector

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/internal/testutil"
)

func newProjector() *Projector {
	return New(func(o *Options) { o.Clock = testutil.StepClock(testutil.Epoch, time.Millisecond) })
}

func types(events []core.AgentEvent) []core.EventType {
	out := make([]core.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.EventType()
	}
	return out
}

func TestProjector_IncrementalObservation(t *testing.T) {
	conv := testutil.Conversation(core.NewSystemMessage("p"), core.NewUserMessage("book lunch"))
	p := newProjector()

	p.Observe(conv)
	assert.Empty(t, p.Events())

	_, err := conv.Append(testutil.NewReplyBuilder().Text("Let me check the time.").Call("c1", "askTimeAndTimeZone", nil).Build())
	require.NoError(t, err)
	p.Observe(conv)
	p.Observe(conv) // repeated snapshots emit nothing new
	assert.Equal(t, []core.EventType{core.EventTypeAIMessage, core.EventTypeAIToolCall}, types(p.Events()))

	_, err = conv.Append(testutil.Result("c1", "askTimeAndTimeZone", "Current date: x"))
	require.NoError(t, err)
	_, err = conv.Append(testutil.NewReplyBuilder().Text("All set.").Build())
	require.NoError(t, err)

	events := p.Finish(conv, nil)
	assert.Equal(t, []core.EventType{
		core.EventTypeAIMessage,
		core.EventTypeAIToolCall,
		core.EventTypeToolResult,
		core.EventTypeAIMessage,
		core.EventTypeAgentEnd,
	}, types(events))

	call := events[1].(core.AIToolCallEvent)
	require.Len(t, call.ToolCalls, 1)
	assert.Equal(t, core.ToolCallInfo{Name: "askTimeAndTimeZone", Args: map[string]any{}, ID: "c1"}, call.ToolCalls[0])

	res := events[2].(core.ToolResultEvent)
	assert.Equal(t, "askTimeAndTimeZone", res.ToolName)
	assert.Equal(t, "c1", res.ToolCallID)
	assert.Equal(t, "Current date: x", res.Content)

	assert.Equal(t, "All set.", events[4].(core.AgentEndEvent).FinalMessage)

	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].EventTime().UnixMilli(), events[i-1].EventTime().UnixMilli())
	}
}

func TestProjector_ObjectResultsAreSerialized(t *testing.T) {
	conv := testutil.Conversation(
		core.NewSystemMessage("p"),
		core.NewUserMessage("u"),
		testutil.NewReplyBuilder().Call("c1", "lookup", map[string]any{"q": "x"}).Build(),
		testutil.Result("c1", "lookup", map[string]any{"ok": true}),
	)
	events := newProjector().Finish(conv, nil)

	require.Len(t, events, 3)
	assert.Equal(t, `{"ok":true}`, events[1].(core.ToolResultEvent).Content)
	assert.Equal(t, map[string]any{"q": "x"}, events[0].(core.AIToolCallEvent).ToolCalls[0].Args)
}

func TestProjector_OmitsMalformedCalls(t *testing.T) {
	conv := testutil.Conversation(
		core.NewSystemMessage("p"),
		core.NewUserMessage("u"),
		testutil.NewReplyBuilder().
			Call("c1", "askTimeAndTimeZone", nil).
			Call("c2", "makeGCalendarEntry", "not json").
			Build(),
		testutil.Result("c1", "askTimeAndTimeZone", "now"),
		core.NewToolResultMessage(core.FunctionResponse{ID: "c2", Name: "makeGCalendarEntry", Error: "INVALID_ARGUMENTS: bad"}),
	)
	events := newProjector().Finish(conv, nil)

	require.Equal(t, []core.EventType{core.EventTypeAIToolCall, core.EventTypeToolResult, core.EventTypeAgentEnd}, types(events))
	call := events[0].(core.AIToolCallEvent)
	require.Len(t, call.ToolCalls, 1)
	assert.Equal(t, "c1", call.ToolCalls[0].ID)
	assert.Equal(t, "c1", events[1].(core.ToolResultEvent).ToolCallID)
}

func TestProjector_AllMalformedEmitsNoToolCallEvent(t *testing.T) {
	conv := testutil.Conversation(
		core.NewSystemMessage("p"),
		core.NewUserMessage("u"),
		testutil.NewReplyBuilder().Text("hmm").Call("c1", "x", "[]").Build(),
	)
	events := newProjector().Finish(conv, nil)
	assert.Equal(t, []core.EventType{core.EventTypeAIMessage, core.EventTypeAgentEnd}, types(events))
}

func TestProjector_ErrorTermination(t *testing.T) {
	conv := testutil.Conversation(core.NewSystemMessage("p"), core.NewUserMessage("u"))
	p := newProjector()

	events := p.Finish(conv, errors.New("planner scripted failed: boom"))
	require.Len(t, events, 1)
	ev, ok := events[0].(core.AgentErrorEvent)
	require.True(t, ok)
	assert.Equal(t, "planner scripted failed: boom", ev.Message)

	// Finish is idempotent and later observations are ignored.
	_, err := conv.Append(testutil.NewReplyBuilder().Text("late").Build())
	require.NoError(t, err)
	p.Observe(conv)
	again := p.Finish(conv, nil)
	assert.Equal(t, events, again)
}

func TestProjector_ClockNeverGoesBackwards(t *testing.T) {
	times := []time.Time{testutil.Epoch.Add(time.Second), testutil.Epoch}
	i := 0
	p := New(func(o *Options) {
		o.Clock = func() time.Time {
			t := times[i%len(times)]
			i++
			return t
		}
	})
	conv := testutil.Conversation(core.NewSystemMessage("p"), core.NewUserMessage("u"),
		testutil.NewReplyBuilder().Text("a").Build())

	events := p.Finish(conv, nil)
	require.Len(t, events, 2)
	assert.Equal(t, events[0].EventTime(), events[1].EventTime())
}
