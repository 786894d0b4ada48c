package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/impromptu/calendar"
	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/credential"
	"github.com/hupe1980/impromptu/internal/testutil"
	"github.com/hupe1980/impromptu/model"
	"github.com/hupe1980/impromptu/tool"
	"github.com/hupe1980/impromptu/toolset"
)

func calendarRegistry(t *testing.T, token string) (*tool.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	reg, err := toolset.New(func(o *toolset.Options) {
		o.Credentials = credential.NewStaticProvider(token)
		o.Calendar = calendar.NewICSProvider(dir, func(o *calendar.ICSOptions) { o.Clock = core.FixedClock(testutil.Epoch) })
		o.Clock = core.FixedClock(testutil.Epoch)
	})
	require.NoError(t, err)
	return reg, dir
}

func newAgent(t *testing.T, llm model.Model, reg *tool.Registry, optFns ...func(o *Options)) *CalendarAgent {
	t.Helper()
	fns := append([]func(o *Options){func(o *Options) {
		o.Clock = testutil.StepClock(testutil.Epoch, time.Millisecond)
	}}, optFns...)
	a, err := NewCalendarAgent(llm, reg, fns...)
	require.NoError(t, err)
	return a
}

func lastToolText(req model.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if fr, ok := req.Messages[i].FunctionResponse(); ok {
			return fr.Content()
		}
	}
	return ""
}

// assertWellFormed checks the invariants every event list must satisfy.
func assertWellFormed(t *testing.T, events []core.AgentEvent) {
	t.Helper()
	require.NotEmpty(t, events)

	terminals := 0
	announced := map[string]string{}
	for i, ev := range events {
		if core.IsTerminal(ev) {
			terminals++
			assert.Equal(t, len(events)-1, i, "terminal event must be last")
		}
		switch e := ev.(type) {
		case core.AIToolCallEvent:
			for _, c := range e.ToolCalls {
				announced[c.ID] = c.Name
			}
		case core.ToolResultEvent:
			name, ok := announced[e.ToolCallID]
			assert.True(t, ok, "result %s without earlier call", e.ToolCallID)
			assert.Equal(t, name, e.ToolName)
		}
		if i > 0 {
			assert.GreaterOrEqual(t, ev.EventTime().UnixMilli(), events[i-1].EventTime().UnixMilli())
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestCalendarAgent_SchedulesRelativeEvent(t *testing.T) {
	reg, _ := calendarRegistry(t, "tok")
	llm := model.NewScriptedModel(
		model.Reply("", testutil.Call("call_time", "askTimeAndTimeZone", map[string]any{})),
		model.Turn{Respond: func(req model.Request) (core.Message, error) {
			if !strings.Contains(lastToolText(req), "Current date: 2025-06-05T09:00:00.000Z") {
				return core.Message{}, errors.New("clock result missing")
			}
			return core.NewAssistantMessage("", testutil.Call("call_entry", "makeGCalendarEntry", map[string]any{
				"summary":       "Team sync",
				"startDateTime": "2025-06-06T10:00:00",
				"endDateTime":   "2025-06-06T11:00:00",
			})), nil
		}},
		model.Turn{Respond: func(req model.Request) (core.Message, error) {
			return core.NewAssistantMessage("Booked: " + lastToolText(req)), nil
		}},
	)

	events := newAgent(t, llm, reg).Chat(context.Background(), "Schedule a team sync tomorrow at 10 AM", "")
	assertWellFormed(t, events)

	var order []string
	var entryArgs map[string]any
	for _, ev := range events {
		if e, ok := ev.(core.AIToolCallEvent); ok {
			for _, c := range e.ToolCalls {
				order = append(order, c.Name)
				if c.Name == "makeGCalendarEntry" {
					entryArgs = c.Args
				}
			}
		}
	}
	assert.Equal(t, []string{"askTimeAndTimeZone", "makeGCalendarEntry"}, order)
	assert.Equal(t, "2025-06-06T10:00:00", entryArgs["startDateTime"])
	assert.Equal(t, "2025-06-06T11:00:00", entryArgs["endDateTime"])

	end, ok := events[len(events)-1].(core.AgentEndEvent)
	require.True(t, ok)
	assert.Contains(t, end.FinalMessage, "Successfully created event: 'Team sync'. Event ID: ")
}

func TestCalendarAgent_MissingCredentialIsNarrated(t *testing.T) {
	reg, _ := calendarRegistry(t, "")
	llm := model.NewScriptedModel(
		model.Reply("", testutil.Call("c1", "askTimeAndTimeZone", nil)),
		model.Reply("", testutil.Call("c2", "makeGCalendarEntry", map[string]any{
			"summary": "Lunch", "startDateTime": "2025-06-06T12:00:00", "endDateTime": "2025-06-06T13:00:00",
		})),
		model.Reply("I could not create the event because you are not signed in."),
	)

	events := newAgent(t, llm, reg).Chat(context.Background(), "lunch tomorrow at noon", "")
	assertWellFormed(t, events)

	var result core.ToolResultEvent
	for _, ev := range events {
		if e, ok := ev.(core.ToolResultEvent); ok && e.ToolName == "makeGCalendarEntry" {
			result = e
		}
	}
	assert.Contains(t, result.Content, "Failed to create event 'Lunch'")
	_, ok := events[len(events)-1].(core.AgentEndEvent)
	assert.True(t, ok)
}

func TestCalendarAgent_ModelFailureEndsWithError(t *testing.T) {
	reg, _ := calendarRegistry(t, "tok")
	llm := model.NewScriptedModel(model.Fail(errors.New("connection reset")))

	events := newAgent(t, llm, reg).Chat(context.Background(), "hi", "")
	assertWellFormed(t, events)

	last, ok := events[len(events)-1].(core.AgentErrorEvent)
	require.True(t, ok)
	assert.NotEmpty(t, last.Message)
	for _, ev := range events {
		assert.NotEqual(t, core.EventTypeAgentEnd, ev.EventType())
	}
}

func TestCalendarAgent_ParallelResultsKeepRequestOrder(t *testing.T) {
	slow := &testutil.StubTool{ToolName: "slow", Delay: 50 * time.Millisecond, Result: "slow"}
	fast := &testutil.StubTool{ToolName: "fast", Result: "fast"}
	reg, err := tool.NewRegistry(slow, fast)
	require.NoError(t, err)

	llm := model.NewScriptedModel(
		model.Reply("", testutil.Call("a", "slow", nil), testutil.Call("b", "fast", nil)),
		model.Reply("done"),
	)
	events := newAgent(t, llm, reg).Chat(context.Background(), "go", "")
	assertWellFormed(t, events)

	var ids []string
	for _, ev := range events {
		if e, ok := ev.(core.ToolResultEvent); ok {
			ids = append(ids, e.ToolCallID)
		}
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestCalendarAgent_MaxTurns(t *testing.T) {
	reg, _ := calendarRegistry(t, "tok")
	turns := make([]model.Turn, 0, 4)
	for _, id := range []string{"q1", "q2", "q3", "q4"} {
		turns = append(turns, model.Reply("", testutil.Call(id, "askForDetails", map[string]any{"question": "when?"})))
	}

	events := newAgent(t, model.NewScriptedModel(turns...), reg, func(o *Options) { o.MaxTurns = 3 }).
		Chat(context.Background(), "meeting", "")
	assertWellFormed(t, events)

	last, ok := events[len(events)-1].(core.AgentErrorEvent)
	require.True(t, ok)
	assert.Contains(t, last.Message, core.ErrMaxTurnsExceeded.Error())
}

func TestCalendarAgent_OrderingGuard(t *testing.T) {
	reg, _ := calendarRegistry(t, "tok")
	entry := map[string]any{"summary": "Standup", "startDateTime": "2025-06-06T09:00:00", "endDateTime": "2025-06-06T09:15:00"}
	llm := model.NewScriptedModel(
		model.Reply("", testutil.Call("e1", "makeGCalendarEntry", entry)),
		model.Reply("", testutil.Call("t1", "askTimeAndTimeZone", nil)),
		model.Reply("", testutil.Call("e2", "makeGCalendarEntry", entry)),
		model.Reply("ok"),
	)

	events := newAgent(t, llm, reg).Chat(context.Background(), "standup tomorrow 9", "")
	assertWellFormed(t, events)

	results := map[string]string{}
	for _, ev := range events {
		if e, ok := ev.(core.ToolResultEvent); ok {
			results[e.ToolCallID] = e.Content
		}
	}
	assert.Equal(t, "Error: tool makeGCalendarEntry requires a prior askTimeAndTimeZone result", results["e1"])
	assert.Contains(t, results["e2"], "Successfully created event: 'Standup'")
}

func TestCalendarAgent_TimeZoneReachesTools(t *testing.T) {
	reg, dir := calendarRegistry(t, "tok")
	llm := model.NewScriptedModel(
		model.Reply("", testutil.Call("t1", "askTimeAndTimeZone", nil)),
		model.Reply("", testutil.Call("e1", "makeGCalendarEntry", map[string]any{
			"summary": "Review", "startDateTime": "2025-06-06T10:00:00", "endDateTime": "2025-06-06T11:00:00",
		})),
		model.Reply("done"),
	)

	events := newAgent(t, llm, reg).Chat(context.Background(), "review tomorrow 10", "Europe/Berlin")
	assertWellFormed(t, events)

	var timeResult, entryResult string
	for _, ev := range events {
		if e, ok := ev.(core.ToolResultEvent); ok {
			switch e.ToolCallID {
			case "t1":
				timeResult = e.Content
			case "e1":
				entryResult = e.Content
			}
		}
	}
	assert.Contains(t, timeResult, "Time zone: Europe/Berlin")
	assert.Contains(t, timeResult, "Local time: 2025-06-05T11:00:00+02:00")

	uid := entryResult[strings.LastIndex(entryResult, " ")+1:]
	cal, err := calendar.NewICSProvider(dir).Load(uid)
	require.NoError(t, err)
	start, err := cal.Events()[0].GetStartAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 6, 8, 0, 0, 0, time.UTC), start.UTC())
}

func TestCalendarAgent_InvalidTimeZoneFallsBack(t *testing.T) {
	reg, _ := calendarRegistry(t, "tok")
	llm := model.NewScriptedModel(
		model.Reply("", testutil.Call("t1", "askTimeAndTimeZone", nil)),
		model.Reply("done"),
	)

	events := newAgent(t, llm, reg).Chat(context.Background(), "x", "Mars/Olympus")
	assertWellFormed(t, events)
	for _, ev := range events {
		if e, ok := ev.(core.ToolResultEvent); ok {
			assert.Equal(t, "Current date: 2025-06-05T09:00:00.000Z Time zone: UTC\n", e.Content)
		}
	}
}

func TestCalendarAgent_InstructionTemplate(t *testing.T) {
	reg, _ := calendarRegistry(t, "tok")
	llm := model.NewScriptedModel(model.Reply("hi"))

	a := newAgent(t, llm, reg, func(o *Options) {
		o.Instruction = NewInstructionFromTemplate("zone={{default \"server\" .TimeZone}} run={{.RunID}}")
	})
	ctx := core.WithRunInfo(context.Background(), core.RunInfo{RunID: "run-1"})
	events := a.Chat(ctx, "hello", "Asia/Tokyo")
	assertWellFormed(t, events)

	assert.Equal(t, "zone=Asia/Tokyo run=run-1", llm.Requests()[0].Instructions)
}

func TestCalendarAgent_InstructionProviderError(t *testing.T) {
	reg, _ := calendarRegistry(t, "tok")
	llm := model.NewScriptedModel(model.Reply("hi"))

	a := newAgent(t, llm, reg, func(o *Options) {
		o.Instruction = NewInstructionFromFunc(func(context.Context, core.RunInfo) (string, error) {
			return "", errors.New("policy store down")
		})
	})
	events := a.Chat(context.Background(), "hello", "")
	require.Len(t, events, 1)
	assert.Contains(t, events[0].(core.AgentErrorEvent).Message, "policy store down")
	assert.Zero(t, llm.Calls())
}

func TestInstruction(t *testing.T) {
	assert.True(t, NewInstructionFromText("static").IsStatic())
	assert.False(t, NewInstructionFromTemplate("{{.RunID}}").IsStatic())
	assert.True(t, Instruction{}.IsZero())

	got, err := NewInstructionFromProvider(Func(func(_ context.Context, info core.RunInfo) (string, error) {
		return "tz:" + info.TimeZone, nil
	})).Resolve(core.WithRunInfo(context.Background(), core.RunInfo{TimeZone: "UTC"}))
	require.NoError(t, err)
	assert.Equal(t, "tz:UTC", got)
}

func TestNewCalendarAgent_Requires(t *testing.T) {
	_, err := NewCalendarAgent(nil, &tool.Registry{})
	assert.Error(t, err)
	_, err = NewCalendarAgent(model.NewScriptedModel(), nil)
	assert.Error(t, err)
}
