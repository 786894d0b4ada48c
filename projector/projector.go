package projector

import (
	"sync"
	"time"

	"github.com/hupe1980/impromptu/core"
	"github.com/hupe1980/impromptu/logging"
)

// Options configures a Projector.
type Options struct {
	Clock  core.Clock
	Logger logging.Logger
}

// Projector accumulates the event list of a single run. It is safe for
// concurrent use but is meant to be owned by one run.
type Projector struct {
	opts Options

	mu        sync.Mutex
	cursor    int
	announced map[string]string // call id -> tool name
	events    []core.AgentEvent
	last      time.Time
	finished  bool
}

// New creates an empty projector.
func New(optFns ...func(o *Options)) *Projector {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Projector{opts: opts, announced: map[string]string{}}
}

// Observe emits events for every message appended to conv since the last
// observation. Observing after Finish is a no-op.
func (p *Projector) Observe(conv *core.Conversation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		return
	}
	p.observe(conv)
}

func (p *Projector) observe(conv *core.Conversation) {
	if conv == nil {
		return
	}
	msgs := conv.Since(p.cursor)
	p.cursor += len(msgs)

	for _, m := range msgs {
		switch m.Role {
		case core.RoleAssistant:
			p.projectReply(m)
		case core.RoleTool:
			p.projectResult(m)
		}
	}
}

func (p *Projector) projectReply(m core.Message) {
	if txt := m.Text(); txt != "" {
		p.events = append(p.events, core.NewAIMessageEvent(txt, p.now()))
	}

	calls := m.FunctionCalls()
	if len(calls) == 0 {
		return
	}
	infos := make([]core.ToolCallInfo, 0, len(calls))
	for _, fc := range calls {
		if !fc.Correlatable() {
			continue
		}
		args, err := fc.Args()
		if err != nil {
			p.opts.Logger.Debug("projector.call.omitted", logging.KeyCallID, fc.ID, logging.KeyTool, fc.Name, logging.KeyError, err.Error())
			continue
		}
		infos = append(infos, core.ToolCallInfo{Name: fc.Name, Args: args, ID: fc.ID})
		p.announced[fc.ID] = fc.Name
	}
	if len(infos) > 0 {
		p.events = append(p.events, core.NewAIToolCallEvent(infos, p.now()))
	}
}

func (p *Projector) projectResult(m core.Message) {
	fr, ok := m.FunctionResponse()
	if !ok {
		return
	}
	if _, ok := p.announced[fr.ID]; !ok {
		p.opts.Logger.Debug("projector.result.omitted", logging.KeyCallID, fr.ID, logging.KeyTool, fr.Name)
		return
	}
	p.events = append(p.events, core.NewToolResultEvent(fr.Name, fr.ID, fr.Content(), p.now()))
}

// now reads the clock, never going backwards within a run.
func (p *Projector) now() time.Time {
	t := p.opts.Clock.Now()
	if t.Before(p.last) {
		t = p.last
	}
	p.last = t
	return t
}

// Finish observes the remainder of conv and appends the terminal event:
// AgentEnd carrying the last assistant text when err is nil, AgentError
// otherwise. Later calls return the same list unchanged.
func (p *Projector) Finish(conv *core.Conversation, err error) []core.AgentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.finished {
		p.observe(conv)
		if err != nil {
			p.events = append(p.events, core.NewAgentErrorEvent(err.Error(), p.now()))
		} else {
			final := ""
			if conv != nil {
				final = conv.LastAssistantText()
			}
			p.events = append(p.events, core.NewAgentEndEvent(final, p.now()))
		}
		p.finished = true
	}
	return p.snapshot()
}

// Events returns a copy of the events emitted so far.
func (p *Projector) Events() []core.AgentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

func (p *Projector) snapshot() []core.AgentEvent {
	out := make([]core.AgentEvent, len(p.events))
	copy(out, p.events)
	return out
}
