// Package engine is the process-wide entry point for conversation runs.
//
// The Engine wraps a CalendarAgent with the concerns that span runs: a bound
// on concurrently executing runs, a unique run id per request, structured
// logging, metrics and lifecycle callbacks.
//
// # Usage
//
//	eng := engine.New(calendarAgent,
//	    func(o *engine.Options) {
//	        o.Config.MaxConcurrentRuns = 20
//	        o.Logger = logger
//	    })
//	events := eng.Chat(ctx, "Schedule a team sync tomorrow at 10 AM", "Europe/Berlin")
//
// # Concurrency Model
//
// Runs are fully independent. When MaxConcurrentRuns runs are in flight,
// further calls wait for a free slot or for their context to end; a run that
// never obtained a slot is reported as an AgentError event like any other
// failure. Chat therefore always returns a terminated event list.
package engine
