// Package events carries workflow lifecycle notifications from the runner to
// observers.
//
// The package provides:
//
//   - Channel: a synchronous publish/subscribe hub keyed by EventType
//   - MessageTemplateEngine: per-type message templates with sprig functions
//   - LogSink and FileSink: subscribers that write events to the structured
//     log or to an events.log file as JSON lines
//
// Handlers are isolated from the emitter. A handler error or panic is logged
// under the EventChannel subsystem and never reaches the runner.
//
// Usage:
//
//	ch := events.NewChannel()
//	unsubscribe := ch.Subscribe(events.StepCompleted, func(evt events.Event) error {
//		fmt.Println(evt.Message)
//		return nil
//	})
//	defer unsubscribe()
//
//	ch.Emit(events.StepCompleted, events.Event{WorkflowID: "build", StepID: "compile"})
package events
