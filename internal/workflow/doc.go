// Package workflow executes workflows and manages their definitions.
//
// # Runner
//
// Runner.Run executes the steps of a workflow strictly in declared order.
// For every step it waits out the optional delay, resolves the declarative
// inputs against earlier results, consults the cache when the step enables
// caching, and otherwise invokes the tool through an api.ToolInvoker.
// Failed invocations are retried with exponential backoff (base * 2^n)
// until the step's retryCount is spent. The step's error policy then
// decides whether the run aborts (stop) or carries on (continue, retry).
//
// Run never returns an error. Failures, including cancellation, end up in
// the returned api.WorkflowResult.
//
// # Definitions
//
// Manager keeps workflow definitions as YAML files:
//
//	id: nightly-report
//	steps:
//	- id: fetch
//	  toolId: web/fetch
//	  inputs:
//	    url: https://example.com/report
//	  cache:
//	    enabled: true
//	    ttl: 3600000
//	- id: summarize
//	  toolId: template
//	  inputs:
//	    template: "{{ .title }}"
//	    data:
//	      $ref: fetch.body
//
// Definitions are decoded with sigs.k8s.io/yaml so that inputs use the same
// JSON decoding as programmatically built workflows.
//
// # History
//
// HistoryStore records every finished run under
// <configPath>/runs/<workflowId>/<runId>.json and lists them newest first.
package workflow
