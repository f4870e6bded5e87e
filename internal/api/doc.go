// Package api defines the data model shared by every stepflow package.
//
// It contains no behaviour beyond small helpers, so any package can import it
// without pulling in the runner, cache or invokers.
//
// # Workflows and steps
//
// A Workflow is an ordered list of Steps. Each Step names a tool, declares its
// inputs, and optionally configures an error policy, retries, a pre-execution
// delay and caching:
//
//	id: capture
//	steps:
//	  - id: region
//	    toolId: ui/select-region
//	    cache: {enabled: true, key: main-region}
//	  - id: shot
//	    toolId: screen/capture
//	    inputs:
//	      $merge:
//	        - {$ref: region}
//	        - {format: png}
//	  - id: text
//	    toolId: ocr/read
//	    onError: continue
//	    retryCount: 2
//	    inputs:
//	      image: {$semantic: latest, tool: screen/capture, path: file}
//
// # Inputs
//
// Step inputs form the Input sum type with the cases Literal, Reference,
// Merge, Composite, List and Semantic. ParseInput builds the tree from the
// declarative form and EncodeInput turns it back. The Inputs wrapper makes the
// tree part of JSON documents; YAML definitions are converted to JSON first.
//
// # Results
//
// A run produces a WorkflowResult holding one StepResult per executed step in
// execution order (StepResults), plus cache statistics.
//
// # Tools
//
// ToolInvoker is the contract for running tools. Tools answer with a
// ToolResult envelope; ToolError carries the failure details. Invokers that
// know a sensible cache lifetime for their tools implement TTLProvider.
package api
