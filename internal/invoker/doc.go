// Package invoker implements the tool side of workflow execution.
//
// A Registry routes tool ids to their implementation:
//
//   - builtin tools by exact name (echo, sleep, fail, template)
//   - "<server>/<tool>" ids to the MCP server named in config.yaml
//
// Every tool answers with the api.ToolResult envelope. MCP results are
// converted from CallToolResult: structured content is used when present,
// otherwise text content is parsed as JSON and falls back to the raw text.
// A result flagged IsError becomes a failure with code "tool_error".
package invoker
