// Package core provides the foundational domain types shared by the agent
// loop, the tool catalog and the model adapters:
//
//   - Content / Part (role-based conversation turns, tool calls and responses)
//   - Transcript (the append-only conversation state of one run)
//   - Budget (the loop iteration limit)
//   - ToolContext (per-invocation context handed to tool handlers)
//
// The package has no knowledge of concrete models, data sources or tools.
package core
