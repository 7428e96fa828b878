// Package agent drives a language model through tool calls until it
// produces a validated final query or the iteration budget runs out.
//
// A Controller owns one transcript per Run. Every iteration it:
//
//  1. checks and consumes one unit of the budget
//  2. asks the model for exactly one tool call (tool choice "required")
//  3. records the call as an assistant turn
//  4. validates the arguments and, if valid, dispatches the call
//  5. records the result as a tool turn
//
// and returns an explicit Outcome. A successful final_query terminates the
// run; a missing tool call, an unknown tool, a model failure or an exhausted
// budget fail it with a *RunError naming the cause. Validation errors and tool
// failures are handed back to the model and the loop continues.
package agent
