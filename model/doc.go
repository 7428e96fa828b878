// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCallResponse)
//   - Carry the tool choice policy ("required" for the agent loop)
//   - Facilitate lightweight mocking for tests (ScriptedModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface from this
// package so the agent loop remains decoupled from vendor SDKs.
package model
