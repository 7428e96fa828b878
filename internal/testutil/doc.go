// Package testutil contains helpers used across tests to reduce boilerplate
// when constructing data sources and tool calls. They are not intended for
// production usage.
package testutil
