package testutil

import (
	"encoding/json"

	"github.com/hupe1980/bqagent/core"
)

// Call builds a function call whose arguments are args encoded as JSON.
func Call(id, name string, args map[string]any) core.FunctionCall {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return core.FunctionCall{ID: id, Name: name, Arguments: string(raw)}
}

// RawCall builds a function call with a verbatim argument payload.
func RawCall(id, name, raw string) core.FunctionCall {
	return core.FunctionCall{ID: id, Name: name, Arguments: raw}
}
