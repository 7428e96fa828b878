// Command bqagent answers a natural language question about one BigQuery
// table by letting a language model explore the table through a fixed set of
// tools until it commits to a final query.
//
//	bqagent -c key.json -p "How many orders were paid last week?" -n 10
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
