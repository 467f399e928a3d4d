package main

import (
	"flag"
	"fmt"
	"net/http"
)

func (c *cli) runLifecycle(action string, args []string) int {
	fs := flag.NewFlagSet(action, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	record := fs.Uint64("record", 0, "stake record id")
	key := fs.String("idempotency-key", "", "reuse a key to safely retry the request")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *record == 0 {
		fmt.Fprintln(c.stderr, "Error: --record is required")
		return 2
	}
	return c.call(request{
		method:         http.MethodPost,
		path:           fmt.Sprintf("/v1/records/%d/%s", *record, action),
		auth:           true,
		idempotencyKey: *key,
	})
}

func (c *cli) runRetry(args []string) int {
	fs := flag.NewFlagSet("retry", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	transfer := fs.Uint64("transfer", 0, "pending transfer id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *transfer == 0 {
		fmt.Fprintln(c.stderr, "Error: --transfer is required")
		return 2
	}
	return c.call(request{method: http.MethodPost, path: fmt.Sprintf("/v1/transfers/%d/retry", *transfer), auth: true})
}
