package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

func (c *cli) runAccount(args []string) int {
	fs := flag.NewFlagSet("account", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	addr := fs.String("addr", "", "account address (defaults to the keystore address)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	account, err := c.resolveAccount(*addr)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	return c.call(request{method: http.MethodGet, path: "/v1/accounts/" + url.PathEscape(account)})
}

func (c *cli) runEvents(args []string) int {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	addr := fs.String("addr", "", "account address (defaults to the keystore address)")
	after := fs.Uint64("after", 0, "only events after this sequence")
	eventType := fs.String("type", "", "filter by event type")
	limit := fs.Int("limit", 50, "maximum events to return")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	account, err := c.resolveAccount(*addr)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	q := url.Values{}
	q.Set("after", strconv.FormatUint(*after, 10))
	q.Set("limit", strconv.Itoa(*limit))
	if *eventType != "" {
		q.Set("type", *eventType)
	}
	return c.call(request{method: http.MethodGet, path: "/v1/accounts/" + url.PathEscape(account) + "/events?" + q.Encode()})
}

func (c *cli) runPool(args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(c.stderr, "Usage: stake-cli pool")
		return 2
	}
	return c.call(request{method: http.MethodGet, path: "/v1/pool"})
}

func (c *cli) runFunding(args []string) int {
	fs := flag.NewFlagSet("funding", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	from := fs.Uint64("from", 0, "first sequence to return")
	limit := fs.Int("limit", 50, "maximum entries")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return c.call(request{method: http.MethodGet, path: fmt.Sprintf("/v1/pool/funding?from=%d&limit=%d", *from, *limit)})
}

func (c *cli) runSettlements(args []string) int {
	fs := flag.NewFlagSet("settlements", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	limit := fs.Int("limit", 10, "maximum settlements, newest first")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return c.call(request{method: http.MethodGet, path: fmt.Sprintf("/v1/settlements?limit=%d", *limit)})
}

func (c *cli) runWeights(args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(c.stderr, "Usage: stake-cli weights")
		return 2
	}
	return c.call(request{method: http.MethodGet, path: "/v1/weights"})
}
