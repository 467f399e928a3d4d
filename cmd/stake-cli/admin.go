package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

func (c *cli) runAdmin(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(c.stderr, adminUsage())
		return 2
	}
	switch args[0] {
	case "distribute":
		return c.runDistribute(args[1:])
	case "step":
		return c.runStep(args[1:])
	case "abort":
		return c.call(request{method: http.MethodDelete, path: "/v1/admin/distributions", auth: true})
	case "round":
		return c.call(request{method: http.MethodGet, path: "/v1/admin/distributions/current", auth: true})
	case "tier":
		return c.runTier(args[1:])
	case "transfers":
		return c.runTransfers(args[1:])
	case "retry":
		return c.runOperatorRetry(args[1:])
	case "export":
		return c.runExport(args[1:])
	default:
		fmt.Fprintf(c.stderr, "Unknown admin subcommand: %s\n", args[0])
		fmt.Fprint(c.stderr, adminUsage())
		return 2
	}
}

func adminUsage() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "Usage: stake-cli admin <subcommand> [options]")
	fmt.Fprintln(b, "Subcommands:")
	fmt.Fprintln(b, "  distribute  Distribute a release from the pool (--paginated opens a round)")
	fmt.Fprintln(b, "  step        Advance the open round by one batch")
	fmt.Fprintln(b, "  abort       Abort the open round before crediting")
	fmt.Fprintln(b, "  round       Show the open round")
	fmt.Fprintln(b, "  tier        Assign an account tier")
	fmt.Fprintln(b, "  transfers   List pending transfers")
	fmt.Fprintln(b, "  retry       Re-initiate a pending transfer")
	fmt.Fprintln(b, "  export      Write Parquet audit exports")
	return b.String()
}

func (c *cli) runDistribute(args []string) int {
	fs := flag.NewFlagSet("admin distribute", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	release := fs.String("release", "", "amount to release from the pool")
	paginated := fs.Bool("paginated", false, "open a round advanced with admin step")
	drive := fs.Bool("drive", false, "with --paginated, step until the round closes")
	batch := fs.Int("batch", 0, "accounts per step when driving")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *release == "" {
		fmt.Fprintln(c.stderr, "Error: --release is required")
		return 2
	}
	raw, err := c.do(request{
		method: http.MethodPost,
		path:   "/v1/admin/distributions",
		auth:   true,
		body:   map[string]interface{}{"release": *release, "paginated": *paginated},
	})
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	c.printJSON(raw)
	if !*paginated || !*drive {
		return 0
	}
	return c.driveRound(*batch)
}

// driveRound steps the open round until it reports completion.
func (c *cli) driveRound(batch int) int {
	for {
		var outcome struct {
			Done bool `json:"done"`
		}
		raw, err := c.do(request{method: http.MethodPost, path: "/v1/admin/distributions/step", auth: true, body: map[string]int{"batch": batch}})
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		if err := decodeInto(raw, &outcome); err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		if outcome.Done {
			c.printJSON(raw)
			return 0
		}
	}
}

func (c *cli) runStep(args []string) int {
	fs := flag.NewFlagSet("admin step", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	batch := fs.Int("batch", 0, "accounts to visit, zero for the server default")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	return c.call(request{method: http.MethodPost, path: "/v1/admin/distributions/step", auth: true, body: map[string]int{"batch": *batch}})
}

func (c *cli) runTier(args []string) int {
	fs := flag.NewFlagSet("admin tier", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	account := fs.String("addr", "", "account address")
	tier := fs.String("tier", "", "none, drone, worker or queen")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *account == "" || *tier == "" {
		fmt.Fprintln(c.stderr, "Error: --addr and --tier are required")
		return 2
	}
	return c.call(request{method: http.MethodPost, path: "/v1/admin/tiers", auth: true, body: map[string]string{"account": *account, "tier": *tier}})
}

func (c *cli) runTransfers(args []string) int {
	fs := flag.NewFlagSet("admin transfers", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	after := fs.Uint64("after", 0, "only transfers with a larger id")
	limit := fs.Int("limit", 100, "maximum transfers")
	staleFor := fs.Duration("stale-for", 0, "only transfers untouched for at least this long")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(*limit))
	if *staleFor > 0 {
		q.Set("staleBefore", strconv.FormatInt(c.now().Add(-*staleFor).Unix(), 10))
	} else {
		q.Set("after", strconv.FormatUint(*after, 10))
	}
	return c.call(request{method: http.MethodGet, path: "/v1/admin/transfers?" + q.Encode(), auth: true})
}

func (c *cli) runOperatorRetry(args []string) int {
	fs := flag.NewFlagSet("admin retry", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	transfer := fs.Uint64("transfer", 0, "pending transfer id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *transfer == 0 {
		fmt.Fprintln(c.stderr, "Error: --transfer is required")
		return 2
	}
	return c.call(request{method: http.MethodPost, path: fmt.Sprintf("/v1/admin/transfers/%d/retry", *transfer), auth: true})
}

func (c *cli) runExport(args []string) int {
	fs := flag.NewFlagSet("admin export", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	kinds := fs.String("kinds", "", "comma separated: records, settlements, funding (default all)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	var list []string
	for _, kind := range strings.Split(*kinds, ",") {
		if kind = strings.TrimSpace(kind); kind != "" {
			list = append(list, kind)
		}
	}
	return c.call(request{method: http.MethodPost, path: "/v1/admin/exports", auth: true, body: map[string][]string{"kinds": list}})
}
