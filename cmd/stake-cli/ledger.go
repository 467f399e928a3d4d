package main

import (
	"flag"
	"fmt"
	"net/http"
	"strings"

	"stakeledger/crypto"
)

// runLedger signs callbacks with the token ledger key so a staking deployment
// can be exercised without a live ledger.
func (c *cli) runLedger(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(c.stderr, ledgerUsage())
		return 2
	}
	switch args[0] {
	case "notify":
		return c.runNotify(args[1:])
	case "confirm":
		return c.runTransferCallback("confirm", args[1:])
	case "fail":
		return c.runTransferCallback("fail", args[1:])
	default:
		fmt.Fprintf(c.stderr, "Unknown ledger subcommand: %s\n", args[0])
		fmt.Fprint(c.stderr, ledgerUsage())
		return 2
	}
}

func ledgerUsage() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "Usage: stake-cli ledger <subcommand> [options]")
	fmt.Fprintln(b, "Subcommands:")
	fmt.Fprintln(b, "  notify   Deliver a transfer notification (stake or fund)")
	fmt.Fprintln(b, "  confirm  Confirm a pending outbound transfer")
	fmt.Fprintln(b, "  fail     Report a failed outbound transfer")
	return b.String()
}

func (c *cli) ledgerKey() (*crypto.PrivateKey, error) {
	path := strings.TrimSpace(c.profile.LedgerKeystorePath)
	if path == "" {
		return nil, fmt.Errorf("LedgerKeystorePath is not set in the profile")
	}
	pass, err := c.ledgerPass.Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func (c *cli) runNotify(args []string) int {
	fs := flag.NewFlagSet("ledger notify", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	sender := fs.String("from", "", "sender address (defaults to the keystore address)")
	amount := fs.String("amount", "", "amount delivered")
	message := fs.String("message", "stake", `transfer message: "stake", "stake:<lockup>" or "fund"`)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *amount == "" {
		fmt.Fprintln(c.stderr, "Error: --amount is required")
		return 2
	}
	from, err := c.resolveAccount(*sender)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	key, err := c.ledgerKey()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	return c.call(request{
		method:    http.MethodPost,
		path:      "/v1/ledger/notify",
		body:      map[string]string{"sender": from, "amount": *amount, "message": *message},
		ledgerKey: key,
	})
}

func (c *cli) runTransferCallback(action string, args []string) int {
	fs := flag.NewFlagSet("ledger "+action, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	transfer := fs.Uint64("transfer", 0, "pending transfer id")
	reason := fs.String("reason", "", "failure reason (fail only)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *transfer == 0 {
		fmt.Fprintln(c.stderr, "Error: --transfer is required")
		return 2
	}
	key, err := c.ledgerKey()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	req := request{
		method:    http.MethodPost,
		path:      fmt.Sprintf("/v1/ledger/transfers/%d/%s", *transfer, action),
		ledgerKey: key,
	}
	if action == "fail" {
		req.body = map[string]string{"reason": *reason}
	}
	return c.call(req)
}
