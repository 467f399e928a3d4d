package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"stakeledger/cmd/internal/passphrase"
	"stakeledger/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func defaultProfilePath() string {
	if env := strings.TrimSpace(os.Getenv("STAKE_CLI_PROFILE")); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "stake-cli.toml"
	}
	return filepath.Join(home, ".stakeledger", "profile.toml")
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("stake-cli", flag.ContinueOnError)
	global.SetOutput(stderr)
	profilePath := global.String("profile", defaultProfilePath(), "path to the stake-cli TOML profile")
	endpoint := global.String("endpoint", "", "stakingd base URL (overrides the profile)")
	global.Usage = func() { fmt.Fprint(stderr, usage()) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage())
		return 2
	}

	profile, err := config.Load(*profilePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading profile: %v\n", err)
		return 1
	}
	if *endpoint != "" {
		profile.Endpoint = strings.TrimRight(*endpoint, "/")
	}
	c := newCLI(profile, *profilePath, stdout, stderr)
	c.keyPass = passphrase.NewSource(profile.PassphraseEnv, "staker keystore")
	c.ledgerPass = passphrase.NewSource("STAKE_CLI_LEDGER_PASSPHRASE", "ledger keystore")

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "keygen":
		return c.runKeygen(cmdArgs)
	case "address":
		return c.runAddress(cmdArgs)
	case "token":
		return c.runToken(cmdArgs)
	case "account":
		return c.runAccount(cmdArgs)
	case "events":
		return c.runEvents(cmdArgs)
	case "pool":
		return c.runPool(cmdArgs)
	case "funding":
		return c.runFunding(cmdArgs)
	case "settlements":
		return c.runSettlements(cmdArgs)
	case "weights":
		return c.runWeights(cmdArgs)
	case "claim":
		return c.runLifecycle("claim", cmdArgs)
	case "unstake":
		return c.runLifecycle("unstake", cmdArgs)
	case "retry":
		return c.runRetry(cmdArgs)
	case "admin":
		return c.runAdmin(cmdArgs)
	case "ledger":
		return c.runLedger(cmdArgs)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(stderr, usage())
		return 2
	}
}

func usage() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "Usage: stake-cli [--profile path] [--endpoint url] <command> [options]")
	fmt.Fprintln(b, "Keys:")
	fmt.Fprintln(b, "  keygen        Create the staker keystore referenced by the profile")
	fmt.Fprintln(b, "  address       Print the staker address")
	fmt.Fprintln(b, "  token         Mint a bearer token from a shared HMAC secret (dev)")
	fmt.Fprintln(b, "Queries:")
	fmt.Fprintln(b, "  account       Show an account with its records")
	fmt.Fprintln(b, "  events        List journaled events of an account")
	fmt.Fprintln(b, "  pool          Show the reward pool")
	fmt.Fprintln(b, "  funding       List funding log entries")
	fmt.Fprintln(b, "  settlements   List recent distribution settlements")
	fmt.Fprintln(b, "  weights       Show the lockup weight table and tier boosts")
	fmt.Fprintln(b, "Staker actions:")
	fmt.Fprintln(b, "  claim         Claim credited rewards of a record")
	fmt.Fprintln(b, "  unstake       Withdraw a record with its rewards")
	fmt.Fprintln(b, "  retry         Re-initiate a stuck transfer")
	fmt.Fprintln(b, "Operator:")
	fmt.Fprintln(b, "  admin         distribute | step | abort | round | tier | transfers | retry | export")
	fmt.Fprintln(b, "Token ledger simulation:")
	fmt.Fprintln(b, "  ledger        notify | confirm | fail")
	return b.String()
}
