package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stakeledger/native/staking"
)

const minimalConfig = `
listen: ":9000"
store:
  backend: bolt
  path: /tmp/ledger.db
journal:
  driver: sqlite
  dsn: "file::memory:"
engine:
  operator: "0x00000000000000000000000000000000000000aa"
  token_ledger: "0x00000000000000000000000000000000000000bb"
  max_lockup: 8760h
  tier_boosts:
    queen: 13000
auth:
  hmac_secret_env: STAKINGD_TEST_SECRET
ledger:
  endpoint: "http://ledger.local/"
  signer_key: "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stakingd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("STAKINGD_TEST_SECRET", "s3cret")
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.HMACSecret != "s3cret" {
		t.Fatalf("expected secret resolved from environment, got %q", cfg.Auth.HMACSecret)
	}
	if cfg.Ledger.Endpoint != "http://ledger.local" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Ledger.Endpoint)
	}
	if cfg.Ledger.SignerKey[:2] == "0x" {
		t.Fatalf("expected hex prefix stripped")
	}
	if cfg.Reconciler.Interval.Duration != time.Minute {
		t.Fatalf("unexpected reconciler interval %s", cfg.Reconciler.Interval)
	}
	if cfg.Engine.RoundBatch != staking.DefaultRoundBatch {
		t.Fatalf("unexpected round batch %d", cfg.Engine.RoundBatch)
	}

	params, err := cfg.Engine.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.MaxLockup != 365*24*60*60 {
		t.Fatalf("unexpected max lockup %d", params.MaxLockup)
	}
	if params.BoostFor(staking.TierQueen) != 13000 {
		t.Fatalf("expected queen boost override")
	}
	if params.BoostFor(staking.TierDrone) != 10_500 {
		t.Fatalf("expected default drone boost")
	}
	if got := params.Weights.WeightFor(100 * 24 * 60 * 60); got != 15_000 {
		t.Fatalf("unexpected default weight %d", got)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("STAKINGD_TEST_SECRET", "s3cret")
	tests := []struct {
		name   string
		mutate func(string) string
	}{
		{name: "store backend", mutate: func(s string) string { return replace(s, "backend: bolt", "backend: rocks") }},
		{name: "journal driver", mutate: func(s string) string { return replace(s, "driver: sqlite", "driver: mysql") }},
		{name: "operator", mutate: func(s string) string {
			return replace(s, `operator: "0x00000000000000000000000000000000000000aa"`, `operator: "nope"`)
		}},
		{name: "tier", mutate: func(s string) string { return replace(s, "queen: 13000", "king: 13000") }},
		{name: "lockup bounds", mutate: func(s string) string { return replace(s, "max_lockup: 8760h", "max_lockup: 1h") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.mutate(minimalConfig))); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadBoundsLockupByDefault(t *testing.T) {
	t.Setenv("STAKINGD_TEST_SECRET", "s3cret")
	cfg, err := Load(writeConfig(t, replace(minimalConfig, "  max_lockup: 8760h\n", "")))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	params, err := cfg.Engine.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.MaxLockup != staking.DefaultMaxLockup {
		t.Fatalf("expected default max lockup, got %d", params.MaxLockup)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	body := replace(minimalConfig, "hmac_secret_env: STAKINGD_TEST_SECRET", "issuer: stakeledger")
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected missing secret to fail")
	}
}

func replace(s, old, new string) string {
	if !strings.Contains(s, old) {
		panic("substring not found: " + old)
	}
	return strings.Replace(s, old, new, 1)
}
