// Package config loads the stake-cli profile: where stakingd lives, which
// keystore identifies the caller and where bearer tokens come from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"stakeledger/crypto"
)

const (
	defaultEndpoint      = "http://localhost:7094"
	defaultPassphraseEnv = "STAKE_CLI_PASSPHRASE"
	defaultTokenEnv      = "STAKE_CLI_TOKEN"
)

// Profile is persisted as TOML next to the keystore it references.
type Profile struct {
	Endpoint      string `toml:"Endpoint"`
	KeystorePath  string `toml:"KeystorePath"`
	PassphraseEnv string `toml:"PassphraseEnv"`
	Token         string `toml:"Token,omitempty"`
	TokenEnv      string `toml:"TokenEnv"`
	// LedgerKeystorePath signs simulated token ledger callbacks in dev setups.
	LedgerKeystorePath string `toml:"LedgerKeystorePath,omitempty"`
	TimeoutSeconds     int    `toml:"TimeoutSeconds"`
}

// Load reads the profile at path. A missing file yields a default profile
// that is written back, without generating key material.
func Load(path string) (*Profile, error) {
	profile := &Profile{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}
	meta, err := toml.DecodeFile(path, profile)
	if err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("profile %s has unknown key %q", path, undecoded[0].String())
	}
	applyDefaults(path, profile)
	return profile, nil
}

// Save writes the profile to path.
func Save(path string, profile *Profile) error {
	return persist(path, profile)
}

// ResolveToken returns the inline token or the one held by TokenEnv.
func (p *Profile) ResolveToken() (string, error) {
	if token := strings.TrimSpace(p.Token); token != "" {
		return token, nil
	}
	if p.TokenEnv != "" {
		if token := strings.TrimSpace(os.Getenv(p.TokenEnv)); token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("no bearer token configured; set %s or Token in the profile", p.TokenEnv)
}

// LoadKey decrypts the profile keystore with passphrase.
func (p *Profile) LoadKey(passphrase string) (*crypto.PrivateKey, error) {
	if _, err := os.Stat(p.KeystorePath); err != nil {
		return nil, fmt.Errorf("keystore %s: %w (run stake-cli keygen)", p.KeystorePath, err)
	}
	return crypto.LoadFromKeystore(p.KeystorePath, passphrase)
}

func applyDefaults(path string, p *Profile) {
	p.Endpoint = strings.TrimRight(strings.TrimSpace(p.Endpoint), "/")
	if p.Endpoint == "" {
		p.Endpoint = defaultEndpoint
	}
	if p.KeystorePath == "" {
		p.KeystorePath = defaultKeystorePath(path)
	}
	if p.PassphraseEnv == "" {
		p.PassphraseEnv = defaultPassphraseEnv
	}
	if p.TokenEnv == "" {
		p.TokenEnv = defaultTokenEnv
	}
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = 15
	}
}

func createDefault(path string) (*Profile, error) {
	profile := &Profile{}
	applyDefaults(path, profile)
	if err := persist(path, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func persist(path string, profile *Profile) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(profile)
}

func defaultKeystorePath(profilePath string) string {
	dir := filepath.Dir(profilePath)
	if dir == "." {
		dir = ""
	}
	return filepath.Join(dir, "staker.keystore")
}
