package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"stakeledger/crypto"
)

func (c *cli) runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	force := fs.Bool("force", false, "overwrite an existing keystore")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	path := c.profile.KeystorePath
	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(c.stderr, "Error: keystore %s already exists (use --force to replace)\n", path)
		return 1
	}
	pass, err := c.keyPass.Get()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error generating key: %v\n", err)
		return 1
	}
	if err := crypto.SaveToKeystore(path, key, pass); err != nil {
		fmt.Fprintf(c.stderr, "Error writing keystore: %v\n", err)
		return 1
	}
	fmt.Fprintf(c.stdout, "Keystore written to %s\n", path)
	fmt.Fprintf(c.stdout, "Address: %s\n", key.PubKey().Address().String())
	return 0
}

func (c *cli) runAddress(args []string) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	hexOut := fs.Bool("hex", false, "print the 0x form instead of bech32")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	key, err := c.stakerKey()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	addr := key.PubKey().Address()
	if *hexOut {
		fmt.Fprintf(c.stdout, "0x%x\n", addr.Bytes())
		return 0
	}
	fmt.Fprintln(c.stdout, addr.String())
	return 0
}

// runToken mints an HS256 bearer token for the profile's address. It needs
// the stakingd HMAC secret and is meant for development deployments.
func (c *cli) runToken(args []string) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	secretEnv := fs.String("secret-env", "STAKINGD_JWT_SECRET", "environment variable holding the HMAC secret")
	scope := fs.String("scope", "", "space separated scopes, e.g. operator")
	subject := fs.String("subject", "", "address to embed (defaults to the keystore address)")
	issuer := fs.String("issuer", "", "iss claim")
	audience := fs.String("audience", "", "aud claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	save := fs.Bool("save", false, "store the token in the profile")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	secret := strings.TrimSpace(os.Getenv(*secretEnv))
	if secret == "" {
		fmt.Fprintf(c.stderr, "Error: %s is empty\n", *secretEnv)
		return 1
	}
	if *ttl <= 0 {
		fmt.Fprintln(c.stderr, "Error: --ttl must be positive")
		return 1
	}
	sub, err := c.resolveAccount(*subject)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	now := c.now()
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(*ttl).Unix(),
	}
	if *scope != "" {
		claims["scope"] = *scope
	}
	if *issuer != "" {
		claims["iss"] = *issuer
	}
	if *audience != "" {
		claims["aud"] = *audience
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		fmt.Fprintf(c.stderr, "Error signing token: %v\n", err)
		return 1
	}
	if *save {
		c.profile.Token = signed
		if err := saveProfile(c); err != nil {
			fmt.Fprintf(c.stderr, "Error saving profile: %v\n", err)
			return 1
		}
	}
	fmt.Fprintln(c.stdout, signed)
	return 0
}
