package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"stakeledger/config"
	"stakeledger/crypto"
	"stakeledger/services/stakingd/ledgerclient"
)

type secretSource interface {
	Get() (string, error)
}

type cli struct {
	profile     *config.Profile
	profilePath string
	stdout      io.Writer
	stderr      io.Writer
	http        *http.Client
	keyPass     secretSource
	ledgerPass  secretSource
	now         func() time.Time
}

func newCLI(profile *config.Profile, profilePath string, stdout, stderr io.Writer) *cli {
	return &cli{
		profile:     profile,
		profilePath: profilePath,
		stdout:      stdout,
		stderr:      stderr,
		http:        &http.Client{Timeout: time.Duration(profile.TimeoutSeconds) * time.Second},
		now:         time.Now,
	}
}

// request describes one call against stakingd.
type request struct {
	method string
	path   string
	body   interface{}
	// auth attaches the profile bearer token.
	auth bool
	// idempotencyKey is generated when empty for mutating calls.
	idempotencyKey string
	// ledgerKey signs the request as the token ledger.
	ledgerKey *crypto.PrivateKey
}

type apiError struct {
	Status  int
	Message string
	Refund  string
}

func (e *apiError) Error() string {
	if e.Refund != "" {
		return fmt.Sprintf("stakingd returned %d: %s (refund %s)", e.Status, e.Message, e.Refund)
	}
	return fmt.Sprintf("stakingd returned %d: %s", e.Status, e.Message)
}

func (c *cli) do(req request) (json.RawMessage, error) {
	var payload []byte
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}
	httpReq, err := http.NewRequest(req.method, c.profile.Endpoint+req.path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.auth {
		token, err := c.profile.ResolveToken()
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if req.method != http.MethodGet {
		key := req.idempotencyKey
		if key == "" {
			key = uuid.NewString()
		}
		httpReq.Header.Set("Idempotency-Key", key)
	}
	if req.ledgerKey != nil {
		auth, err := ledgerclient.Sign(req.ledgerKey, c.now().Unix(), req.method, httpReq.URL.Path, payload)
		if err != nil {
			return nil, fmt.Errorf("sign ledger request: %w", err)
		}
		auth.Apply(httpReq.Header)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var body struct {
			Error  string `json:"error"`
			Refund string `json:"refund"`
		}
		if json.Unmarshal(raw, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(raw))
		}
		return nil, &apiError{Status: resp.StatusCode, Message: body.Error, Refund: body.Refund}
	}
	return raw, nil
}

func (c *cli) printJSON(raw json.RawMessage) {
	if len(raw) == 0 {
		fmt.Fprintln(c.stdout, "ok")
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		c.stdout.Write(raw)
		fmt.Fprintln(c.stdout)
		return
	}
	pretty.WriteByte('\n')
	c.stdout.Write(pretty.Bytes())
}

// call performs req and prints the response, returning an exit code.
func (c *cli) call(req request) int {
	raw, err := c.do(req)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	c.printJSON(raw)
	return 0
}

func decodeInto(raw json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func saveProfile(c *cli) error {
	return config.Save(c.profilePath, c.profile)
}

func (c *cli) stakerKey() (*crypto.PrivateKey, error) {
	pass, err := c.keyPass.Get()
	if err != nil {
		return nil, err
	}
	return c.profile.LoadKey(pass)
}

// resolveAccount returns the explicit address or the profile's own.
func (c *cli) resolveAccount(explicit string) (string, error) {
	if explicit != "" {
		addr, err := crypto.ParseAddress(explicit)
		if err != nil {
			return "", err
		}
		return crypto.FormatAddress(addr), nil
	}
	key, err := c.stakerKey()
	if err != nil {
		return "", err
	}
	return key.PubKey().Address().String(), nil
}
