package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves a keystore passphrase once, from an environment variable or
// an interactive prompt, and caches the result.
type Source struct {
	envVar string
	label  string

	// prompt reads a secret from the terminal; tests replace it.
	prompt func(label string) (string, bool, error)

	once  sync.Once
	value string
	err   error
}

// NewSource builds a source that checks envVar before prompting for label.
func NewSource(envVar, label string) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "keystore"
	}
	return &Source{envVar: strings.TrimSpace(envVar), label: label, prompt: terminalPrompt(os.Stdin, os.Stderr)}
}

// Get returns the passphrase. Whitespace-only values are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}
		value, interactive, err := s.prompt(s.label)
		switch {
		case err != nil:
			s.err = fmt.Errorf("read %s passphrase: %w", s.label, err)
		case !interactive && s.envVar != "":
			s.err = fmt.Errorf("%s passphrase required; set %s or run interactively", s.label, s.envVar)
		case !interactive:
			s.err = fmt.Errorf("%s passphrase required and no terminal available", s.label)
		case strings.TrimSpace(value) == "":
			s.err = errors.New(s.label + " passphrase cannot be empty")
		default:
			s.value = value
		}
	})
	return s.value, s.err
}

func terminalPrompt(in *os.File, out io.Writer) func(string) (string, bool, error) {
	return func(label string) (string, bool, error) {
		fd := int(in.Fd())
		if !term.IsTerminal(fd) {
			return "", false, nil
		}
		fmt.Fprintf(out, "Enter %s passphrase: ", label)
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", true, err
		}
		return string(secret), true, nil
	}
}
