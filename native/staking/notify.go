package staking

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"golang.org/x/text/unicode/norm"
)

// IntentKind is the action requested by an incoming transfer.
type IntentKind uint8

const (
	IntentStake IntentKind = iota + 1
	IntentFund
)

func (k IntentKind) String() string {
	switch k {
	case IntentStake:
		return "stake"
	case IntentFund:
		return "fund"
	default:
		return "unknown"
	}
}

// Intent is a parsed transfer message.
type Intent struct {
	Kind IntentKind
	// Lockup in seconds; zero selects the default.
	Lockup uint64
}

// ParseIntent decodes a transfer message. Accepted forms are "fund", "stake",
// "stake:<duration>" where duration is Go syntax ("2160h") or whole seconds,
// and the empty message which stakes with the default lockup.
func ParseIntent(message string) (Intent, error) {
	msg := strings.ToLower(strings.TrimSpace(norm.NFKC.String(message)))
	switch {
	case msg == "" || msg == "stake":
		return Intent{Kind: IntentStake}, nil
	case msg == "fund":
		return Intent{Kind: IntentFund}, nil
	case strings.HasPrefix(msg, "stake:"):
		lockup, err := parseLockup(strings.TrimSpace(strings.TrimPrefix(msg, "stake:")))
		if err != nil {
			return Intent{}, err
		}
		return Intent{Kind: IntentStake, Lockup: lockup}, nil
	default:
		return Intent{}, fmt.Errorf("%w: %q", ErrUnknownIntent, message)
	}
}

func parseLockup(raw string) (uint64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: empty lockup", ErrInvalidLockup)
	}
	if secs, err := strconv.ParseUint(raw, 10, 64); err == nil {
		if secs == 0 {
			return 0, fmt.Errorf("%w: zero lockup", ErrInvalidLockup)
		}
		return secs, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidLockup, err)
	}
	if d < time.Second || d%time.Second != 0 {
		return 0, fmt.Errorf("%w: %s is not a positive whole number of seconds", ErrInvalidLockup, d)
	}
	return uint64(d / time.Second), nil
}

// NotifyTransfer handles tokens delivered by the token ledger on behalf of
// sender. It returns the amount the ledger should refund: zero on success and
// the full amount when the call fails.
func (e *Engine) NotifyTransfer(caller, sender [20]byte, amount *uint256.Int, message string) (*uint256.Int, error) {
	refund := copyAmount(amount)
	if err := e.requireLedger(caller); err != nil {
		return refund, err
	}
	if isZero(amount) {
		return refund, ErrInvalidAmount
	}
	intent, err := ParseIntent(message)
	if err != nil {
		return refund, err
	}
	err = e.execute(context.Background(), func(tx *txn) error {
		switch intent.Kind {
		case IntentFund:
			if err := e.requireOperator(sender); err != nil {
				return err
			}
			_, err := e.fund(tx, sender, amount)
			return err
		case IntentStake:
			_, err := e.appendStake(tx, sender, amount, intent.Lockup)
			return err
		default:
			return ErrUnknownIntent
		}
	})
	if err != nil {
		return refund, err
	}
	return zeroAmount(), nil
}
