package passphrase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("STAKE_TEST_PASS", "from-env")
	src := NewSource("STAKE_TEST_PASS", "staker")
	src.prompt = func(string) (string, bool, error) {
		t.Fatal("prompt should not run")
		return "", false, nil
	}
	got, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "from-env", got)
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("STAKE_TEST_PASS", "  ")
	_, err := NewSource("STAKE_TEST_PASS", "staker").Get()
	require.ErrorContains(t, err, "set but empty")
}

func TestSourcePromptsOnce(t *testing.T) {
	calls := 0
	src := NewSource("", "ledger")
	src.prompt = func(label string) (string, bool, error) {
		calls++
		require.Equal(t, "ledger", label)
		return "secret", true, nil
	}
	for i := 0; i < 2; i++ {
		got, err := src.Get()
		require.NoError(t, err)
		require.Equal(t, "secret", got)
	}
	require.Equal(t, 1, calls)
}

func TestSourceWithoutTerminal(t *testing.T) {
	src := NewSource("STAKE_TEST_UNSET_PASS", "")
	src.prompt = func(string) (string, bool, error) { return "", false, nil }
	_, err := src.Get()
	require.ErrorContains(t, err, "STAKE_TEST_UNSET_PASS")

	failing := NewSource("", "staker")
	failing.prompt = func(string) (string, bool, error) { return "", true, errors.New("tty closed") }
	_, err = failing.Get()
	require.ErrorContains(t, err, "tty closed")

	blank := NewSource("", "staker")
	blank.prompt = func(string) (string, bool, error) { return " ", true, nil }
	_, err = blank.Get()
	require.ErrorContains(t, err, "cannot be empty")
}
