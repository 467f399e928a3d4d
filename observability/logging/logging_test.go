package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestSetupEmitsServiceFieldsAndRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "stakingd.log")
	logger, closer := Setup("stakingd", "test", Options{Level: "debug", File: path, Output: &buf})
	logger.Debug("round settled", slog.Uint64("round", 7), MaskField("token", "abc"), slog.String("ledger_signature", "0xdead"))
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["service"] != "stakingd" || line["env"] != "test" || line["severity"] != "DEBUG" {
		t.Fatalf("unexpected envelope %v", line)
	}
	if line["message"] != "round settled" || line["token"] != RedactedValue || line["ledger_signature"] != RedactedValue {
		t.Fatalf("unexpected fields %v", line)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte("round settled")) {
		t.Fatalf("log file missing line")
	}
}

func TestMaskFieldOnlyMasksSensitiveKeys(t *testing.T) {
	if attr := MaskField("account", "stake1xyz"); attr.Value.String() != "stake1xyz" {
		t.Fatalf("account should not be masked")
	}
	if attr := MaskField("Authorization", "Bearer abc"); attr.Value.String() != RedactedValue {
		t.Fatalf("authorization should be masked")
	}
	if attr := MaskField("token_ledger", "stake1ledger"); attr.Value.String() != "stake1ledger" {
		t.Fatalf("token_ledger is a public address")
	}
	if attr := MaskField("jwt_secret", ""); attr.Value.String() != "" {
		t.Fatalf("empty values should pass through")
	}
	if ParseLevel("WARN") != slog.LevelWarn || ParseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("unexpected level parsing")
	}
}
