package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces secrets in emitted log lines.
const RedactedValue = "[REDACTED]"

// Key fragments that mark an attribute as carrying credential material.
var sensitiveFragments = []string{
	"authorization",
	"passphrase",
	"private_key",
	"secret",
	"signature",
	"token",
}

// Keys that contain a sensitive fragment but only ever carry public data.
var publicKeys = map[string]struct{}{
	"token_ledger": {},
}

// IsSensitive reports whether values logged under key must be masked.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if _, ok := publicKeys[normalized]; ok {
		return false
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// SensitiveFragments returns the sorted key fragments that trigger masking.
func SensitiveFragments() []string {
	out := append([]string(nil), sensitiveFragments...)
	sort.Strings(out)
	return out
}

// MaskField builds a string attribute, masking non-empty values under a
// sensitive key.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || !IsSensitive(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// redactAttr is applied by the JSON handler so attributes logged with plain
// slog.String still get masked.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString || !IsSensitive(attr.Key) {
		return attr
	}
	if attr.Value.String() == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
