package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainStatement = "occgraph/statement/v1"
	DomainPattern   = "occgraph/pattern/v1"
	DomainWatch     = "occgraph/watch/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash canonically marshals v and hashes it under domain.
func ContentHash(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ContentHash(%s): failed to marshal: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// StatementID computes the content-addressed ID of a statement.
// Two statements have the same ID iff they are equal.
func StatementID(s Statement) (string, error) {
	if err := s.Validate(); err != nil {
		return "", fmt.Errorf("StatementID: %w", err)
	}
	return ContentHash(DomainStatement, s)
}

// MustStatementID is like StatementID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStatementID(s Statement) string {
	id, err := StatementID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// WatchTag computes the result tag for a watched query modified at generation.
func WatchTag(name string, generation int64) string {
	data := []byte(name + "@" + strconv.FormatInt(generation, 10))
	return hashWithDomain(DomainWatch, data)
}
