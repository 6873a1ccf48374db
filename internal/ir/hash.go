package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed digests.
// The version suffix allows a future algorithm migration.
const (
	DomainSummary = "stepwise/summary/v1"
	DomainChain   = "stepwise/chain/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SummaryDigest computes the content digest of one timestep summary.
// Two runs that observe the same entities receiving the same messages in the
// same timestep produce the same digest, whichever strategy executed them.
func SummaryDigest(s Summary) (string, error) {
	canonical, err := MarshalCanonical(s.Object())
	if err != nil {
		return "", fmt.Errorf("SummaryDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSummary, canonical), nil
}

// ChainDigest folds a summary digest into the running digest of a run.
// The first timestep chains from the empty string.
func ChainDigest(prev, summary string) string {
	return hashWithDomain(DomainChain, []byte(prev+":"+summary))
}

// MustSummaryDigest is like SummaryDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSummaryDigest(s Summary) string {
	d, err := SummaryDigest(s)
	if err != nil {
		panic(err)
	}
	return d
}
