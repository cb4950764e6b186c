// Package hashtrack decides whether a generated module may be reused
// from a previous export. Content fingerprints use CRC32 Castagnoli,
// which is fast enough to compute on every export and strong enough
// for change detection between two exports of the same project.
//
// The tracker owns no persistent store: the caller supplies the
// prior-fingerprint mapping with the export request and retains the
// updated mapping from the result for the next incremental export.
package hashtrack

import (
	"hash/crc32"
	"strconv"
)

// Hashes maps a module identifier to its content fingerprint.
// An absent entry means "treat as changed".
type Hashes map[string]string

// Clone returns a copy of the mapping. A nil receiver yields an empty,
// non-nil mapping.
func (h Hashes) Clone() Hashes {
	out := make(Hashes, len(h))
	for k, v := range h {
		out[k] = v
	}

	return out
}

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Fingerprint computes the content fingerprint for a module source.
func Fingerprint(content []byte) string {
	return strconv.FormatUint(uint64(crc32.Checksum(content, crcTable)), 16)
}

// Tracker compares prior fingerprints against fresh ones and records
// the fresh values. It never mutates the prior mapping: Updated returns
// a new mapping so concurrent exports of the same project stay safe.
type Tracker struct {
	prior Hashes
	fresh Hashes
	force bool
}

// NewTracker creates a tracker over the caller-supplied prior mapping.
// When force is true every module is treated as changed.
func NewTracker(prior Hashes, force bool) *Tracker {
	return &Tracker{
		prior: prior,
		fresh: make(Hashes),
		force: force,
	}
}

// ShouldRegenerate reports whether the module must be regenerated.
// It returns false only when a prior fingerprint exists and equals the
// fresh one; a missing entry, a differing fingerprint or a forced full
// rebuild all return true. The fresh fingerprint is recorded either way.
func (t *Tracker) ShouldRegenerate(moduleID, fresh string) bool {
	t.fresh[moduleID] = fresh

	if t.force {
		return true
	}

	prior, ok := t.prior[moduleID]
	if !ok {
		return true
	}

	return prior != fresh
}

// Updated returns a copy of the fresh fingerprints recorded so far.
// The caller persists this mapping for the next incremental export.
func (t *Tracker) Updated() Hashes {
	return t.fresh.Clone()
}
