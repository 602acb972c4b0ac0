// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package seqlog provides the hash-chained, monotonically-sequenced
// append-only log primitive shared by the audit log and the
// process-improvement flag log: multi-writer, append-only stores where every
// entry carries a strictly increasing sequence number and a hash linking it
// to the entry before it, so tampering with or reordering history is
// detectable.
package seqlog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
)

// GenesisHash seeds the chain before any entry has been appended.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Chain is a thread-safe sequence/hash-chain cursor. It holds no entries
// itself — callers store their own typed records — it only hands out the
// next (Sequence, PrevHash) pair and computes the resulting EntryHash, so the
// same primitive can back both the audit log and the flag log without
// forcing them to share a record type.
type Chain struct {
	mu       sync.Mutex
	sequence int64
	prevHash string
}

// NewChain starts a fresh chain at the genesis hash.
func NewChain() *Chain {
	return &Chain{prevHash: GenesisHash}
}

// Next reserves the next sequence number and previous hash for a record
// about to be appended. Next takes no record content: the caller computes
// the record's hash by calling EntryHash with the returned sequence/prevHash
// and its own field map (excluding Sequence/PrevHash/EntryHash themselves),
// then calls Commit once the record is durably written.
func (c *Chain) Next() (sequence int64, prevHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sequence + 1, c.prevHash
}

// Commit advances the chain's state after a record at (sequence, entryHash)
// has been durably written. Callers must call Commit exactly once per Next,
// in the same order Next was called, or the chain will desynchronize from
// the underlying store.
func (c *Chain) Commit(sequence int64, entryHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sequence != c.sequence+1 {
		return fmt.Errorf("seqlog: out-of-order commit: expected sequence %d, got %d", c.sequence+1, sequence)
	}
	c.sequence = sequence
	c.prevHash = entryHash
	return nil
}

// EntryHash computes the SHA-256 hash of a record given its sequence number,
// previous hash, and a canonical field map. Field maps must use only
// JSON-marshalable values and the same key set on every call for a given
// record type, or chain verification across a log will be meaningless.
func EntryHash(sequence int64, prevHash string, fields map[string]any) (string, error) {
	canonical := map[string]any{
		"sequence":  sequence,
		"prev_hash": prevHash,
		"fields":    fields,
	}
	encoded, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("seqlog: encoding record for hashing: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// Verify walks a slice of (sequence, prevHash, entryHash, fields) tuples in
// order and confirms the chain is unbroken: sequence numbers increase by
// exactly 1, each prevHash matches the previous entry's entryHash, and each
// entryHash recomputes correctly from its own fields.
func Verify(entries []Entry) error {
	prevHash := GenesisHash
	var prevSeq int64
	for i, e := range entries {
		if e.Sequence != prevSeq+1 {
			return fmt.Errorf("seqlog: entry %d has out-of-order sequence %d (expected %d)", i, e.Sequence, prevSeq+1)
		}
		if e.PrevHash != prevHash {
			return fmt.Errorf("seqlog: entry %d prev_hash mismatch: chain broken", i)
		}
		recomputed, err := EntryHash(e.Sequence, e.PrevHash, e.Fields)
		if err != nil {
			return fmt.Errorf("seqlog: entry %d: %w", i, err)
		}
		if recomputed != e.EntryHash {
			return fmt.Errorf("seqlog: entry %d entry_hash mismatch: record was modified after writing", i)
		}
		prevHash = e.EntryHash
		prevSeq = e.Sequence
	}
	return nil
}

// Entry is the generic shape Verify operates over; concrete log record
// types convert to/from it for verification without adopting it as their
// storage representation.
type Entry struct {
	Sequence  int64
	PrevHash  string
	EntryHash string
	Fields    map[string]any
}
