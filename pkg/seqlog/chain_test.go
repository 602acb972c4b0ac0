// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package seqlog

import "testing"

func appendEntry(t *testing.T, c *Chain, fields map[string]any) Entry {
	t.Helper()
	seq, prevHash := c.Next()
	hash, err := EntryHash(seq, prevHash, fields)
	if err != nil {
		t.Fatalf("EntryHash failed: %v", err)
	}
	if err := c.Commit(seq, hash); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return Entry{Sequence: seq, PrevHash: prevHash, EntryHash: hash, Fields: fields}
}

func TestChain_SequenceIsStrictlyIncreasing(t *testing.T) {
	c := NewChain()
	e1 := appendEntry(t, c, map[string]any{"n": 1})
	e2 := appendEntry(t, c, map[string]any{"n": 2})
	if e1.Sequence != 1 || e2.Sequence != 2 {
		t.Fatalf("expected sequences 1, 2, got %d, %d", e1.Sequence, e2.Sequence)
	}
	if e2.PrevHash != e1.EntryHash {
		t.Fatal("expected second entry's prev_hash to equal first entry's entry_hash")
	}
}

func TestChain_VerifyDetectsTampering(t *testing.T) {
	c := NewChain()
	entries := []Entry{
		appendEntry(t, c, map[string]any{"n": 1}),
		appendEntry(t, c, map[string]any{"n": 2}),
		appendEntry(t, c, map[string]any{"n": 3}),
	}
	if err := Verify(entries); err != nil {
		t.Fatalf("expected a clean chain to verify, got: %v", err)
	}

	tampered := make([]Entry, len(entries))
	copy(tampered, entries)
	tampered[1].Fields = map[string]any{"n": 999}
	if err := Verify(tampered); err == nil {
		t.Fatal("expected tampering with an entry's fields to break verification")
	}
}

func TestChain_CommitRejectsOutOfOrderSequence(t *testing.T) {
	c := NewChain()
	if err := c.Commit(5, "whatever"); err == nil {
		t.Fatal("expected an out-of-order commit to be rejected")
	}
}
