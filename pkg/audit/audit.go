// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit implements the append-only, hash-chained audit log the
// Information Broker writes to whenever a category's policy requires it.
package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/seqlog"
	"github.com/aetheros-project/aetheros/pkg/store"
	"github.com/dgraph-io/badger/v4"
)

// Entry is one audit record. It is append-only: once written an Entry is
// never mutated or deleted for the life of the process.
type Entry struct {
	Sequence     int64                     `json:"sequence"`
	Timestamp    time.Time                 `json:"ts"`
	AgentID      string                    `json:"agent_id"`
	Category     access.InformationCategory `json:"category"`
	QuerySummary string                    `json:"query_summary"`
	Decision     string                    `json:"decision"`
	AccessLevel  access.AccessLevel        `json:"access_level"`
	Sanitized    bool                      `json:"sanitized"`
	PrevHash     string                    `json:"prev_hash"`
	EntryHash    string                    `json:"entry_hash"`
}

func (e Entry) fields() map[string]any {
	return map[string]any{
		"ts":            e.Timestamp.UTC().Format(time.RFC3339Nano),
		"agent_id":      e.AgentID,
		"category":      string(e.Category),
		"query_summary": e.QuerySummary,
		"decision":      e.Decision,
		"access_level":  int(e.AccessLevel),
		"sanitized":     e.Sanitized,
	}
}

// keyFor renders a sortable, fixed-width badger key so a prefix scan returns
// entries in sequence order.
func keyFor(sequence int64) []byte {
	return []byte(fmt.Sprintf("audit/%020d", sequence))
}

// Log is the multi-writer, append-only audit log. Safe for concurrent
// callers; writes serialize on the chain cursor so sequence numbers are
// never reused or skipped even under concurrent Append calls.
type Log struct {
	mu    sync.Mutex
	chain *seqlog.Chain
	db    *store.DB
}

// NewLog constructs a Log backed by db. The chain always starts at genesis:
// NewLog does not replay entries already present in db, and Log has no
// method that does.
func NewLog(db *store.DB) *Log {
	return &Log{chain: seqlog.NewChain(), db: db}
}

// Append records a new entry. ts, sequence, prevHash, and entryHash are
// computed by Append; callers supply only the semantic fields.
func (l *Log) Append(agentID string, category access.InformationCategory, querySummary, decision string, level access.AccessLevel, sanitized bool, now time.Time) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq, prevHash := l.chain.Next()
	entry := Entry{
		Sequence: seq, Timestamp: now, AgentID: agentID, Category: category,
		QuerySummary: querySummary, Decision: decision, AccessLevel: level,
		Sanitized: sanitized, PrevHash: prevHash,
	}
	hash, err := seqlog.EntryHash(seq, prevHash, entry.fields())
	if err != nil {
		return Entry{}, fmt.Errorf("audit: %w", err)
	}
	entry.EntryHash = hash

	if l.db != nil {
		encoded, err := json.Marshal(entry)
		if err != nil {
			return Entry{}, fmt.Errorf("audit: encoding entry: %w", err)
		}
		if err := l.db.Update(func(txn *badger.Txn) error {
			return txn.Set(keyFor(seq), encoded)
		}); err != nil {
			return Entry{}, fmt.Errorf("audit: persisting entry: %w", err)
		}
	}

	if err := l.chain.Commit(seq, hash); err != nil {
		return Entry{}, fmt.Errorf("audit: %w", err)
	}
	return entry, nil
}

// Verify reconstructs the chain from persisted entries and confirms it is
// unbroken, for operator-triggered integrity checks.
func (l *Log) Verify() error {
	entries, err := l.All()
	if err != nil {
		return err
	}
	chainEntries := make([]seqlog.Entry, 0, len(entries))
	for _, e := range entries {
		chainEntries = append(chainEntries, seqlog.Entry{
			Sequence: e.Sequence, PrevHash: e.PrevHash, EntryHash: e.EntryHash, Fields: e.fields(),
		})
	}
	return seqlog.Verify(chainEntries)
}

// All returns every persisted entry in sequence order.
func (l *Log) All() ([]Entry, error) {
	if l.db == nil {
		return nil, nil
	}
	var entries []Entry
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("audit/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				var e Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				entries = append(entries, e)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: reading entries: %w", err)
	}
	return entries, nil
}
