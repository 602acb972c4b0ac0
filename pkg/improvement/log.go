// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package improvement

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/aetheros-project/aetheros/pkg/phase"
	"github.com/aetheros-project/aetheros/pkg/seqlog"
	"github.com/aetheros-project/aetheros/pkg/store"
)

func keyFor(sequence int64) []byte {
	return []byte(fmt.Sprintf("flag/%020d", sequence))
}

// Log is the append-only, hash-chained process-improvement flag log.
type Log struct {
	mu    sync.Mutex
	chain *seqlog.Chain
	db    *store.DB
}

// NewLog wires a flag log against db. Each process owns exactly one Log per
// underlying store, since the hash chain's cursor is held in memory.
func NewLog(db *store.DB) *Log {
	return &Log{chain: seqlog.NewChain(), db: db}
}

// Append records a new flag and returns it with its sequence and hash fields
// populated. now is passed in explicitly so callers (and tests) control the
// flag's timestamp rather than depending on wall-clock time.
func (l *Log) Append(cycleID string, ph phase.Phase, agentID, workflow string, kind InefficiencyType, description string, timeWastedHours *float64, suggestedImprovement string, now time.Time) (Flag, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sequence, prevHash := l.chain.Next()
	f := Flag{
		Sequence: sequence, CycleID: cycleID, Phase: ph, AgentID: agentID,
		Workflow: workflow, Type: kind, Description: description,
		TimeWastedHours: timeWastedHours, SuggestedImprovement: suggestedImprovement,
		CreatedAt: now, PrevHash: prevHash,
	}
	entryHash, err := seqlog.EntryHash(sequence, prevHash, f.fields())
	if err != nil {
		return Flag{}, fmt.Errorf("improvement: hash entry: %w", err)
	}
	f.EntryHash = entryHash

	payload, err := json.Marshal(f)
	if err != nil {
		return Flag{}, fmt.Errorf("improvement: marshal flag: %w", err)
	}
	if err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyFor(sequence), payload)
	}); err != nil {
		return Flag{}, fmt.Errorf("improvement: persist flag: %w", err)
	}
	if err := l.chain.Commit(sequence, entryHash); err != nil {
		return Flag{}, fmt.Errorf("improvement: commit chain: %w", err)
	}
	return f, nil
}

// All returns every flag recorded so far, in sequence order.
func (l *Log) All() ([]Flag, error) {
	var flags []Flag
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("flag/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var f Flag
				if err := json.Unmarshal(val, &f); err != nil {
					return err
				}
				flags = append(flags, f)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("improvement: scan flags: %w", err)
	}
	return flags, nil
}

// Verify recomputes the hash chain over every persisted flag and reports the
// first point of divergence, if any.
func (l *Log) Verify() error {
	flags, err := l.All()
	if err != nil {
		return err
	}
	entries := make([]seqlog.Entry, len(flags))
	for i, f := range flags {
		entries[i] = seqlog.Entry{Sequence: f.Sequence, PrevHash: f.PrevHash, EntryHash: f.EntryHash, Fields: f.fields()}
	}
	return seqlog.Verify(entries)
}
