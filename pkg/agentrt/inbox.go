// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agentrt

// inboxCapacity bounds how many undelivered messages queue for one agent
// before SendMessage starts blocking the sender. Agents are expected to
// drain their inbox promptly; this is headroom, not a work queue.
const inboxCapacity = 64

// inbox is one agent's message queue. Messages enqueued by a single sender,
// in program order, are read back out in that same order — per-pair FIFO —
// because Go guarantees a buffered channel preserves send order. No
// ordering is promised across different senders.
type inbox struct {
	ch chan InboundMessage
}

func newInbox() *inbox {
	return &inbox{ch: make(chan InboundMessage, inboxCapacity)}
}

// C exposes the inbox's receive channel for an agent's processing loop:
//
//	for msg := range rt.Inbox(agentID) {
//	    result, err := handle(msg)
//	    msg.Reply(result, err)
//	}
func (b *inbox) C() <-chan InboundMessage {
	return b.ch
}
