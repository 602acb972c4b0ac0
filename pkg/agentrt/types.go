// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agentrt implements the Agent Runtime: the per-agent facade over
// context provisioning, doctrinal-procedure instrumentation, and
// point-to-point/broadcast messaging, gated throughout by which agents the
// Phase Orchestrator currently considers active.
package agentrt

// InboundMessage is one message delivered to an agent's inbox. The receiving
// agent's processing loop must call Reply exactly once per InboundMessage it
// reads off the channel, or the sender's SendMessage call blocks until its
// context deadline expires.
type InboundMessage struct {
	From    string
	To      string
	Type    string
	Payload any

	reply chan Reply
}

// Reply replies to the message with payload and err, unblocking the
// sender's SendMessage call. Only the first Reply reaches the sender; the
// reply channel has a single slot and the sender reads it at most once, so
// a later value is never read, and a call made while that slot is still
// full blocks forever.
func (m InboundMessage) Reply(payload any, err error) {
	m.reply <- Reply{Payload: payload, Err: err}
}

// Reply is the result a sender receives from SendMessage.
type Reply struct {
	Payload any
	Err     error
}
