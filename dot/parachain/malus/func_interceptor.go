// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package malus

import (
	"sync/atomic"

	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/internal/log"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-malus"))

// Stats counts the decisions of an interceptor.
type Stats struct {
	IncomingPassed   int64
	IncomingDropped  int64
	OutgoingPassed   int64
	OutgoingReplaced int64
	OutgoingDropped  int64
}

// FuncInterceptor is a MessageInterceptor built from functions.
// A nil function lets messages through. It must be used by pointer.
type FuncInterceptor[M, O any] struct {
	// Name labels the metrics and logs, usually the name of the subsystem.
	Name string
	// Incoming filters incoming messages.
	Incoming func(sender overseer.SubsystemSender[O],
		msg parachaintypes.FromOrchestra[M]) (parachaintypes.FromOrchestra[M], bool)
	// NeedOutgoing selects the outgoing messages passed to Outgoing.
	NeedOutgoing func(msg O) bool
	// Outgoing replaces or drops the selected outgoing messages.
	// If nil, the selected messages are dropped.
	Outgoing func(msg O) (O, bool)
	Metrics  *Metrics

	incomingPassed   atomic.Int64
	incomingDropped  atomic.Int64
	outgoingPassed   atomic.Int64
	outgoingReplaced atomic.Int64
	outgoingDropped  atomic.Int64
}

func (f *FuncInterceptor[M, O]) InterceptIncoming(sender overseer.SubsystemSender[O],
	msg parachaintypes.FromOrchestra[M]) (parachaintypes.FromOrchestra[M], bool) {
	if f.Incoming == nil {
		f.incomingPassed.Add(1)
		f.Metrics.Observe(f.Name, DirectionIncoming, DecisionPassed)
		return msg, true
	}

	kept, ok := f.Incoming(sender, msg)
	if !ok {
		f.incomingDropped.Add(1)
		f.Metrics.Observe(f.Name, DirectionIncoming, DecisionDropped)
		logger.Tracef("%s: swallowed incoming %s", f.Name, msg)
		return kept, false
	}

	f.incomingPassed.Add(1)
	f.Metrics.Observe(f.Name, DirectionIncoming, DecisionPassed)
	return kept, true
}

func (f *FuncInterceptor[M, O]) NeedInterceptOutgoing(msg O) bool {
	return f.NeedOutgoing != nil && f.NeedOutgoing(msg)
}

// ObserveOutgoingPassed counts a message sent without interception.
func (f *FuncInterceptor[M, O]) ObserveOutgoingPassed(O) {
	f.outgoingPassed.Add(1)
	f.Metrics.Observe(f.Name, DirectionOutgoing, DecisionPassed)
}

func (f *FuncInterceptor[M, O]) InterceptOutgoing(msg O) (O, bool) {
	if f.Outgoing == nil {
		f.outgoingDropped.Add(1)
		f.Metrics.Observe(f.Name, DirectionOutgoing, DecisionDropped)
		var zero O
		return zero, false
	}

	replacement, ok := f.Outgoing(msg)
	if !ok {
		f.outgoingDropped.Add(1)
		f.Metrics.Observe(f.Name, DirectionOutgoing, DecisionDropped)
		logger.Tracef("%s: dropped outgoing %T", f.Name, msg)
		return replacement, false
	}

	f.outgoingReplaced.Add(1)
	f.Metrics.Observe(f.Name, DirectionOutgoing, DecisionReplaced)
	logger.Tracef("%s: replaced outgoing %T with %T", f.Name, msg, replacement)
	return replacement, true
}

// Stats returns the decisions taken so far.
func (f *FuncInterceptor[M, O]) Stats() Stats {
	return Stats{
		IncomingPassed:   f.incomingPassed.Load(),
		IncomingDropped:  f.incomingDropped.Load(),
		OutgoingPassed:   f.outgoingPassed.Load(),
		OutgoingReplaced: f.outgoingReplaced.Load(),
		OutgoingDropped:  f.outgoingDropped.Load(),
	}
}
