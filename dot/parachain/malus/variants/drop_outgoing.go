// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package variants

import (
	"github.com/ChainSafe/malus/dot/parachain/malus"
	"github.com/ChainSafe/malus/dot/parachain/messages"
)

// NewDropOutgoing drops the outgoing messages of the subsystem named name
// for which match returns true.
func NewDropOutgoing[M, O any](name string, match func(O) bool, metrics *malus.Metrics) *malus.FuncInterceptor[M, O] {
	return &malus.FuncInterceptor[M, O]{
		Name:         name,
		NeedOutgoing: match,
		Metrics:      metrics,
	}
}

// IsLocalStatement matches the statements issued by the backing subsystem.
func IsLocalStatement(msg messages.CandidateBackingOutgoing) bool {
	_, ok := msg.(messages.IssueLocalStatement)
	return ok
}
