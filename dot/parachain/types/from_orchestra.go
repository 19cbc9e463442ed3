// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import "fmt"

// FromOrchestra is what a subsystem receives from the overseer:
// either a signal, or a communication carrying a message of type M.
type FromOrchestra[M any] struct {
	// Signal is set for signals and nil for communications.
	Signal  OverseerSignal
	Message M
}

// NewSignal returns a FromOrchestra holding the signal given.
func NewSignal[M any](signal OverseerSignal) FromOrchestra[M] {
	return FromOrchestra[M]{Signal: signal}
}

// NewCommunication returns a FromOrchestra holding the message given.
func NewCommunication[M any](msg M) FromOrchestra[M] {
	return FromOrchestra[M]{Message: msg}
}

// IsSignal returns true if f holds a signal.
func (f FromOrchestra[M]) IsSignal() bool {
	return f.Signal != nil
}

func (f FromOrchestra[M]) String() string {
	if f.IsSignal() {
		return fmt.Sprintf("signal %T", f.Signal)
	}
	return fmt.Sprintf("communication %T", f.Message)
}
