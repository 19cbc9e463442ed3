// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package metered

import (
	"errors"
)

var (
	// ErrFull is returned by non-blocking sends when the bounded lane
	// of a channel has reached its capacity.
	ErrFull = errors.New("channel is full")
	// ErrClosed is returned by sends on a closed channel and by receives
	// on a closed and drained channel.
	ErrClosed = errors.New("channel is closed")
)

// TrySendError is returned by non-blocking sends. It hands the message
// back to the caller so it can be inspected or sent again.
type TrySendError[T any] struct {
	Err     error
	Message T
}

// NewFullError returns a TrySendError for a full channel.
func NewFullError[T any](msg T) *TrySendError[T] {
	return &TrySendError[T]{Err: ErrFull, Message: msg}
}

// NewClosedError returns a TrySendError for a closed channel.
func NewClosedError[T any](msg T) *TrySendError[T] {
	return &TrySendError[T]{Err: ErrClosed, Message: msg}
}

func (e *TrySendError[T]) Error() string {
	return e.Err.Error()
}

func (e *TrySendError[T]) Unwrap() error {
	return e.Err
}

// IsFull returns true if the send failed because the channel was full.
func (e *TrySendError[T]) IsFull() bool {
	return errors.Is(e.Err, ErrFull)
}

// IsClosed returns true if the send failed because the channel was closed.
func (e *TrySendError[T]) IsClosed() bool {
	return errors.Is(e.Err, ErrClosed)
}

// MapTrySendError returns a TrySendError with the same cause as err
// carrying msg instead of the original message.
func MapTrySendError[T, U any](err *TrySendError[T], msg U) *TrySendError[U] {
	return &TrySendError[U]{Err: err.Err, Message: msg}
}
