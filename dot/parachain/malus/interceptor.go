// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package malus wraps subsystems so that the messages they receive and send
// can be observed, dropped or rewritten without changing the subsystems or
// the overseer.
package malus

import (
	"context"
	"errors"

	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/lib/metered"
	"github.com/gammazero/deque"
)

// OutgoingInterceptor decides what happens to the messages a subsystem sends.
type OutgoingInterceptor[O any] interface {
	// NeedInterceptOutgoing reports whether InterceptOutgoing must be consulted for msg.
	// It must not have side effects.
	NeedInterceptOutgoing(msg O) bool
	// InterceptOutgoing returns the message to send instead of msg,
	// or false to drop it.
	InterceptOutgoing(msg O) (O, bool)
}

// MessageInterceptor filters the messages of a subsystem receiving M and sending O.
// The same interceptor is shared by the context and the sender of a subsystem,
// and may be shared between subsystems, so implementations must be safe for
// concurrent use.
type MessageInterceptor[M, O any] interface {
	// InterceptIncoming returns the message to deliver to the subsystem,
	// or false to swallow it. sender is the sender of the wrapped context,
	// messages sent through it are not intercepted.
	InterceptIncoming(sender overseer.SubsystemSender[O],
		msg parachaintypes.FromOrchestra[M]) (parachaintypes.FromOrchestra[M], bool)
	OutgoingInterceptor[O]
}

// PassedObserver is implemented by interceptors that want to know about the
// outgoing messages forwarded without being intercepted.
type PassedObserver[O any] interface {
	ObserveOutgoingPassed(msg O)
}

// Passthrough lets every message through. Embed it in an interceptor to only
// implement the methods it needs.
type Passthrough[M, O any] struct{}

func (Passthrough[M, O]) InterceptIncoming(_ overseer.SubsystemSender[O],
	msg parachaintypes.FromOrchestra[M]) (parachaintypes.FromOrchestra[M], bool) {
	return msg, true
}

func (Passthrough[M, O]) NeedInterceptOutgoing(O) bool {
	return false
}

// InterceptOutgoing drops the message.
func (Passthrough[M, O]) InterceptOutgoing(O) (msg O, ok bool) {
	return msg, false
}

// Conversion converts a message S into the outgoing union O and back.
// From must recover the S Into was called with.
type Conversion[S, O any] struct {
	Into func(msg S) O
	From func(msg O) (S, bool)
}

// Identity is the conversion of a union to itself.
func Identity[O any]() Conversion[O, O] {
	return Conversion[O, O]{
		Into: func(msg O) O { return msg },
		From: func(msg O) (O, bool) { return msg, true },
	}
}

// Variant is the conversion of a type implementing the interface O to O.
// Into panics if S does not implement O.
func Variant[S, O any]() Conversion[S, O] {
	return Conversion[S, O]{
		Into: func(msg S) O { return any(msg).(O) },
		From: func(msg O) (S, bool) {
			s, ok := any(msg).(S)
			return s, ok
		},
	}
}

// InterceptedSender sends messages of type S through a sender of the union O,
// consulting the interceptor before every send.
type InterceptedSender[S, O any] struct {
	inner       overseer.SubsystemSender[O]
	interceptor OutgoingInterceptor[O]
	conv        Conversion[S, O]
}

// NewInterceptedSender returns a sender filtering the messages sent through inner.
func NewInterceptedSender[S, O any](inner overseer.SubsystemSender[O], interceptor OutgoingInterceptor[O],
	conv Conversion[S, O]) *InterceptedSender[S, O] {
	return &InterceptedSender[S, O]{
		inner:       inner,
		interceptor: interceptor,
		conv:        conv,
	}
}

// intercept returns the message to forward, false if it is dropped.
func (s *InterceptedSender[S, O]) intercept(msg S) (union O, replacement O, forward bool) {
	union = s.conv.Into(msg)
	if !s.interceptor.NeedInterceptOutgoing(union) {
		s.recoverOriginal(union)
		if observer, ok := s.interceptor.(PassedObserver[O]); ok {
			observer.ObserveOutgoingPassed(union)
		}
		return union, union, true
	}

	replacement, forward = s.interceptor.InterceptOutgoing(union)
	return union, replacement, forward
}

func (s *InterceptedSender[S, O]) recoverOriginal(union O) S {
	original, ok := s.conv.From(union)
	if !ok {
		panic("must be able to recover the original message")
	}
	return original
}

func (s *InterceptedSender[S, O]) SendMessage(ctx context.Context, msg S) error {
	return s.SendMessageWithPriority(ctx, msg, metered.NormalPriority)
}

func (s *InterceptedSender[S, O]) SendMessageWithPriority(ctx context.Context, msg S,
	priority metered.Priority) error {
	_, out, forward := s.intercept(msg)
	if !forward {
		return nil
	}
	return s.inner.SendMessageWithPriority(ctx, out, priority)
}

func (s *InterceptedSender[S, O]) TrySendMessage(msg S) error {
	return s.TrySendMessageWithPriority(msg, metered.NormalPriority)
}

// TrySendMessageWithPriority sends without waiting. A dropped message is a
// success. A failure is a *metered.TrySendError[S] holding the message given,
// even when a replacement was sent in its place.
func (s *InterceptedSender[S, O]) TrySendMessageWithPriority(msg S, priority metered.Priority) error {
	union, out, forward := s.intercept(msg)
	if !forward {
		return nil
	}

	err := s.inner.TrySendMessageWithPriority(out, priority)
	if err == nil {
		return nil
	}

	var trySendErr *metered.TrySendError[O]
	if errors.As(err, &trySendErr) {
		return metered.MapTrySendError(trySendErr, s.recoverOriginal(union))
	}
	return err
}

// SendMessages sends the messages one by one in order. It stops at the first
// failure, messages sent before it stay sent.
func (s *InterceptedSender[S, O]) SendMessages(ctx context.Context, msgs []S) error {
	for _, msg := range msgs {
		err := s.SendMessage(ctx, msg)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *InterceptedSender[S, O]) SendUnboundedMessage(msg S) {
	_, out, forward := s.intercept(msg)
	if !forward {
		return
	}
	s.inner.SendUnboundedMessage(out)
}

// InterceptedContext wraps the context of a subsystem, filtering the messages
// it receives and sends.
type InterceptedContext[M, O any] struct {
	inner       overseer.SubsystemContext[M, O]
	interceptor MessageInterceptor[M, O]
	sender      *InterceptedSender[O, O]
	// messages received while waiting for a signal, delivered before newer ones.
	buffer deque.Deque[parachaintypes.FromOrchestra[M]]
}

// NewInterceptedContext returns a context filtering the messages of inner with interceptor.
func NewInterceptedContext[M, O any](inner overseer.SubsystemContext[M, O],
	interceptor MessageInterceptor[M, O]) *InterceptedContext[M, O] {
	return &InterceptedContext[M, O]{
		inner:       inner,
		interceptor: interceptor,
		sender:      NewInterceptedSender[O, O](inner.Sender(), interceptor, Identity[O]()),
	}
}

func (c *InterceptedContext[M, O]) filter(msg parachaintypes.FromOrchestra[M]) (
	parachaintypes.FromOrchestra[M], bool) {
	return c.interceptor.InterceptIncoming(c.inner.Sender(), msg)
}

// TryRecv returns the next message kept by the interceptor, if one is pending.
// Messages buffered by RecvSignal come first.
func (c *InterceptedContext[M, O]) TryRecv() (parachaintypes.FromOrchestra[M], bool, error) {
	if c.buffer.Len() > 0 {
		return c.buffer.PopFront(), true, nil
	}

	for {
		msg, ok, err := c.inner.TryRecv()
		if err != nil || !ok {
			return msg, ok, err
		}
		if msg, ok = c.filter(msg); ok {
			return msg, true, nil
		}
	}
}

// Recv delivers the messages buffered by RecvSignal first.
func (c *InterceptedContext[M, O]) Recv(ctx context.Context) (parachaintypes.FromOrchestra[M], error) {
	if c.buffer.Len() > 0 {
		return c.buffer.PopFront(), nil
	}

	for {
		msg, err := c.inner.Recv(ctx)
		if err != nil {
			return msg, err
		}
		if msg, ok := c.filter(msg); ok {
			return msg, nil
		}
	}
}

// RecvSignal waits for the next signal kept by the interceptor. Messages kept
// meanwhile are buffered for Recv.
func (c *InterceptedContext[M, O]) RecvSignal(ctx context.Context) (parachaintypes.OverseerSignal, error) {
	for {
		msg, err := c.inner.Recv(ctx)
		if err != nil {
			return nil, err
		}

		msg, ok := c.filter(msg)
		if !ok {
			continue
		}
		if msg.IsSignal() {
			return msg.Signal, nil
		}
		c.buffer.PushBack(msg)
	}
}

func (c *InterceptedContext[M, O]) Spawn(name string, task func(ctx context.Context)) error {
	return c.inner.Spawn(name, task)
}

func (c *InterceptedContext[M, O]) SpawnBlocking(name string, task func(ctx context.Context)) error {
	return c.inner.SpawnBlocking(name, task)
}

// Sender returns the intercepted sender.
func (c *InterceptedContext[M, O]) Sender() overseer.SubsystemSender[O] {
	return c.sender
}

// InterceptedSubsystem is a subsystem whose context is intercepted.
type InterceptedSubsystem[M, O any] struct {
	Subsystem   overseer.Subsystem[M, O]
	Interceptor MessageInterceptor[M, O]
}

// NewInterceptedSubsystem wraps subsystem with interceptor.
func NewInterceptedSubsystem[M, O any](subsystem overseer.Subsystem[M, O],
	interceptor MessageInterceptor[M, O]) *InterceptedSubsystem[M, O] {
	return &InterceptedSubsystem[M, O]{
		Subsystem:   subsystem,
		Interceptor: interceptor,
	}
}

// Start starts the wrapped subsystem with an intercepted context.
func (s *InterceptedSubsystem[M, O]) Start(sctx overseer.SubsystemContext[M, O]) overseer.SpawnedSubsystem {
	return s.Subsystem.Start(NewInterceptedContext(sctx, s.Interceptor))
}
