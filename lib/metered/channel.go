// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package metered

import (
	"context"
	"fmt"
	"sync"

	"github.com/ChainSafe/malus/internal/log"
	"github.com/gammazero/deque"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "metered"))

// Priority is the priority of a message sent on a channel.
// High priority messages are received before normal priority ones.
type Priority uint8

const (
	// NormalPriority is the default priority.
	NormalPriority Priority = iota
	// HighPriority messages jump ahead of queued normal priority messages.
	HighPriority
)

func (p Priority) String() string {
	switch p {
	case NormalPriority:
		return "normal"
	case HighPriority:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}

type item[T any] struct {
	value   T
	bounded bool
}

// Channel is a named multi-producer multi-consumer channel.
// Bounded sends wait while the number of queued bounded messages
// is at capacity, unbounded sends never wait.
// Every send, receive and drop is recorded in the channel metrics.
type Channel[T any] struct {
	name             string
	capacity         int
	queueSizeWarning int
	metrics          *Metrics

	mutex        sync.Mutex
	high         deque.Deque[item[T]]
	normal       deque.Deque[item[T]]
	bounded      int
	closed       bool
	warningFired bool
	// changed is closed and replaced every time the channel state changes.
	changed chan struct{}
}

// Option is an optional setting for a channel.
type Option func(s *settings)

type settings struct {
	queueSizeWarning int
	metrics          *Metrics
}

// QueueSizeWarning sets the queue length at which an error is logged,
// once per channel. Zero disables the warning.
func QueueSizeWarning(size int) Option {
	return func(s *settings) {
		s.queueSizeWarning = size
	}
}

// WithMetrics sets the metrics to record to. It defaults to DefaultMetrics().
func WithMetrics(metrics *Metrics) Option {
	return func(s *settings) {
		s.metrics = metrics
	}
}

// New creates a channel named name. A capacity of zero or less
// makes the bounded lane unbounded.
func New[T any](name string, capacity int, options ...Option) *Channel[T] {
	var s settings
	for _, option := range options {
		option(&s)
	}
	if s.metrics == nil {
		s.metrics = DefaultMetrics()
	}

	return &Channel[T]{
		name:             name,
		capacity:         capacity,
		queueSizeWarning: s.queueSizeWarning,
		metrics:          s.metrics,
		changed:          make(chan struct{}),
	}
}

// Name returns the name of the channel.
func (c *Channel[T]) Name() string {
	return c.name
}

// Len returns the number of queued messages.
func (c *Channel[T]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.high.Len() + c.normal.Len()
}

// Changed returns a channel closed on the next state change of the channel.
// It lets a caller wait on several channels at once without missing a
// message sent after its last check.
func (c *Channel[T]) Changed() <-chan struct{} {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.changed
}

// Send sends a message with normal priority, waiting for capacity
// if the channel is full.
func (c *Channel[T]) Send(ctx context.Context, msg T) error {
	return c.SendWithPriority(ctx, msg, NormalPriority)
}

// SendWithPriority sends a message with the priority given, waiting for
// capacity if the channel is full. It returns an error wrapping ErrClosed
// if the channel is closed, or the context error if the context is done
// before there is capacity.
func (c *Channel[T]) SendWithPriority(ctx context.Context, msg T, priority Priority) error {
	for {
		c.mutex.Lock()
		if c.closed {
			c.mutex.Unlock()
			return fmt.Errorf("sending on %s: %w", c.name, ErrClosed)
		}

		if c.hasCapacityLocked() {
			c.pushLocked(item[T]{value: msg, bounded: true}, priority)
			c.mutex.Unlock()
			return nil
		}

		changed := c.changed
		c.mutex.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TrySend sends a message with normal priority without waiting.
func (c *Channel[T]) TrySend(msg T) error {
	return c.TrySendWithPriority(msg, NormalPriority)
}

// TrySendWithPriority sends a message without waiting. On failure it
// returns a *TrySendError[T] holding msg.
func (c *Channel[T]) TrySendWithPriority(msg T, priority Priority) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return NewClosedError(msg)
	}

	if !c.hasCapacityLocked() {
		return NewFullError(msg)
	}

	c.pushLocked(item[T]{value: msg, bounded: true}, priority)
	return nil
}

// SendUnbounded sends a message ignoring the channel capacity.
// It only fails with a *TrySendError[T] if the channel is closed.
func (c *Channel[T]) SendUnbounded(msg T) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return NewClosedError(msg)
	}

	c.pushLocked(item[T]{value: msg}, NormalPriority)
	return nil
}

// Recv waits for a message. Queued messages are still delivered after the
// channel is closed; once drained it returns ErrClosed.
func (c *Channel[T]) Recv(ctx context.Context) (msg T, err error) {
	for {
		c.mutex.Lock()
		msg, ok := c.popLocked()
		if ok {
			c.mutex.Unlock()
			return msg, nil
		}

		if c.closed {
			c.mutex.Unlock()
			return msg, ErrClosed
		}

		changed := c.changed
		c.mutex.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryRecv returns a queued message if there is one. It returns ErrClosed
// if the channel is closed and drained.
func (c *Channel[T]) TryRecv() (msg T, ok bool, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	msg, ok = c.popLocked()
	if !ok && c.closed {
		return msg, false, ErrClosed
	}
	return msg, ok, nil
}

// Close closes the channel for sending. Queued messages can still be
// received. It is safe to call Close more than once.
func (c *Channel[T]) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.notifyLocked()
}

// Drop closes the channel and discards all queued messages,
// counting them as dropped.
func (c *Channel[T]) Drop() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	count := c.high.Len() + c.normal.Len()
	c.high.Clear()
	c.normal.Clear()
	c.bounded = 0
	c.metrics.dropped(c.name, count)
	c.closed = true
	c.notifyLocked()
}

func (c *Channel[T]) hasCapacityLocked() bool {
	return c.capacity <= 0 || c.bounded < c.capacity
}

func (c *Channel[T]) pushLocked(it item[T], priority Priority) {
	if priority == HighPriority {
		c.high.PushBack(it)
	} else {
		c.normal.PushBack(it)
	}
	if it.bounded {
		c.bounded++
	}

	size := c.high.Len() + c.normal.Len()
	c.metrics.sent(c.name, size)

	if c.queueSizeWarning > 0 && size >= c.queueSizeWarning && !c.warningFired {
		c.warningFired = true
		logger.Errorf("the number of unprocessed messages in channel %s exceeded %d",
			c.name, c.queueSizeWarning)
	}

	c.notifyLocked()
}

func (c *Channel[T]) popLocked() (msg T, ok bool) {
	var it item[T]
	switch {
	case c.high.Len() > 0:
		it = c.high.PopFront()
	case c.normal.Len() > 0:
		it = c.normal.PopFront()
	default:
		return msg, false
	}

	if it.bounded {
		c.bounded--
	}
	c.metrics.received(c.name, c.high.Len()+c.normal.Len())
	c.notifyLocked()
	return it.value, true
}

func (c *Channel[T]) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}
