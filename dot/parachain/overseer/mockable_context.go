// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package overseer

import (
	"context"
	"fmt"
	"sync"
	"testing"

	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/lib/metered"
	"github.com/gammazero/deque"
)

// SentMessage is a message recorded by a MockableContext sender.
type SentMessage[O any] struct {
	Message   O
	Priority  metered.Priority
	Unbounded bool
}

// MockableContext is a SubsystemContext driven by hand, used to test a single
// subsystem. Messages and signals are delivered in the order they are received.
type MockableContext[M, O any] struct {
	t      *testing.T
	ctx    context.Context
	cancel context.CancelFunc

	incoming *metered.Channel[parachaintypes.FromOrchestra[M]]
	sender   *MockableSender[O]

	mutex   sync.Mutex
	pending deque.Deque[parachaintypes.FromOrchestra[M]]
	spawned []string

	wg     sync.WaitGroup
	runErr error
}

// NewMockableContext returns a MockableContext with an unbounded incoming queue.
func NewMockableContext[M, O any](t *testing.T) *MockableContext[M, O] {
	ctx, cancel := context.WithCancel(context.Background())

	return &MockableContext[M, O]{
		t:        t,
		ctx:      ctx,
		cancel:   cancel,
		incoming: metered.New[parachaintypes.FromOrchestra[M]]("mockable-"+t.Name(), 0),
		sender:   &MockableSender[O]{t: t},
	}
}

// Start starts the subsystem with this context as its context.
func (m *MockableContext[M, O]) Start(sub Subsystem[M, O]) {
	spawned := sub.Start(m)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := spawned.Future(m.ctx)
		m.mutex.Lock()
		m.runErr = err
		m.mutex.Unlock()
	}()
}

// Stop cancels the context, waits for the subsystem and its tasks and returns
// the error of the subsystem.
func (m *MockableContext[M, O]) Stop() error {
	m.cancel()
	m.incoming.Close()
	m.wg.Wait()

	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.runErr
}

// ReceiveMessage method is to receive overseer messages in a subsystem which we are testing
func (m *MockableContext[M, O]) ReceiveMessage(msg M) {
	err := m.incoming.SendUnbounded(parachaintypes.NewCommunication(msg))
	if err != nil {
		m.t.Errorf("receiving message %T: %s", msg, err)
	}
}

// ReceiveSignal delivers a signal to the subsystem under test.
func (m *MockableContext[M, O]) ReceiveSignal(signal parachaintypes.OverseerSignal) {
	err := m.incoming.SendUnbounded(parachaintypes.NewSignal[M](signal))
	if err != nil {
		m.t.Errorf("receiving signal %T: %s", signal, err)
	}
}

// Close closes the incoming queue. Once drained, receives return metered.ErrClosed.
func (m *MockableContext[M, O]) Close() {
	m.incoming.Close()
}

// ExpectActions method is to set expected actions for overseer messages we receive from the subsystem.
// actions are expected in the order they are set.
// all the functions in the arguments should return false if the message is unexpected.
func (m *MockableContext[M, O]) ExpectActions(fns ...func(msg O) bool) {
	m.sender.expectActions(fns...)
}

// MockSender returns the recording sender of the context.
func (m *MockableContext[M, O]) MockSender() *MockableSender[O] {
	return m.sender
}

// Spawned returns the names of the tasks spawned so far.
func (m *MockableContext[M, O]) Spawned() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string(nil), m.spawned...)
}

func (m *MockableContext[M, O]) TryRecv() (parachaintypes.FromOrchestra[M], bool, error) {
	m.mutex.Lock()
	if m.pending.Len() > 0 {
		msg := m.pending.PopFront()
		m.mutex.Unlock()
		return msg, true, nil
	}
	m.mutex.Unlock()

	return m.incoming.TryRecv()
}

func (m *MockableContext[M, O]) Recv(ctx context.Context) (parachaintypes.FromOrchestra[M], error) {
	m.mutex.Lock()
	if m.pending.Len() > 0 {
		msg := m.pending.PopFront()
		m.mutex.Unlock()
		return msg, nil
	}
	m.mutex.Unlock()

	return m.incoming.Recv(ctx)
}

// RecvSignal returns the next signal. Messages received before it are kept
// for the following receives.
func (m *MockableContext[M, O]) RecvSignal(ctx context.Context) (parachaintypes.OverseerSignal, error) {
	for {
		msg, err := m.incoming.Recv(ctx)
		if err != nil {
			return nil, err
		}
		if msg.IsSignal() {
			return msg.Signal, nil
		}

		m.mutex.Lock()
		m.pending.PushBack(msg)
		m.mutex.Unlock()
	}
}

func (m *MockableContext[M, O]) Spawn(name string, task func(ctx context.Context)) error {
	if m.ctx.Err() != nil {
		return fmt.Errorf("spawning %s: %w", name, ErrOverseerStopped)
	}

	m.mutex.Lock()
	m.spawned = append(m.spawned, name)
	m.mutex.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		task(m.ctx)
	}()
	return nil
}

func (m *MockableContext[M, O]) SpawnBlocking(name string, task func(ctx context.Context)) error {
	return m.Spawn(name, task)
}

func (m *MockableContext[M, O]) Sender() SubsystemSender[O] {
	return m.sender
}

// MockableSender is a SubsystemSender recording the messages sent.
// It can be set full or closed to exercise send failures.
type MockableSender[O any] struct {
	t *testing.T

	mutex       sync.Mutex
	sent        []SentMessage[O]
	full        bool
	closed      bool
	actions     []func(msg O) bool
	actionIndex int
}

// NewMockableSender returns an empty MockableSender.
func NewMockableSender[O any](t *testing.T) *MockableSender[O] {
	return &MockableSender[O]{t: t}
}

// SetFull makes bounded sends fail as if the receiver was full.
func (s *MockableSender[O]) SetFull(full bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.full = full
}

// Close makes all sends fail as if the receiver was gone.
func (s *MockableSender[O]) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
}

// Sent returns the messages sent so far, in order.
func (s *MockableSender[O]) Sent() []O {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	msgs := make([]O, len(s.sent))
	for i, sent := range s.sent {
		msgs[i] = sent.Message
	}
	return msgs
}

// SentMessages returns the messages sent so far with their send options.
func (s *MockableSender[O]) SentMessages() []SentMessage[O] {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]SentMessage[O](nil), s.sent...)
}

func (s *MockableSender[O]) expectActions(fns ...func(msg O) bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.actions = append(s.actions, fns...)
}

func (s *MockableSender[O]) SendMessage(ctx context.Context, msg O) error {
	return s.SendMessageWithPriority(ctx, msg, metered.NormalPriority)
}

func (s *MockableSender[O]) SendMessageWithPriority(ctx context.Context, msg O, priority metered.Priority) error {
	s.mutex.Lock()
	closed, full := s.closed, s.full
	s.mutex.Unlock()

	switch {
	case closed:
		return fmt.Errorf("sending %T: %w", msg, metered.ErrClosed)
	case full:
		<-ctx.Done()
		return ctx.Err()
	}

	s.record(SentMessage[O]{Message: msg, Priority: priority})
	return nil
}

func (s *MockableSender[O]) TrySendMessage(msg O) error {
	return s.TrySendMessageWithPriority(msg, metered.NormalPriority)
}

func (s *MockableSender[O]) TrySendMessageWithPriority(msg O, priority metered.Priority) error {
	s.mutex.Lock()
	closed, full := s.closed, s.full
	s.mutex.Unlock()

	switch {
	case closed:
		return metered.NewClosedError(msg)
	case full:
		return metered.NewFullError(msg)
	}

	s.record(SentMessage[O]{Message: msg, Priority: priority})
	return nil
}

func (s *MockableSender[O]) SendMessages(ctx context.Context, msgs []O) error {
	for _, msg := range msgs {
		err := s.SendMessage(ctx, msg)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *MockableSender[O]) SendUnboundedMessage(msg O) {
	s.mutex.Lock()
	closed := s.closed
	s.mutex.Unlock()

	if closed {
		return
	}
	s.record(SentMessage[O]{Message: msg, Unbounded: true})
}

func (s *MockableSender[O]) record(sent SentMessage[O]) {
	s.mutex.Lock()
	s.sent = append(s.sent, sent)
	var action func(msg O) bool
	if s.actionIndex < len(s.actions) {
		action = s.actions[s.actionIndex]
		s.actionIndex++
	}
	s.mutex.Unlock()

	if action != nil && !action(sent.Message) {
		s.t.Errorf("unexpected message: %T", sent.Message)
	}
}
