// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package overseer

import (
	"context"
	"errors"
	"fmt"

	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/lib/metered"
)

// subsystemContext is the context the overseer hands to a registered subsystem.
type subsystemContext[M, O any] struct {
	overseer *Overseer
	entry    *subsystemEntry
	sender   *sender[O]
}

func (c *subsystemContext[M, O]) TryRecv() (msg parachaintypes.FromOrchestra[M], ok bool, err error) {
	signal, ok, err := c.entry.signals.TryRecv()
	if err != nil {
		return msg, false, fmt.Errorf("receiving signal for %s: %w", c.entry.name, err)
	}
	if ok {
		return parachaintypes.NewSignal[M](signal), true, nil
	}

	received, ok, err := c.entry.messages.TryRecv()
	if err != nil && !errors.Is(err, metered.ErrClosed) {
		return msg, false, fmt.Errorf("receiving message for %s: %w", c.entry.name, err)
	}
	if !ok {
		return msg, false, nil
	}

	message, ok := received.(M)
	if !ok {
		return msg, false, fmt.Errorf("%w: %T", parachaintypes.ErrUnknownOverseerMessage, received)
	}
	return parachaintypes.NewCommunication(message), true, nil
}

func (c *subsystemContext[M, O]) Recv(ctx context.Context) (parachaintypes.FromOrchestra[M], error) {
	for {
		signalsChanged := c.entry.signals.Changed()
		messagesChanged := c.entry.messages.Changed()

		msg, ok, err := c.TryRecv()
		if err != nil {
			return msg, err
		}
		if ok {
			return msg, nil
		}

		select {
		case <-signalsChanged:
		case <-messagesChanged:
		case <-ctx.Done():
			return msg, ctx.Err()
		}
	}
}

func (c *subsystemContext[M, O]) RecvSignal(ctx context.Context) (parachaintypes.OverseerSignal, error) {
	signal, err := c.entry.signals.Recv(ctx)
	if err != nil {
		return nil, fmt.Errorf("receiving signal for %s: %w", c.entry.name, err)
	}
	return signal, nil
}

func (c *subsystemContext[M, O]) Spawn(name string, task func(ctx context.Context)) error {
	return c.overseer.spawn(c.entry.name, name, false, task)
}

func (c *subsystemContext[M, O]) SpawnBlocking(name string, task func(ctx context.Context)) error {
	return c.overseer.spawn(c.entry.name, name, true, task)
}

func (c *subsystemContext[M, O]) Sender() SubsystemSender[O] {
	return c.sender
}

// sender routes messages of type O to the subsystem accepting their dynamic type.
type sender[O any] struct {
	overseer *Overseer
	from     parachaintypes.SubSystemName
}

func (s *sender[O]) SendMessage(ctx context.Context, msg O) error {
	return s.SendMessageWithPriority(ctx, msg, metered.NormalPriority)
}

func (s *sender[O]) SendMessageWithPriority(ctx context.Context, msg O, priority metered.Priority) error {
	entry, err := s.overseer.route(msg)
	if err != nil {
		return err
	}
	return entry.messages.SendWithPriority(ctx, msg, priority)
}

func (s *sender[O]) TrySendMessage(msg O) error {
	return s.TrySendMessageWithPriority(msg, metered.NormalPriority)
}

func (s *sender[O]) TrySendMessageWithPriority(msg O, priority metered.Priority) error {
	entry, err := s.overseer.route(msg)
	if err != nil {
		return err
	}

	err = entry.messages.TrySendWithPriority(msg, priority)
	var trySendErr *metered.TrySendError[any]
	if errors.As(err, &trySendErr) {
		return metered.MapTrySendError(trySendErr, msg)
	}
	return err
}

func (s *sender[O]) SendMessages(ctx context.Context, msgs []O) error {
	for i, msg := range msgs {
		err := s.SendMessage(ctx, msg)
		if err != nil {
			return fmt.Errorf("sending message %d of %d: %w", i+1, len(msgs), err)
		}
	}
	return nil
}

func (s *sender[O]) SendUnboundedMessage(msg O) {
	entry, err := s.overseer.route(msg)
	if err != nil {
		logger.Errorf("sending unbounded message from %s: %s", s.from, err)
		return
	}

	err = entry.messages.SendUnbounded(msg)
	if err != nil {
		logger.Debugf("dropping unbounded message %T from %s: %s", msg, s.from, err)
	}
}
