// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package overseer

import (
	"context"

	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/dot/types"
	"github.com/ChainSafe/malus/lib/metered"
)

// SubsystemSender sends messages of type T to other subsystems through the overseer.
type SubsystemSender[T any] interface {
	// SendMessage sends a message with normal priority, waiting for capacity.
	SendMessage(ctx context.Context, msg T) error
	// SendMessageWithPriority sends a message with the given priority, waiting for capacity.
	SendMessageWithPriority(ctx context.Context, msg T, priority metered.Priority) error
	// TrySendMessage sends a message without waiting. A failure is a *metered.TrySendError[T]
	// holding the message.
	TrySendMessage(msg T) error
	TrySendMessageWithPriority(msg T, priority metered.Priority) error
	// SendMessages sends the messages in order, stopping at the first failure.
	SendMessages(ctx context.Context, msgs []T) error
	// SendUnboundedMessage sends a message ignoring the capacity of the receiver.
	SendUnboundedMessage(msg T)
}

// SubsystemContext is handed to a subsystem when it is started. It receives
// messages of type M and signals, and sends messages of type O.
type SubsystemContext[M, O any] interface {
	// TryRecv returns a pending signal or message without waiting.
	// ok is false when there is nothing to receive.
	TryRecv() (msg parachaintypes.FromOrchestra[M], ok bool, err error)
	// Recv waits for the next signal or message. Pending signals come first.
	Recv(ctx context.Context) (parachaintypes.FromOrchestra[M], error)
	// RecvSignal waits for the next signal.
	RecvSignal(ctx context.Context) (parachaintypes.OverseerSignal, error)
	// Spawn runs a task in the background.
	Spawn(name string, task func(ctx context.Context)) error
	// SpawnBlocking runs a task which may block in the background.
	SpawnBlocking(name string, task func(ctx context.Context)) error
	// Sender returns the sender for outgoing messages.
	Sender() SubsystemSender[O]
}

// SpawnedSubsystem is a started subsystem: its name and the future running it.
type SpawnedSubsystem struct {
	Name   string
	Future func(ctx context.Context) error
}

// Subsystem is an interface for subsystems to be registered with the overseer.
type Subsystem[M, O any] interface {
	Start(sctx SubsystemContext[M, O]) SpawnedSubsystem
}

// BlockState is the interface for the block state used to follow imported
// and finalised blocks.
type BlockState interface {
	GetImportedBlockNotifierChannel() chan *types.Block
	FreeImportedBlockNotifierChannel(ch chan *types.Block)
	GetFinalisedNotifierChannel() chan *types.FinalisationInfo
	FreeFinalisedNotifierChannel(ch chan *types.FinalisationInfo)
}
