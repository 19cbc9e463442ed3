// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package malus

import (
	"context"
	"errors"

	"github.com/ChainSafe/malus/dot/parachain/overseer"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
)

// testMessage is the incoming union of the test subsystems.
type testMessage interface{ isTestMessage() }

// outgoingMessage is the outgoing union of the test subsystems.
type outgoingMessage interface{ isOutgoing() }

type pongMessage interface{ isPong() }

type Ping struct{ N uint32 }

type Pong struct{ N uint32 }

func (Ping) isTestMessage() {}
func (Ping) isOutgoing()    {}
func (Pong) isOutgoing()    {}
func (Pong) isPong()        {}

// doubleEvenPings replaces every even Ping with a Ping of twice its value.
type doubleEvenPings struct {
	Passthrough[testMessage, outgoingMessage]
}

func (doubleEvenPings) NeedInterceptOutgoing(msg outgoingMessage) bool {
	ping, ok := msg.(Ping)
	return ok && ping.N%2 == 0
}

func (doubleEvenPings) InterceptOutgoing(msg outgoingMessage) (outgoingMessage, bool) {
	ping := msg.(Ping)
	return Ping{N: ping.N * 2}, true
}

func doubleEvenPongs() *FuncInterceptor[testMessage, outgoingMessage] {
	return &FuncInterceptor[testMessage, outgoingMessage]{
		Name: "echo",
		NeedOutgoing: func(msg outgoingMessage) bool {
			pong, ok := msg.(Pong)
			return ok && pong.N%2 == 0
		},
		Outgoing: func(msg outgoingMessage) (outgoingMessage, bool) {
			return Pong{N: msg.(Pong).N * 2}, true
		},
	}
}

// echoSubsystem answers every Ping with a Pong of the same value.
type echoSubsystem struct{}

func (echoSubsystem) Start(sctx overseer.SubsystemContext[testMessage, outgoingMessage]) overseer.SpawnedSubsystem {
	return overseer.SpawnedSubsystem{
		Name: "echo",
		Future: func(ctx context.Context) error {
			for {
				msg, err := sctx.Recv(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}

				if msg.IsSignal() {
					if _, ok := msg.Signal.(parachaintypes.ConcludeSignal); ok {
						return nil
					}
					continue
				}

				ping := msg.Message.(Ping)
				err = sctx.Sender().SendMessage(ctx, Pong{N: ping.N})
				if err != nil {
					return err
				}
			}
		},
	}
}

// collectorSubsystem forwards the pongs it receives to a channel.
type collectorSubsystem struct {
	pongs chan Pong
}

func (c *collectorSubsystem) Start(sctx overseer.SubsystemContext[pongMessage, any]) overseer.SpawnedSubsystem {
	return overseer.SpawnedSubsystem{
		Name: "collector",
		Future: func(ctx context.Context) error {
			for {
				msg, err := sctx.Recv(ctx)
				if err != nil {
					return nil //nolint:nilerr
				}
				if msg.IsSignal() {
					if _, ok := msg.Signal.(parachaintypes.ConcludeSignal); ok {
						return nil
					}
					continue
				}
				c.pongs <- msg.Message.(Pong)
			}
		},
	}
}
