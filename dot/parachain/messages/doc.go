// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package messages holds the messages exchanged between the parachain subsystems.
//
// Each subsystem accepts one incoming union, a sealed interface implemented by
// the message structs it handles, and sends one outgoing union naming the
// messages it is allowed to send to other subsystems.
package messages
