// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package log

import (
	"io"
	"os"
)

type settings struct {
	writer  io.Writer
	level   *Level
	caller  callerSettings
	context []contextKeyValues
}

type contextKeyValues struct {
	key    string
	values []string
}

func newSettings(options []Option) (settings settings) {
	for _, option := range options {
		option(&settings)
	}
	return settings
}

// mergeWith sets values for each field not set in the
// receiving settings using the values of the other settings.
func (s *settings) mergeWith(other settings) {
	if other.writer != nil {
		s.writer = other.writer
	}

	if other.level != nil {
		value := *other.level
		s.level = &value
	}

	s.caller.mergeWith(other.caller)

	newContext := make([]contextKeyValues, len(s.context), len(s.context)+len(other.context))
	for i, kv := range s.context {
		newContext[i] = contextKeyValues{
			key:    kv.key,
			values: append([]string(nil), kv.values...),
		}
	}
	for _, kv := range other.context {
		found := false
		for i := range newContext {
			if newContext[i].key == kv.key {
				newContext[i].values = append(newContext[i].values, kv.values...)
				found = true
				break
			}
		}
		if !found {
			newContext = append(newContext, contextKeyValues{
				key:    kv.key,
				values: append([]string(nil), kv.values...),
			})
		}
	}
	s.context = newContext
}

func (s *settings) setDefaults() {
	if s.writer == nil {
		s.writer = os.Stdout
	}

	if s.level == nil {
		value := Info
		s.level = &value
	}

	s.caller.setDefaults()
}
