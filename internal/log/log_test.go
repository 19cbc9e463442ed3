// Copyright 2021 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package log

import (
	"bytes"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Logger_log(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		settings    settings
		level       Level
		s           string
		args        []interface{}
		outputRegex string
	}{
		"log_at_trace": {
			settings: settings{
				level:  levelPtr(Trace),
				caller: newCallerSettings(false, false, false),
			},
			level:       Trace,
			s:           "some words",
			outputRegex: timePrefixRegex + "TRACE    some words\n$",
		},
		"do_not_log_at_trace": {
			settings: settings{
				level:  levelPtr(Debug),
				caller: newCallerSettings(false, false, false),
			},
			level:       Trace,
			s:           "some words",
			outputRegex: "^$",
		},
		"format_string": {
			settings: settings{
				level:  levelPtr(Info),
				caller: newCallerSettings(false, false, false),
			},
			level:       Warn,
			s:           "some %s",
			args:        []interface{}{"words"},
			outputRegex: timePrefixRegex + "WARN     some words\n$",
		},
		"show_caller": {
			settings: settings{
				level:  levelPtr(Trace),
				caller: newCallerSettings(true, true, false),
			},
			level:       Error,
			s:           "some words",
			outputRegex: timePrefixRegex + "ERROR    some words\tlog_test.go:L[0-9]+\n$",
		},
		"context": {
			settings: settings{
				level:  levelPtr(Info),
				caller: newCallerSettings(false, false, false),
				context: []contextKeyValues{
					{key: "pkg", values: []string{"malus"}},
					{key: "variant", values: []string{"a", "b"}},
				},
			},
			level:       Critical,
			s:           "some words",
			outputRegex: timePrefixRegex + "CRITICAL some words\tpkg=malus variant=a,b\n$",
		},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			buffer := bytes.NewBuffer(nil)
			testCase.settings.writer = buffer
			logger := &Logger{
				settings: testCase.settings,
				mutex:    new(sync.Mutex),
			}

			// call through a wrapper to keep the caller depth
			// equal to the one of the exported methods.
			logAt(logger, testCase.level, testCase.s, testCase.args...)

			regex, err := regexp.Compile(testCase.outputRegex)
			require.NoError(t, err)
			assert.Regexp(t, regex, buffer.String())
		})
	}
}

func logAt(logger *Logger, level Level, s string, args ...interface{}) {
	logger.log(level, s, args...)
}

func Test_Logger_New_child(t *testing.T) {
	t.Parallel()

	buffer := bytes.NewBuffer(nil)
	parent := New(SetWriter(buffer), SetLevel(Debug), AddContext("pkg", "parent"))
	child := parent.New(AddContext("pkg", "child"), AddContext("subsystem", "backing"))

	child.Debugf("hello %d", 1)
	assert.Regexp(t, timePrefixRegex+"DEBUG    hello 1\tpkg=parent,child subsystem=backing\n$", buffer.String())

	buffer.Reset()
	parent.Patch(SetLevel(Error))
	child.Info("not logged")
	assert.Empty(t, buffer.String())

	child.Error("logged")
	assert.Contains(t, buffer.String(), "ERROR    logged")
}

func Test_ParseLevel(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		s     string
		level Level
		err   error
	}{
		"trace":       {s: "trace", level: Trace},
		"debug_upper": {s: "DEBUG", level: Debug},
		"info_digit":  {s: "3", level: Info},
		"old_eror":    {s: "eror", level: Error},
		"crit":        {s: "crit", level: Critical},
		"invalid":     {s: "loud", err: ErrLevelNotRecognised},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			level, err := ParseLevel(testCase.s)
			require.ErrorIs(t, err, testCase.err)
			if testCase.err == nil {
				assert.Equal(t, testCase.level, level)
			}
		})
	}
}
