// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "development", "prod", "PRODUCTION"} {
		t.Run(mode, func(t *testing.T) {
			l, err := New(mode)
			require.NoError(t, err)
			require.NotNil(t, l.SugaredLogger)
		})
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	for _, mode := range []string{"", "debug", "verbose"} {
		_, err := New(mode)
		assert.Error(t, err, "mode %q", mode)
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("workflow", "dedup").Warn("missing signature", "candidate", 7)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "missing signature", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "dedup", fields["workflow"])
	assert.EqualValues(t, 7, fields["candidate"])
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := Nop()
	assert.Same(t, l, OrNop(l))
}
