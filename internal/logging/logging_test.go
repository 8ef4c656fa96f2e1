package logging_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xkanth/mojave-sequencer/internal/logging"
)

func TestSetLevelRecognizesKnownLevels(t *testing.T) {
	logger := zerolog.Nop()

	logging.SetLevel(&logger, "debug")
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	logging.SetLevel(&logger, "warn")
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestSetLevelDefaultsToInfoOnUnknown(t *testing.T) {
	logger := zerolog.Nop()
	logging.SetLevel(&logger, "not-a-level")
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
