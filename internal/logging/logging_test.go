package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_ReturnsUsableLogger(t *testing.T) {
	logger, err := Setup("info", "console")
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("test message")
}

func TestSetup_IsIdempotentPerProcess(t *testing.T) {
	first, err := Setup("info", "console")
	require.NoError(t, err)
	second, err := Setup("debug", "json")
	require.NoError(t, err)
	assert.Same(t, first, second)
}
