package utils

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiLogHandler(t *testing.T) {
	var debug, info bytes.Buffer
	logger := slog.New(NewMultiLogHandler(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)).With("component", "sync")

	logger.Debug("detail")
	logger.Info("pushed", "changes", 2)

	assert.Contains(t, debug.String(), "msg=detail")
	assert.Contains(t, debug.String(), "msg=pushed")
	assert.NotContains(t, info.String(), "detail")
	assert.Contains(t, info.String(), "component=sync")
	assert.Contains(t, info.String(), "changes=2")
}
