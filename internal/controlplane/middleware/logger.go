package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

// Logger logs every request to the default slog logger under the "http" group.
func Logger() gin.HandlerFunc {
	return sloggin.NewWithConfig(slog.Default().WithGroup("http"), sloggin.Config{
		DefaultLevel:     slog.LevelDebug,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	})
}
