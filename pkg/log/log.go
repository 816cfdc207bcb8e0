// Package log provides the shared zap logger as an fx module.
package log

import (
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("log",
	fx.Provide(NewLogger),
)

// NewLogger builds the process logger. LOG_LEVEL=debug switches to the
// development config; everything else gets production JSON output.
func NewLogger() (*zap.Logger, error) {
	if os.Getenv("LOG_LEVEL") == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
