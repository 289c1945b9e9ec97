package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init installs the global zap logger. Development gets the console encoder,
// every other environment gets JSON with ISO8601 timestamps. LOG_LEVEL
// overrides the level in both cases.
func Init(environment string) error {
	var conf zap.Config
	if environment == "development" || environment == "" {
		conf = zap.NewDevelopmentConfig()
	} else {
		conf = zap.NewProductionConfig()
		conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return fmt.Errorf("zapcore.ParseLevel -> %w", err)
		}
		conf.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := conf.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return fmt.Errorf("conf.Build -> %w", err)
	}

	zap.ReplaceGlobals(l)
	return nil
}
