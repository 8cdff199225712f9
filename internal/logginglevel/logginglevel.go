package logginglevel

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
