// Package ubiftlog provides the single structured logger used across every
// layer of the toolkit.
package ubiftlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	sugar  *zap.SugaredLogger
	verbse bool
)

// SetVerbose selects the development (console, debug-level) encoder instead
// of the production (JSON, info-level) one. Must be called before the first
// Logger() call to take effect.
func SetVerbose(v bool) {
	verbse = v
}

// Logger returns the process-wide sugared logger, constructing it on first
// use.
func Logger() *zap.SugaredLogger {
	once.Do(func() {
		var z *zap.Logger
		var err error
		if verbse {
			z, err = zap.NewDevelopment()
		} else {
			z, err = zap.NewProduction()
		}
		if err != nil {
			z = zap.NewNop()
		}
		sugar = z.Sugar()
	})
	return sugar
}
