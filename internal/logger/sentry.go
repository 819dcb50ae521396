package logger

import (
	"fmt"
	"sync"
	"time"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap/zapcore"
)

// SentryOptions configures forwarding of error logs to Sentry.
type SentryOptions struct {
	DSN         string
	Environment string
	Debug       bool
	Tags        map[string]string

	// Client overrides the client built from DSN. Used by tests.
	Client *sentry.Client
}

var (
	sentryMu   sync.Mutex
	sentryCore zapcore.Core
)

// EnableSentry makes every logger created afterwards forward Error level entries to Sentry.
// The returned function flushes buffered events and should be called before exit.
func EnableSentry(opts SentryOptions) (func(timeout time.Duration), error) {
	client := opts.Client
	if client == nil {
		var err error
		client, err = sentry.NewClient(sentry.ClientOptions{
			Dsn:         opts.DSN,
			Environment: opts.Environment,
			Debug:       opts.Debug,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create sentry client: %w", err)
		}
	}

	core, err := zapsentry.NewCore(zapsentry.Configuration{
		Level:             zapcore.ErrorLevel,
		EnableBreadcrumbs: true,
		BreadcrumbLevel:   zapcore.InfoLevel,
		Tags:              opts.Tags,
	}, zapsentry.NewSentryClientFromClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry core: %w", err)
	}

	sentryMu.Lock()
	sentryCore = core
	sentryMu.Unlock()

	return func(timeout time.Duration) {
		client.Flush(timeout)
	}, nil
}

// DisableSentry detaches Sentry from loggers created afterwards.
func DisableSentry() {
	sentryMu.Lock()
	defer sentryMu.Unlock()

	sentryCore = nil
}

func currentSentryCore() zapcore.Core {
	sentryMu.Lock()
	defer sentryMu.Unlock()

	return sentryCore
}
