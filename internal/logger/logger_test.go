package logger

import (
	"context"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// observed returns a logger writing to an in-memory core with the given level.
func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	atomicLevel := zap.NewAtomicLevelAt(level)
	core, logs := observer.New(atomicLevel)

	return &Logger{SugaredLogger: zap.New(core).Sugar(), atomicLevel: atomicLevel}, logs
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level       string
		development bool
		wantErr     bool
	}{
		{level: "debug", development: true},
		{level: "info"},
		{level: "WARN"},
		{level: "error", development: true},
		{level: "verbose", wantErr: true},
		{level: "", development: false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := NewLogger(tt.level, tt.development)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Empty(t, l.GetComponent())
		})
	}
}

func TestLogger_WithComponentTagsEntries(t *testing.T) {
	root, logs := observed(zapcore.InfoLevel)

	root.WithComponent("drop-indexer").Infow("collection created", "address", "0xabc")
	root.Info("untagged")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, map[string]any{"component": "drop-indexer", "address": "0xabc"}, entries[0].ContextMap())
	require.Empty(t, entries[1].ContextMap())
}

func TestLogger_SharedLevel(t *testing.T) {
	root, logs := observed(zapcore.WarnLevel)
	children := []*Logger{root.WithComponent("downloader"), root.WithComponent("entity-store")}

	for _, c := range children {
		c.Info("filtered")
	}
	require.Zero(t, logs.Len())

	require.NoError(t, children[0].SetLevel("debug"))

	for _, c := range children {
		require.Equal(t, "debug", c.GetLevel())
		c.Debug("kept")
	}
	require.Equal(t, "debug", root.GetLevel())
	require.Equal(t, 2, logs.FilterMessage("kept").Len())

	require.Error(t, root.SetLevel("loud"))
	require.Equal(t, "debug", root.GetLevel())
}

type levels map[string]string

func (l levels) GetComponentLevel(component string) string {
	if level, ok := l[component]; ok {
		return level
	}
	return l.GetDefaultLevel()
}

func (l levels) GetDefaultLevel() string { return l["*"] }
func (l levels) IsDevelopment() bool     { return false }

func TestNewComponentLoggerFromConfig(t *testing.T) {
	cfg := levels{"*": "warn", "reorg-detector": "debug"}

	tests := []struct {
		name      string
		cfg       LoggingConfig
		component string
		wantLevel string
	}{
		{name: "component override", cfg: cfg, component: "reorg-detector", wantLevel: "debug"},
		{name: "default level", cfg: cfg, component: "downloader", wantLevel: "warn"},
		{name: "nil config", component: "downloader", wantLevel: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewComponentLoggerFromConfig(tt.component, tt.cfg)
			require.Equal(t, tt.wantLevel, l.GetLevel())
			require.Equal(t, tt.component, l.GetComponent())
		})
	}
}

func TestNewComponentLogger_PanicsOnBadLevel(t *testing.T) {
	require.Panics(t, func() { NewComponentLogger("downloader", "chatty", false) })
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Errorw("discarded", "key", "value")
	require.Equal(t, "info", l.GetLevel())
	require.NoError(t, l.WithComponent("metrics").Close())
}

func TestGetDefaultLogger(t *testing.T) {
	require.Same(t, GetDefaultLogger(), GetDefaultLogger())
}

type recordingTransport struct {
	events []*sentry.Event
}

func (r *recordingTransport) Configure(sentry.ClientOptions) {}
func (r *recordingTransport) SendEvent(event *sentry.Event) { r.events = append(r.events, event) }
func (r *recordingTransport) Flush(time.Duration) bool { return true }
func (r *recordingTransport) FlushWithContext(ctx context.Context) bool { return true }
func (r *recordingTransport) Close() {}

func TestEnableSentry_ForwardsErrors(t *testing.T) {
	transport := &recordingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Transport: transport})
	require.NoError(t, err)

	flush, err := EnableSentry(SentryOptions{Client: client})
	require.NoError(t, err)
	defer DisableSentry()

	logger, err := NewLogger("info", false)
	require.NoError(t, err)

	logger.Info("not forwarded")
	logger.Errorw("mint reconstruction failed", "collection", "0xabc")
	flush(time.Second)

	require.Len(t, transport.events, 1)
	require.Equal(t, "mint reconstruction failed", transport.events[0].Message)
}

func TestDisableSentry(t *testing.T) {
	transport := &recordingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Transport: transport})
	require.NoError(t, err)

	_, err = EnableSentry(SentryOptions{Client: client})
	require.NoError(t, err)
	DisableSentry()

	logger, err := NewLogger("info", false)
	require.NoError(t, err)
	logger.Error("dropped")

	require.Empty(t, transport.events)
}
