package db

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goran-ethernal/DropIndexor/internal/common"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, cfg config.MaintenanceConfig) *MaintenanceCoordinator {
	t.Helper()

	database, path := newTestDB(t, "WAL")
	_, err := database.Exec(`CREATE TABLE versions (id INTEGER PRIMARY KEY, data TEXT)`)
	require.NoError(t, err)

	cfg.ApplyDefaults()

	return newMaintenanceCoordinator(path, database, cfg, logger.NewNopLogger())
}

func TestNewMaintenanceCoordinator_NilConfig(t *testing.T) {
	m := NewMaintenanceCoordinator("unused", nil, nil, logger.NewNopLogger())
	require.IsType(t, &NoOpMaintenance{}, m)

	ran := false
	m.AddTask("prune", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.RunMaintenance(context.Background()))
	require.NoError(t, m.Stop())
	require.False(t, ran)
	m.AcquireOperationLock()()
}

func TestMaintenanceCoordinator_RunMaintenance(t *testing.T) {
	m := newTestCoordinator(t, config.MaintenanceConfig{WALCheckpointMode: "TRUNCATE"})

	for range 500 {
		_, err := m.db.Exec(`INSERT INTO versions (data) VALUES (?)`, strings.Repeat("x", 512))
		require.NoError(t, err)
	}
	_, err := m.db.Exec(`DELETE FROM versions`)
	require.NoError(t, err)

	require.NoError(t, m.RunMaintenance(context.Background()))

	stats := m.Stats()
	require.EqualValues(t, 1, stats.Runs)
	require.NoError(t, stats.LastErr)
	require.WithinDuration(t, time.Now(), stats.LastRun, time.Minute)
}

func TestMaintenanceCoordinator_TasksRunInOrder(t *testing.T) {
	m := newTestCoordinator(t, config.MaintenanceConfig{})

	var order []string
	record := func(name string, err error) TaskFunc {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}
	boom := errors.New("boom")

	m.AddTask("prune-entity-history", record("prune-entity-history", nil))
	m.AddTask("failing", record("failing", boom))
	m.AddTask("last", record("last", nil))

	err := m.RunMaintenance(context.Background())
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "failing: boom")
	require.Equal(t, []string{"prune-entity-history", "failing", "last"}, order)
	require.ErrorIs(t, m.Stats().LastErr, boom)
}

func TestMaintenanceCoordinator_WaitsForOperations(t *testing.T) {
	m := newTestCoordinator(t, config.MaintenanceConfig{})

	var operationDone atomic.Bool
	m.AddTask("observe", func(context.Context) error {
		if !operationDone.Load() {
			return errors.New("maintenance ran during an operation")
		}
		return nil
	})

	unlock := m.AcquireOperationLock()
	result := make(chan error, 1)
	go func() { result <- m.RunMaintenance(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-result:
		t.Fatalf("maintenance did not wait for the operation: %v", err)
	default:
	}

	operationDone.Store(true)
	unlock()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("maintenance did not finish")
	}
}

func TestMaintenanceCoordinator_CancelledContext(t *testing.T) {
	m := newTestCoordinator(t, config.MaintenanceConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, m.RunMaintenance(ctx), context.Canceled)
	require.Zero(t, m.Stats().Runs)
}

func TestMaintenanceCoordinator_Background(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.MaintenanceConfig
		wantRuns bool
	}{
		{
			name: "disabled",
			cfg:  config.MaintenanceConfig{Enabled: false, CheckInterval: common.NewDuration(10 * time.Millisecond)},
		},
		{
			name:     "periodic",
			cfg:      config.MaintenanceConfig{Enabled: true, CheckInterval: common.NewDuration(10 * time.Millisecond)},
			wantRuns: true,
		},
		{
			name: "startup pass",
			cfg: config.MaintenanceConfig{
				Enabled:         true,
				VacuumOnStartup: true,
				CheckInterval:   common.NewDuration(time.Hour),
			},
			wantRuns: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestCoordinator(t, tt.cfg)

			require.NoError(t, m.Start(context.Background()))
			time.Sleep(100 * time.Millisecond)
			require.NoError(t, m.Stop())
			require.NoError(t, m.Stop())

			if tt.wantRuns {
				require.NotZero(t, m.Stats().Runs)
			} else {
				require.Zero(t, m.Stats().Runs)
			}
		})
	}
}

func TestMaintenanceCoordinator_StartTwice(t *testing.T) {
	m := newTestCoordinator(t, config.MaintenanceConfig{Enabled: true, CheckInterval: common.NewDuration(time.Hour)})

	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop() })

	require.Error(t, m.Start(context.Background()))
}
