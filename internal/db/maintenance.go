package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goran-ethernal/DropIndexor/internal/common"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
)

// Maintenance serializes periodic housekeeping of a SQLite database against the
// components writing to it.
type Maintenance interface {
	// Start schedules periodic passes when enabled in the configuration.
	Start(ctx context.Context) error
	// Stop stops background maintenance and waits for the running pass to finish.
	Stop() error
	// AcquireOperationLock blocks while a maintenance pass runs and returns the release function.
	AcquireOperationLock() func()
	// Stats returns counters about past maintenance passes.
	Stats() MaintenanceStats
	// RunMaintenance runs one maintenance pass now.
	RunMaintenance(ctx context.Context) error
	// AddTask registers work that runs inside every maintenance pass, before the WAL checkpoint.
	// Tasks run while the exclusive lock is held and must not call AcquireOperationLock.
	AddTask(name string, fn TaskFunc)
}

// TaskFunc is a unit of work executed during maintenance.
type TaskFunc func(ctx context.Context) error

// MaintenanceStats describes past maintenance passes.
type MaintenanceStats struct {
	Runs    uint64
	LastRun time.Time
	LastErr error
}

// NoOpMaintenance never runs anything. It is used when maintenance is not configured.
type NoOpMaintenance struct{}

func (*NoOpMaintenance) Start(context.Context) error          { return nil }
func (*NoOpMaintenance) Stop() error                          { return nil }
func (*NoOpMaintenance) RunMaintenance(context.Context) error { return nil }
func (*NoOpMaintenance) AcquireOperationLock() func()         { return func() {} }
func (*NoOpMaintenance) Stats() MaintenanceStats              { return MaintenanceStats{} }
func (*NoOpMaintenance) AddTask(string, TaskFunc)             {}

type step struct {
	name string
	run  TaskFunc
}

// MaintenanceCoordinator runs maintenance passes with exclusive access to the database.
// Regular operations share a read lock, a pass takes the write lock.
type MaintenanceCoordinator struct {
	db     *sql.DB
	config config.MaintenanceConfig
	dbPath string
	log    *logger.Logger

	opLock sync.RWMutex

	mu     sync.Mutex
	tasks  []step
	stats  MaintenanceStats
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMaintenanceCoordinator returns a coordinator for the database at dbPath.
// A nil cfg disables maintenance entirely.
func NewMaintenanceCoordinator(
	dbPath string,
	db *sql.DB,
	cfg *config.MaintenanceConfig,
	log *logger.Logger,
) Maintenance {
	if cfg == nil {
		return &NoOpMaintenance{}
	}

	return newMaintenanceCoordinator(dbPath, db, *cfg, log)
}

func newMaintenanceCoordinator(
	dbPath string,
	db *sql.DB,
	cfg config.MaintenanceConfig,
	log *logger.Logger,
) *MaintenanceCoordinator {
	return &MaintenanceCoordinator{
		db:     db,
		config: cfg,
		dbPath: dbPath,
		log:    log.WithComponent(common.ComponentMaintenance),
	}
}

// Start runs the startup pass if configured and schedules periodic passes.
func (m *MaintenanceCoordinator) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.log.Info("background maintenance is disabled")
		return nil
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return errors.New("maintenance already started")
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	if m.config.VacuumOnStartup {
		if err := m.RunMaintenance(ctx); err != nil {
			m.log.Warnf("startup maintenance failed: %v", err)
		}
	}

	go m.loop(ctx, m.config.CheckInterval.Duration)

	m.log.Infow("background maintenance started",
		"interval", m.config.CheckInterval.Duration,
		"checkpoint_mode", m.config.WALCheckpointMode,
	)

	return nil
}

// Stop cancels periodic passes and waits for the running one, if any.
func (m *MaintenanceCoordinator) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done
	m.log.Info("background maintenance stopped")

	return nil
}

func (m *MaintenanceCoordinator) loop(ctx context.Context, interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunMaintenance(ctx); err != nil && ctx.Err() == nil {
				m.log.Warnf("periodic maintenance failed: %v", err)
			}
		}
	}
}

// AddTask registers a task executed at the start of every maintenance pass.
func (m *MaintenanceCoordinator) AddTask(name string, fn TaskFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks = append(m.tasks, step{name: name, run: fn})
}

// RunMaintenance runs registered tasks, then the WAL checkpoint, then VACUUM.
// Every step runs even if an earlier one fails; the failures are joined.
func (m *MaintenanceCoordinator) RunMaintenance(ctx context.Context) error {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	steps := append(make([]step, 0, len(m.tasks)+2), m.tasks...) //nolint:mnd
	m.mu.Unlock()
	steps = append(steps,
		step{name: "wal-checkpoint", run: m.walCheckpoint},
		step{name: "vacuum", run: m.vacuum},
	)

	start := time.Now()
	sizeBefore, _ := DBTotalSize(m.dbPath)

	var errs []error
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		m.log.Debugf("running maintenance step %s", s.name)
		if err := s.run(ctx); err != nil {
			maintenanceStepFailed(s.name)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	err := errors.Join(errs...)

	sizeAfter, sizeErr := DBTotalSize(m.dbPath)
	if sizeErr != nil {
		m.log.Warnf("failed to read database size: %v", sizeErr)
	}
	observeMaintenance(time.Since(start), err, sizeBefore, sizeAfter)

	m.mu.Lock()
	m.stats.Runs++
	m.stats.LastRun = time.Now().UTC()
	m.stats.LastErr = err
	m.mu.Unlock()

	if err != nil {
		m.log.Warnf("maintenance finished with errors in %v: %v", time.Since(start), err)
		return err
	}

	m.log.Infow("maintenance finished",
		"duration", time.Since(start),
		"reclaimed_mb", common.BytesToMB(max(sizeBefore-sizeAfter, 0)),
	)

	return nil
}

func (m *MaintenanceCoordinator) walCheckpoint(ctx context.Context) error {
	var journalMode string
	if err := m.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to read journal mode: %w", err)
	}
	if !strings.EqualFold(journalMode, "wal") {
		return nil
	}

	var busy, logFrames, checkpointed int
	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", m.config.WALCheckpointMode)
	if err := m.db.QueryRowContext(ctx, query).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return err
	}

	walCheckpointed(strings.ToLower(m.config.WALCheckpointMode))

	if busy > 0 {
		m.log.Warnf("WAL checkpoint left pages behind, busy=%d frames=%d checkpointed=%d",
			busy, logFrames, checkpointed)
	}

	return nil
}

func (m *MaintenanceCoordinator) vacuum(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, "VACUUM"); err != nil {
		if strings.Contains(err.Error(), "database is locked") {
			return errors.New("database is locked, vacuum skipped")
		}
		return err
	}

	return nil
}

// AcquireOperationLock blocks while a maintenance pass runs and returns the release function.
func (m *MaintenanceCoordinator) AcquireOperationLock() func() {
	m.opLock.RLock()
	return m.opLock.RUnlock
}

// Stats returns counters about past maintenance passes.
func (m *MaintenanceCoordinator) Stats() MaintenanceStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stats
}
