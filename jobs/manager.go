// Package jobs provides background job processing functionality.
package jobs

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"moviecollection/apperrors"
	"moviecollection/models"
)

// ImportState is the lifecycle state of a triggered import.
type ImportState string

const (
	ImportRunning   ImportState = "running"
	ImportDone      ImportState = "done"
	ImportFailed    ImportState = "failed"
	ImportCancelled ImportState = "cancelled"
)

// ImportStatus reports on an import started with TriggerImport.
type ImportStatus struct {
	JobID     string               `json:"job_id"`
	Path      string               `json:"path"`
	State     ImportState          `json:"state"`
	Result    *models.ImportResult `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	StartedAt time.Time            `json:"started_at"`

	cancel context.CancelFunc
}

// keep the most recent finished imports around for status queries
const maxFinishedImports = 100

// ManagerConfig configures the background jobs.
type ManagerConfig struct {
	WatchDirs      []string
	RescanInterval time.Duration // 0 disables the periodic rescan
	Debounce       time.Duration
	EventRetention time.Duration // 0 keeps movie events forever
	PruneInterval  time.Duration // defaults to defaultPruneInterval
}

const defaultPruneInterval = time.Hour

// EventPruner deletes movie events older than a given age.
type EventPruner interface {
	DeleteOldEvents(olderThan time.Duration) (int64, error)
}

// JobManager handles background job execution
type JobManager struct {
	importer *ImportJob
	queue    *WriteQueue
	events   EventPruner
	cfg      ManagerConfig
	logger   hclog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex

	importsMu sync.Mutex
	imports   map[string]*ImportStatus
	finished  []string
}

// NewJobManager creates a new job manager
func NewJobManager(importer *ImportJob, queue *WriteQueue, events EventPruner, cfg ManagerConfig, logger hclog.Logger) *JobManager {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = defaultPruneInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &JobManager{
		importer: importer,
		queue:    queue,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		imports:  make(map[string]*ImportStatus),
	}
}

// Queue returns the write queue owned by the manager.
func (jm *JobManager) Queue() *WriteQueue {
	return jm.queue
}

// Start begins the job manager background processing
func (jm *JobManager) Start() {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if jm.running {
		jm.logger.Debug("job manager is already running")
		return
	}

	jm.ctx, jm.cancel = context.WithCancel(context.Background())
	jm.running = true
	jm.logger.Info("starting job manager", "watch_dirs", jm.cfg.WatchDirs, "rescan_interval", jm.cfg.RescanInterval)

	if jm.events != nil && jm.cfg.EventRetention > 0 {
		jm.wg.Add(1)
		go jm.runEventRetention(jm.ctx)
	}

	if jm.importer == nil || len(jm.cfg.WatchDirs) == 0 {
		return
	}

	jm.startWatcher()

	if jm.cfg.RescanInterval > 0 {
		jm.wg.Add(1)
		go jm.runPeriodicRescan(jm.ctx)
	}
}

func (jm *JobManager) startWatcher() {
	watcher, err := NewFolderWatcher(jm.importer, jm.cfg.Debounce, jm.logger.Named("watcher"))
	if err != nil {
		jm.logger.Error("folder watching disabled", "error", err)
		return
	}
	watched := 0
	for _, dir := range jm.cfg.WatchDirs {
		if err := watcher.Add(dir); err != nil {
			jm.logger.Error("cannot watch folder", "path", dir, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		watcher.Close()
		return
	}

	jm.wg.Add(1)
	go func(ctx context.Context) {
		defer jm.wg.Done()
		if err := watcher.Run(ctx); err != nil {
			jm.logger.Error("folder watcher stopped", "error", err)
		}
	}(jm.ctx)
}

// Stop cancels running jobs, waits for them and applies all queued writes.
func (jm *JobManager) Stop() {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if !jm.running {
		return
	}

	jm.logger.Info("stopping job manager")
	jm.cancel()
	jm.running = false

	// Wait for all jobs to finish
	jm.wg.Wait()

	if jm.queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := jm.queue.Flush(ctx); err != nil {
			jm.logger.Error("failed to flush write queue", "pending", jm.queue.Pending(), "error", err)
		}
	}
	jm.logger.Info("job manager stopped")
}

// IsRunning returns whether the job manager is currently running
func (jm *JobManager) IsRunning() bool {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	return jm.running
}

// TriggerImport starts importing path, a file or a folder, in the background
// and returns the job ID to query with ImportStatus.
func (jm *JobManager) TriggerImport(path string) (string, error) {
	if jm.importer == nil {
		return "", apperrors.New(apperrors.Unavailable, "no importer configured")
	}
	stat, err := os.Stat(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.NotFound, err, "cannot import %s", path)
	}

	jm.mu.RLock()
	defer jm.mu.RUnlock()
	if !jm.running {
		return "", apperrors.New(apperrors.Unavailable, "job manager is not running")
	}

	ctx, cancel := context.WithCancel(jm.ctx)
	status := &ImportStatus{
		JobID:     uuid.NewString(),
		Path:      path,
		State:     ImportRunning,
		StartedAt: time.Now().UTC(),
		cancel:    cancel,
	}
	jm.importsMu.Lock()
	jm.imports[status.JobID] = status
	jm.importsMu.Unlock()

	jm.wg.Add(1)
	go func() {
		defer jm.wg.Done()
		defer cancel()

		var result *models.ImportResult
		var err error
		if stat.IsDir() {
			result, err = jm.importer.importFolder(ctx, status.JobID, path)
		} else {
			result = &models.ImportResult{JobID: status.JobID, Root: path, StartedAt: status.StartedAt}
			var file *models.MediaFile
			file, err = jm.importer.ImportFile(ctx, path)
			switch {
			case err == nil:
				result.Imported = 1
				result.MovieIDs = []int{file.MovieID}
			case apperrors.IsConflict(err):
				result.Skipped = 1
				err = nil
			}
			result.FinishedAt = time.Now().UTC()
			result.Elapsed = result.FinishedAt.Sub(result.StartedAt)
		}
		jm.finishImport(status.JobID, result, err, ctx.Err() != nil)
	}()

	jm.logger.Info("import triggered", "job_id", status.JobID, "path", path)
	return status.JobID, nil
}

func (jm *JobManager) finishImport(jobID string, result *models.ImportResult, err error, cancelled bool) {
	jm.importsMu.Lock()
	defer jm.importsMu.Unlock()

	status, ok := jm.imports[jobID]
	if !ok {
		return
	}
	status.Result = result
	switch {
	case cancelled:
		status.State = ImportCancelled
	case err != nil:
		status.State = ImportFailed
	default:
		status.State = ImportDone
	}
	if err != nil {
		status.Error = err.Error()
		jm.logger.Error("import failed", "job_id", jobID, "path", status.Path, "error", err)
	}

	jm.finished = append(jm.finished, jobID)
	for len(jm.finished) > maxFinishedImports {
		delete(jm.imports, jm.finished[0])
		jm.finished = jm.finished[1:]
	}
}

// ImportStatus returns a snapshot of a triggered import.
func (jm *JobManager) ImportStatus(jobID string) (*ImportStatus, error) {
	jm.importsMu.Lock()
	defer jm.importsMu.Unlock()

	status, ok := jm.imports[jobID]
	if !ok {
		return nil, apperrors.New(apperrors.NotFound, "import %s not found", jobID)
	}
	snapshot := *status
	snapshot.cancel = nil
	return &snapshot, nil
}

// Imports lists known imports, newest first.
func (jm *JobManager) Imports() []ImportStatus {
	jm.importsMu.Lock()
	defer jm.importsMu.Unlock()

	list := make([]ImportStatus, 0, len(jm.imports))
	for _, status := range jm.imports {
		snapshot := *status
		snapshot.cancel = nil
		list = append(list, snapshot)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.After(list[j].StartedAt)
	})
	return list
}

// CancelImport cancels a running import.
func (jm *JobManager) CancelImport(jobID string) error {
	jm.importsMu.Lock()
	defer jm.importsMu.Unlock()

	status, ok := jm.imports[jobID]
	if !ok {
		return apperrors.New(apperrors.NotFound, "import %s not found", jobID)
	}
	if status.State != ImportRunning {
		return apperrors.New(apperrors.Conflict, "import %s is already %s", jobID, status.State)
	}
	jm.logger.Info("cancelling import", "job_id", jobID)
	status.cancel()
	return nil
}

// runPeriodicRescan imports the watched folders on startup and then on
// every tick, catching files the watcher missed while the service was down.
func (jm *JobManager) runPeriodicRescan(ctx context.Context) {
	defer jm.wg.Done()

	jm.rescan(ctx)

	ticker := time.NewTicker(jm.cfg.RescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			jm.logger.Debug("periodic rescan stopped")
			return
		case <-ticker.C:
			jm.rescan(ctx)
		}
	}
}

func (jm *JobManager) rescan(ctx context.Context) {
	for _, dir := range jm.cfg.WatchDirs {
		if ctx.Err() != nil {
			return
		}
		result, err := jm.importer.ImportFolder(ctx, dir)
		if err != nil {
			jm.logger.Error("rescan failed", "path", dir, "error", err)
			continue
		}
		if result.Imported > 0 || result.Failed > 0 {
			jm.logger.Info("rescan finished", "path", dir, "imported", result.Imported, "failed", result.Failed)
		}
	}
}

// runEventRetention deletes movie events older than the retention period on
// startup and then on every tick.
func (jm *JobManager) runEventRetention(ctx context.Context) {
	defer jm.wg.Done()

	jm.pruneEvents()

	ticker := time.NewTicker(jm.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			jm.logger.Debug("event retention stopped")
			return
		case <-ticker.C:
			jm.pruneEvents()
		}
	}
}

func (jm *JobManager) pruneEvents() {
	n, err := jm.events.DeleteOldEvents(jm.cfg.EventRetention)
	if err != nil {
		jm.logger.Error("failed to prune movie events", "error", err)
		return
	}
	if n > 0 {
		jm.logger.Info("pruned movie events", "deleted", n, "older_than", jm.cfg.EventRetention)
	}
}
