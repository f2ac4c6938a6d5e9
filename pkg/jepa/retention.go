package jepa

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// RetentionConfig controls how many approved models stay active on disk
// and whether unapproved artifacts are swept away too.
type RetentionConfig struct {
	Enabled           bool
	MaxActiveModels   int
	ArchiveUnapproved bool
	Schedule          string // cron expression, e.g. "0 3 * * *"
}

// DefaultRetentionConfig mirrors the original trainer's defaults.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Enabled:         false,
		MaxActiveModels: 3,
		Schedule:        "0 3 * * *",
	}
}

// Archiver moves approved models beyond max_active_models (and,
// optionally, unapproved models) from the active model root into the
// archive root, recording the move on each approval's ArchivePath.
type Archiver struct {
	store  *Store
	cfg    RetentionConfig
	logger *slog.Logger
}

// NewArchiver builds an Archiver over store using cfg.
func NewArchiver(store *Store, cfg RetentionConfig) *Archiver {
	return &Archiver{store: store, cfg: cfg, logger: slog.Default().With("component", "jepa.retention")}
}

// ArchiveResult reports how many models an Archive pass moved.
type ArchiveResult struct {
	Archived int
	Kept     int
}

// Archive runs one retention pass: keep the cfg.MaxActiveModels most
// recently approved models, archive the rest; optionally also archive
// every unapproved model directory.
func (a *Archiver) Archive(now time.Time) (ArchiveResult, error) {
	if !a.cfg.Enabled {
		return ArchiveResult{}, nil
	}
	maxActive := a.cfg.MaxActiveModels
	if maxActive <= 0 {
		maxActive = 3
	}

	approvals := a.store.approvals.Load()
	sort.Slice(approvals, func(i, j int) bool { return approvals[i].ApprovedTSMs > approvals[j].ApprovedTSMs })

	keep := approvals
	if len(keep) > maxActive {
		keep = keep[:maxActive]
	}
	keepSet := make(map[[2]string]bool, len(keep))
	for _, entry := range keep {
		keepSet[[2]string{entry.ModelVersion, entry.TrainingRunID}] = true
	}

	archived := 0
	for _, entry := range approvals {
		key := [2]string{entry.ModelVersion, entry.TrainingRunID}
		if keepSet[key] || entry.ArchivedTSMs != 0 {
			continue
		}
		src := a.store.modelDir(entry.ModelVersion, entry.TrainingRunID)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dest := a.store.archiveDir(entry.ModelVersion, entry.TrainingRunID)
		if err := moveDir(src, dest); err != nil {
			a.logger.Error("archive model failed", "model_version", entry.ModelVersion, "training_run_id", entry.TrainingRunID, "error", err)
			continue
		}
		if err := a.store.approvals.MarkArchived(entry.ModelVersion, entry.TrainingRunID, dest, now.UnixMilli()); err != nil {
			a.logger.Error("record archive failed", "model_version", entry.ModelVersion, "error", err)
			continue
		}
		archived++
		a.logger.Info("archived model", "model_version", entry.ModelVersion, "training_run_id", entry.TrainingRunID, "dest", dest)
	}

	if a.cfg.ArchiveUnapproved {
		archived += a.archiveUnapproved()
	}

	return ArchiveResult{Archived: archived, Kept: len(keep)}, nil
}

func (a *Archiver) archiveUnapproved() int {
	approved := make(map[[2]string]bool)
	for _, entry := range a.store.approvals.Load() {
		approved[[2]string{entry.ModelVersion, entry.TrainingRunID}] = true
	}
	models, err := a.store.ListModels(false)
	if err != nil {
		return 0
	}
	archived := 0
	for _, m := range models {
		key := [2]string{m.ModelVersion, m.TrainingRunID}
		if approved[key] {
			continue
		}
		dest := a.store.archiveDir(m.ModelVersion, m.TrainingRunID)
		if err := moveDir(m.Path, dest); err != nil {
			a.logger.Error("archive unapproved model failed", "model_version", m.ModelVersion, "error", err)
			continue
		}
		archived++
	}
	return archived
}

func moveDir(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		dest = fmt.Sprintf("%s-%d", dest, time.Now().UnixNano())
	}
	return os.Rename(src, dest)
}

// Scheduler runs the Archiver on a cron schedule.
type Scheduler struct {
	archiver *Archiver
	cron     *cron.Cron
	logger   *slog.Logger
	mu       sync.Mutex
	running  bool
}

// NewScheduler creates a retention scheduler over archiver.
func NewScheduler(archiver *Archiver) *Scheduler {
	return &Scheduler{
		archiver: archiver,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "jepa.scheduler"),
	}
}

// Start begins scheduled archiving per archiver.cfg.Schedule. An empty
// schedule makes Start a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.archiver.cfg.Schedule
	if schedule == "" {
		s.logger.Info("jepa retention schedule not configured, skipping scheduler")
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("jepa: invalid retention schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.runArchive() }); err != nil {
		return fmt.Errorf("jepa: schedule retention: %w", err)
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("jepa retention scheduler started", "schedule", schedule, "max_active_models", s.archiver.cfg.MaxActiveModels)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runArchive() {
	result, err := s.archiver.Archive(time.Now())
	if err != nil {
		s.logger.Error("scheduled jepa retention failed", "error", err)
		return
	}
	if result.Archived > 0 {
		s.logger.Info("scheduled jepa retention completed", "archived", result.Archived, "kept", result.Kept)
	}
}

// Stop stops the scheduler and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil && s.running {
		doneCtx := s.cron.Stop()
		<-doneCtx.Done()
		s.running = false
		s.logger.Info("jepa retention scheduler stopped")
	}
}

// ApprovalsWatcher watches the approvals.json file and invokes onChange
// whenever it is written or created.
type ApprovalsWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	logger  *slog.Logger
}

// NewApprovalsWatcher creates a watcher over store's approvals file.
func NewApprovalsWatcher(store *Store) (*ApprovalsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("jepa: create approvals watcher: %w", err)
	}
	dir := filepath.Dir(store.approvals.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("jepa: watch approvals dir: %w", err)
	}
	return &ApprovalsWatcher{watcher: w, path: store.approvals.path, logger: slog.Default().With("component", "jepa.watcher")}, nil
}

// Run blocks, invoking onChange each time the approvals file is written
// or created, until ctx is canceled.
func (w *ApprovalsWatcher) Run(ctx context.Context, onChange func()) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("approvals watcher error", "error", err)
		}
	}
}
