/*
scheduler.go - Periodic save retry and backup snapshots

PURPOSE:
  A failed save leaves the collection dirty in memory. The scheduler
  retries it on every tick, then writes a backup envelope to the blob
  store so operators have server-side copies besides user downloads.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Runs once immediately on Start
  - One backup document per day (POS_Backup_YYYY-MM-DD.json), later
    runs on the same day overwrite it
  - Each snapshot is recorded in the activity log when one is configured

USAGE:
  scheduler := NewBackupScheduler(records, attachmentService, activity, logger)
  scheduler.Interval = cfg.BackupInterval
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - transfer.go: DownloadBackup (user-initiated backups)
  - attachments/service.go: StoreBackup
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/pos-tracker/attachments"
	"github.com/warp/pos-tracker/tracker"
)

// BackupScheduler snapshots the collection periodically.
type BackupScheduler struct {
	Records     *tracker.RecordStore
	Attachments *attachments.Service
	Activity    tracker.ActivityLog
	Interval    time.Duration
	Enabled     bool

	logger *slog.Logger
	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBackupScheduler creates a scheduler with a 24h interval. att and
// activity may be nil; without att only the save retry runs.
func NewBackupScheduler(records *tracker.RecordStore, att *attachments.Service, activity tracker.ActivityLog, logger *slog.Logger) *BackupScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupScheduler{
		Records:     records,
		Attachments: att,
		Activity:    activity,
		Interval:    24 * time.Hour,
		Enabled:     true,
		logger:      logger.With(slog.String("component", "scheduler")),
		now:         time.Now,
	}
}

// Start begins the scheduler.
func (bs *BackupScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled || bs.Interval <= 0 {
		bs.logger.Info("disabled, not starting")
		return
	}
	if bs.ticker != nil {
		return
	}

	bs.ticker = time.NewTicker(bs.Interval)
	bs.stop = make(chan struct{})
	bs.wg.Add(1)

	go bs.run(bs.ticker, bs.stop)

	bs.logger.Info("started", slog.Duration("interval", bs.Interval))
}

// Stop stops the scheduler and waits for a running snapshot to finish.
func (bs *BackupScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.ticker = nil
		bs.logger.Info("stopped")
	}
}

func (bs *BackupScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer bs.wg.Done()

	// Run immediately on start
	bs.tick()

	for {
		select {
		case <-ticker.C:
			bs.tick()
		case <-stop:
			return
		}
	}
}

func (bs *BackupScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := bs.RunOnce(ctx); err != nil {
		bs.logger.Warn("snapshot failed", slog.Any("error", err))
	}
}

// RunOnce retries a pending save and stores one backup snapshot.
func (bs *BackupScheduler) RunOnce(ctx context.Context) error {
	if err := bs.Records.SaveIfDirty(ctx); err != nil {
		bs.logger.Warn("save retry failed", slog.Any("error", err))
	}
	if bs.Attachments == nil {
		return nil
	}

	b := bs.Records.Backup()
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	name := BackupFilename(bs.now())
	info, err := bs.Attachments.StoreBackup(ctx, name, data)
	bs.record(ctx, len(b.Locations), name, err)
	if err != nil {
		return fmt.Errorf("store backup %s: %w", name, err)
	}
	bs.logger.Info("backup stored", slog.String("key", info.Key), slog.Int("records", len(b.Locations)))
	return nil
}

func (bs *BackupScheduler) record(ctx context.Context, count int, name string, opErr error) {
	if bs.Activity == nil {
		return
	}
	a := tracker.Activity{
		ID:        uuid.NewString(),
		Kind:      tracker.ActivityBackup,
		Actor:     "scheduler",
		Detail:    name,
		Count:     count,
		CreatedAt: bs.now().UTC(),
	}
	if opErr != nil {
		a.Error = opErr.Error()
	}
	if err := bs.Activity.AppendActivity(ctx, a); err != nil {
		bs.logger.Warn("activity log append failed", slog.Any("error", err))
	}
}
