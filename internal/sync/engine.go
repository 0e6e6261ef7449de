// Package sync implements the synchronization engine: it diffs the remote
// course listings against the local file index, downloads what changed
// with bounded concurrency, and keeps the index consistent with what is
// actually on disk.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/frartenzo/webeep-sync/internal/config"
	"github.com/frartenzo/webeep-sync/internal/events"
	"github.com/frartenzo/webeep-sync/internal/moodle"
	"github.com/frartenzo/webeep-sync/internal/utils"
)

// ErrSyncInProgress is returned when Sync is called while a pass is
// already running.
var ErrSyncInProgress = errors.New("sync: a pass is already running")

// CourseClient is the remote surface the engine consumes.
type CourseClient interface {
	ListCourses(ctx context.Context) ([]moodle.Course, error)
	ListFiles(ctx context.Context, courseID int64) ([]*moodle.FileInfo, error)
	DownloadFile(ctx context.Context, fileURL, destPath string, progress func(downloaded, total int64)) error
	InvalidateContents()
}

// Engine runs sync passes. One pass at a time; a concurrent Sync call is
// rejected with ErrSyncInProgress.
type Engine struct {
	client CourseClient
	index  *Index
	store  *config.Store
	bus    *events.Bus

	muPass   sync.Mutex
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func NewEngine(client CourseClient, index *Index, store *config.Store, bus *events.Bus) *Engine {
	return &Engine{
		client: client,
		index:  index,
		store:  store,
		bus:    bus,
	}
}

// Syncing reports whether a pass is currently running.
func (e *Engine) Syncing() bool {
	if e.muPass.TryLock() {
		e.muPass.Unlock()
		return false
	}
	return true
}

// Stop cancels the in-flight pass, if any. In-flight transfers are
// aborted; aborted transfers are never recorded in the index.
func (e *Engine) Stop() {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Sync runs one pass over every course flagged for syncing: list, diff,
// delete orphans, download changes, update the index. A failed file is
// recorded and skipped; a failed course listing skips that course; neither
// aborts the pass.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	if !e.muPass.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer e.muPass.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.cancelMu.Lock()
	e.cancel = cancel
	e.cancelMu.Unlock()

	result := &Result{
		PassID:   uuid.NewString(),
		Started:  time.Now(),
		NewFiles: []string{},
	}

	slog.Info("sync start", "pass", result.PassID)
	e.publish(events.SyncStarted{PassID: result.PassID})

	settings := e.store.Get()
	e.client.InvalidateContents()

	plans, err := e.plan(ctx, settings, result)
	if err != nil {
		e.finish(result)
		return result, err
	}

	e.applyDeletions(ctx, plans, result)
	e.runDownloads(ctx, settings, plans, result)

	result.Canceled = ctx.Err() != nil
	e.finish(result)
	return result, nil
}

// plan lists and diffs every flagged course. Listing failures are recorded
// per course and skipped.
func (e *Engine) plan(ctx context.Context, settings *config.Settings, result *Result) ([]*coursePlan, error) {
	courses, err := e.client.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	var plans []*coursePlan
	for _, course := range courses {
		if ctx.Err() != nil {
			return plans, nil
		}

		cs := settings.Courses[course.ID]
		if cs == nil || !cs.ShouldSync {
			continue
		}

		name := course.Name
		if cs.CustomName != "" {
			name = cs.CustomName
		}
		courseDir := filepath.Join(settings.DownloadPath, utils.SanitizeSegment(name))

		files, err := e.client.ListFiles(ctx, course.ID)
		if err != nil {
			slog.Warn("course listing failed, skipping", "course", name, "error", err)
			result.CourseErrors = append(result.CourseErrors, CourseError{
				CourseID: course.ID,
				Name:     name,
				Error:    err.Error(),
			})
			e.publish(events.SyncCourse{
				PassID:     result.PassID,
				CourseID:   course.ID,
				CourseName: name,
				Error:      err.Error(),
			})
			continue
		}

		records, err := e.index.Get(course.ID)
		if err != nil {
			return nil, fmt.Errorf("read index for course %d: %w", course.ID, err)
		}

		plans = append(plans, diffCourse(course, courseDir, files, records))
	}
	return plans, nil
}

// applyDeletions removes local files whose remote counterpart disappeared,
// dropping file and record together.
func (e *Engine) applyDeletions(ctx context.Context, plans []*coursePlan, result *Result) {
	for _, plan := range plans {
		for _, del := range plan.deletions {
			if ctx.Err() != nil {
				return
			}
			if err := os.Remove(del.localPath); err != nil && !os.IsNotExist(err) {
				slog.Warn("delete failed", "path", del.localPath, "error", err)
				result.FileErrors = append(result.FileErrors, FileError{
					CourseID: del.record.CourseID,
					Path:     del.record.Key(),
					Error:    err.Error(),
				})
				continue
			}
			if err := e.index.Remove(del.record.CourseID, del.record.Filepath, del.record.Filename); err != nil {
				slog.Error("index remove failed", "path", del.record.Key(), "error", err)
				continue
			}
			result.Deleted++
		}
	}
}

// runDownloads executes all scheduled transfers with bounded concurrency.
func (e *Engine) runDownloads(ctx context.Context, settings *config.Settings, plans []*coursePlan, result *Result) {
	type courseStats struct {
		downloaded int
		failed     int
	}
	stats := make(map[int64]*courseStats, len(plans))
	for _, plan := range plans {
		stats[plan.course.ID] = &courseStats{}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(settings.DownloadWorkers)

	for _, plan := range plans {
		for _, job := range plan.downloads {
			g.Go(func() error {
				// cancellation is checked between files; a started
				// transfer is aborted by the shared context
				if gctx.Err() != nil {
					return nil
				}

				err := e.downloadOne(gctx, result.PassID, job)

				mu.Lock()
				defer mu.Unlock()
				cs := stats[job.course.ID]
				if err != nil {
					if gctx.Err() == nil {
						slog.Warn("download failed", "path", job.relPath, "error", err)
						cs.failed++
						result.FileErrors = append(result.FileErrors, FileError{
							CourseID: job.course.ID,
							Path:     job.relPath,
							Error:    err.Error(),
						})
						e.publish(events.SyncFile{
							PassID:   result.PassID,
							CourseID: job.course.ID,
							Path:     job.relPath,
							Error:    err.Error(),
						})
					}
					return nil
				}

				cs.downloaded++
				result.Downloaded++
				result.Bytes += job.file.Filesize
				result.NewFiles = append(result.NewFiles, path.Join(filepath.Base(job.courseDir), job.relPath))
				e.publish(events.SyncFile{
					PassID:   result.PassID,
					CourseID: job.course.ID,
					Path:     job.relPath,
					Size:     job.file.Filesize,
				})
				return nil
			})
		}
	}
	g.Wait()

	for _, plan := range plans {
		cs := stats[plan.course.ID]
		e.publish(events.SyncCourse{
			PassID:     result.PassID,
			CourseID:   plan.course.ID,
			CourseName: plan.course.Name,
			Downloaded: cs.downloaded,
			Deleted:    len(plan.deletions),
			Failed:     cs.failed,
		})
	}
}

// downloadOne transfers a single file with the write-temp-then-rename
// discipline: the index record is written only after the file reached its
// final path.
func (e *Engine) downloadOne(ctx context.Context, passID string, job *downloadJob) error {
	tmpPath := job.finalPath + ".part"

	err := e.client.DownloadFile(ctx, job.file.URL, tmpPath, func(downloaded, total int64) {
		e.publish(events.SyncProgress{
			PassID:     passID,
			CourseID:   job.course.ID,
			Path:       job.relPath,
			Downloaded: downloaded,
			Total:      total,
		})
	})
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, job.finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %q: %w", job.finalPath, err)
	}

	record := &Record{
		CourseID:     job.course.ID,
		Filepath:     job.file.Filepath,
		Filename:     job.file.Filename,
		Size:         job.file.Filesize,
		ModifiedAt:   job.file.ModifiedAt.Unix(),
		DownloadedAt: time.Now().Unix(),
	}
	if err := e.index.Upsert(record); err != nil {
		return fmt.Errorf("index update %q: %w", job.relPath, err)
	}

	slog.Debug("downloaded", "path", job.relPath, "size", humanize.Bytes(uint64(job.file.Filesize)))
	return nil
}

func (e *Engine) finish(result *Result) {
	result.Duration = time.Since(result.Started)
	slog.Info("sync done",
		"pass", result.PassID,
		"took", result.Duration,
		"downloads", result.Downloaded,
		"deletes", result.Deleted,
		"failed", len(result.FileErrors),
		"bytes", humanize.Bytes(uint64(result.Bytes)),
		"canceled", result.Canceled,
	)
	e.publish(events.SyncDone{
		PassID:     result.PassID,
		NewFiles:   result.NewFiles,
		Downloaded: result.Downloaded,
		Deleted:    result.Deleted,
		Failed:     len(result.FileErrors),
		Bytes:      result.Bytes,
		DurationMS: result.Duration.Milliseconds(),
		Canceled:   result.Canceled,
	})
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
