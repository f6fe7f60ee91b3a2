// Package pipeline drives one conversion end to end: locate a source's
// export files, normalize their records, filter by date, and write the
// OSCAR-importable outputs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/normalize"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/oscar"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/source"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/storage"
)

// DreemFile is the sleep CSV's name inside the output directory.
const DreemFile = "dreem.csv"

// Options control one conversion run.
type Options struct {
	InputRoot string
	OutputDir string

	// Start and End bound the run to records whose calendar date falls in
	// the inclusive window. A zero bound is open.
	Start time.Time
	End   time.Time

	// Force converts files the ledger has already seen unchanged.
	Force bool

	// SessionGap splits vitals into sessions; zero means the default.
	SessionGap time.Duration
}

// Stats tracks conversion progress.
type Stats struct {
	FilesLocated int `json:"files_located"`
	FilesSkipped int `json:"files_skipped"`

	SleepSessions     int `json:"sleep_sessions"`
	SpO2Readings      int `json:"spo2_readings"`
	HeartRateReadings int `json:"heart_rate_readings"`

	RecordsSkipped int `json:"records_skipped"`
	LowConfidence  int `json:"low_confidence"`
	FilteredOut    int `json:"filtered_out"`

	ViatomFiles int `json:"viatom_files"`
}

// Converter runs one source's export through normalization and out to the
// OSCAR formats. It tracks a single run's progress; create one per run.
type Converter struct {
	handler source.Handler
	ledger  *storage.DB
	log     *slog.Logger

	stats     Stats
	converted []fingerprint
}

// New creates a Converter. A nil ledger disables run history and the
// unchanged-file skip.
func New(h source.Handler, ledger *storage.DB, log *slog.Logger) *Converter {
	return &Converter{handler: h, ledger: ledger, log: log}
}

// Run converts the export under opts.InputRoot and writes the outputs to
// opts.OutputDir. Ledger failures are logged and never fail the run. The
// returned stats are valid even when err is non-nil.
func (c *Converter) Run(ctx context.Context, opts Options) (*Stats, error) {
	if opts.SessionGap <= 0 {
		opts.SessionGap = oscar.DefaultSessionGap
	}

	run := storage.Run{
		ID:         uuid.New(),
		Source:     c.handler.Name(),
		InputPath:  opts.InputRoot,
		OutputPath: opts.OutputDir,
		StartedAt:  time.Now(),
		Status:     storage.StatusRunning,
	}
	c.startRun(ctx, run)

	err := c.convert(ctx, run.ID, opts)

	run.FinishedAt = time.Now()
	run.Status = storage.StatusSuccess
	run.Sleep = c.stats.SleepSessions
	run.SpO2 = c.stats.SpO2Readings
	run.HeartRate = c.stats.HeartRateReadings
	run.Skipped = c.stats.RecordsSkipped
	if err != nil {
		run.Status = storage.StatusError
		run.Error = err.Error()
	}
	c.finishRun(ctx, run)

	return &c.stats, err
}

func (c *Converter) convert(ctx context.Context, runID uuid.UUID, opts Options) error {
	loc := c.handler.Timezone(opts.InputRoot)
	c.log.Debug("resolved timezone", "zone", loc)

	sessions, err := c.convertSleep(ctx, loc, opts)
	if err != nil {
		return fmt.Errorf("converting sleep: %w", err)
	}
	spo2, err := c.convertVitals(ctx, models.KindSpO2, loc, opts)
	if err != nil {
		return fmt.Errorf("converting oxygen saturation: %w", err)
	}
	bpm, err := c.convertVitals(ctx, models.KindHeartRate, loc, opts)
	if err != nil {
		return fmt.Errorf("converting heart rate: %w", err)
	}

	if err := c.write(opts, sessions, spo2, bpm); err != nil {
		return err
	}
	c.markProcessed(ctx, runID)
	return nil
}

// convertSleep normalizes every located sleep record. Individual bad records
// are skipped; a file set whose every record fails aborts the run.
func (c *Converter) convertSleep(ctx context.Context, loc *time.Location, opts Options) ([]*models.Sleep, error) {
	n := normalize.NewSleep(c.handler.Schema(), loc, c.log)

	var sessions []*models.Sleep
	var seen, filtered int
	err := c.eachFile(ctx, models.KindSleep, opts, func(path string, records []any) error {
		for _, raw := range records {
			seen++
			s, err := n.Normalize(raw)
			if err != nil {
				if !errors.Is(err, errs.ErrData) {
					return err
				}
				c.stats.RecordsSkipped++
				c.log.Warn("skipping sleep record",
					"file", filepath.Base(path), "error", err)
				continue
			}
			if !inWindow(s.Timestamp, opts.Start, opts.End) {
				filtered++
				continue
			}
			sessions = append(sessions, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if seen > 0 && len(sessions) == 0 && filtered == 0 {
		return nil, errs.Inputf("no usable sleep session in %d records", seen)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Start.Before(sessions[j].Start)
	})
	c.stats.SleepSessions = len(sessions)
	c.stats.FilteredOut += filtered
	return sessions, nil
}

func (c *Converter) convertVitals(ctx context.Context, kind models.DataKind, loc *time.Location, opts Options) ([]models.Vitals, error) {
	n := normalize.NewVitals(c.handler.Schema(), loc)

	var readings []models.Vitals
	err := c.eachFile(ctx, kind, opts, func(path string, records []any) error {
		for _, raw := range records {
			v, err := n.Normalize(raw, kind)
			switch {
			case errors.Is(err, normalize.ErrLowConfidence):
				c.stats.LowConfidence++
				c.log.Debug("dropping low-confidence reading",
					"kind", kind, "error", err)
				continue
			case errors.Is(err, errs.ErrData):
				c.stats.RecordsSkipped++
				c.log.Warn("skipping reading",
					"kind", kind, "file", filepath.Base(path), "error", err)
				continue
			case err != nil:
				return err
			}
			if !inWindow(v.Timestamp, opts.Start, opts.End) {
				c.stats.FilteredOut++
				continue
			}
			readings = append(readings, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch kind {
	case models.KindSpO2:
		c.stats.SpO2Readings = len(readings)
	case models.KindHeartRate:
		c.stats.HeartRateReadings = len(readings)
	}
	return readings, nil
}

// eachFile locates kind's files and hands each file's raw records to fn.
// Files the ledger has seen with an unchanged fingerprint are skipped unless
// the run is forced; files fn accepts are queued for ledger marking.
func (c *Converter) eachFile(ctx context.Context, kind models.DataKind, opts Options, fn func(path string, records []any) error) error {
	files, err := c.handler.Locate(opts.InputRoot, kind)
	if err != nil {
		return err
	}
	for _, path := range files {
		c.stats.FilesLocated++

		var fp fingerprint
		if c.ledger != nil {
			fp, err = fileFingerprint(path)
			if err != nil {
				c.log.Warn("cannot fingerprint file", "file", path, "error", err)
			} else if !opts.Force && c.isProcessed(ctx, fp) {
				c.stats.FilesSkipped++
				c.log.Debug("skipping unchanged file", "file", filepath.Base(path))
				continue
			}
		}

		records, err := c.handler.Extract(path, kind)
		if err != nil {
			return err
		}
		if err := fn(path, records); err != nil {
			return err
		}
		if fp.hash != "" {
			c.converted = append(c.converted, fp)
		}
	}
	return nil
}

// write creates the output directory and renders both OSCAR formats. An
// incremental run that skipped every sleep file and found nothing new leaves
// the previous session CSV in place.
func (c *Converter) write(opts Options, sessions []*models.Sleep, spo2, bpm []models.Vitals) error {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return errs.Inputf("output directory: %w", err)
	}

	if len(sessions) > 0 || c.stats.FilesSkipped == 0 {
		path := filepath.Join(opts.OutputDir, DreemFile)
		if err := oscar.WriteDreem(path, sessions); err != nil {
			return err
		}
		c.log.Info("wrote sleep sessions", "file", path, "sessions", len(sessions))
	}

	readings := oscar.PairReadings(spo2, bpm)
	files, err := oscar.WriteViatom(opts.OutputDir, oscar.Sessions(readings, opts.SessionGap))
	if err != nil {
		return err
	}
	c.stats.ViatomFiles = len(files)
	c.log.Info("wrote pulse oximetry", "files", len(files), "readings", len(readings))
	return nil
}

type fingerprint struct {
	path string
	size int64
	hash string
}

func fileFingerprint(path string) (fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fingerprint{}, err
	}
	hash, err := storage.HashFile(path)
	if err != nil {
		return fingerprint{}, err
	}
	return fingerprint{path: path, size: info.Size(), hash: hash}, nil
}

func (c *Converter) isProcessed(ctx context.Context, fp fingerprint) bool {
	seen, err := c.ledger.IsProcessed(ctx, fp.path, fp.size, fp.hash)
	if err != nil {
		c.log.Warn("ledger lookup failed", "file", fp.path, "error", err)
		return false
	}
	return seen
}

func (c *Converter) startRun(ctx context.Context, run storage.Run) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.StartRun(ctx, run); err != nil {
		c.log.Warn("ledger unavailable", "error", err)
	}
}

func (c *Converter) finishRun(ctx context.Context, run storage.Run) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.FinishRun(ctx, run); err != nil {
		c.log.Warn("ledger update failed", "error", err)
	}
}

func (c *Converter) markProcessed(ctx context.Context, runID uuid.UUID) {
	if c.ledger == nil {
		return
	}
	for _, fp := range c.converted {
		if err := c.ledger.MarkProcessed(ctx, runID, fp.path, fp.size, fp.hash); err != nil {
			c.log.Warn("ledger update failed", "file", fp.path, "error", err)
		}
	}
}

// inWindow reports whether t's calendar date falls in the inclusive
// [start, end] window. Dates compare by wall-clock day so a reading keeps
// its export-local date regardless of zone.
func inWindow(t, start, end time.Time) bool {
	d := dateOf(t)
	if !start.IsZero() && d.Before(dateOf(start)) {
		return false
	}
	if !end.IsZero() && d.After(dateOf(end)) {
		return false
	}
	return true
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// earliestDate bounds the conversion window; no tracker recorded data
// before it.
var earliestDate = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

// Window parses start and end date arguments (YYYY-M-D, zero padding
// optional) into an inclusive window, widened one day each side so sessions
// crossing midnight at an edge stay included, then clamped to the tracker
// era. An empty argument leaves that side at the clamp.
func Window(startArg, endArg string) (start, end time.Time, err error) {
	today := dateOf(time.Now())
	start, end = earliestDate, today

	if startArg != "" {
		if start, err = parseDate(startArg); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endArg != "" {
		if end, err = parseDate(endArg); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errs.Inputf("end date %s is before start date %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	start = start.AddDate(0, 0, -1)
	end = end.AddDate(0, 0, 1)
	if start.Before(earliestDate) {
		start = earliestDate
	}
	if end.After(today) {
		end = today
	}
	return start, end, nil
}

func parseDate(arg string) (time.Time, error) {
	t, err := time.Parse("2006-1-2", arg)
	if err != nil {
		return time.Time{}, errs.Inputf("invalid date %q (want YYYY-M-D)", arg)
	}
	return t, nil
}
