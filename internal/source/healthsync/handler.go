// Package healthsync handles Fitbit data exported by the Health Sync app:
// per-day CSV files whose names carry a localized data type, a date token,
// and a "Fitbit" suffix. One sleep file holds one session's stage rows.
package healthsync

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/schema"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/source"
)

// Name selects this handler on the command line.
const Name = "health_sync"

// DateFormat is the granularity of the date token in Health Sync filenames,
// configured in the app as one file per day, week, or month.
type DateFormat string

const (
	Daily   DateFormat = "DAILY"
	Weekly  DateFormat = "WEEKLY"
	Monthly DateFormat = "MONTHLY"
)

// dateGlobs matches the filename date token per granularity: "2024.01.16",
// "03-2024", "January 2024".
var dateGlobs = map[DateFormat]string{
	Daily:   "????.??.??",
	Weekly:  "??-????",
	Monthly: "* ????",
}

// ParseDateFormat validates a granularity name, case-insensitively.
func ParseDateFormat(s string) (DateFormat, error) {
	df := DateFormat(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := dateGlobs[df]; !ok {
		return "", errs.Inputf("invalid date format %q (use DAILY, WEEKLY, or MONTHLY)", s)
	}
	return df, nil
}

// dataTypes are the filename prefixes Health Sync writes per kind.
var dataTypes = map[models.DataKind]string{
	models.KindSleep:     "Sleep",
	models.KindSpO2:      "Oxygen saturation",
	models.KindHeartRate: "Heart rate",
}

// Handler reads Health Sync CSV exports.
type Handler struct {
	src        *schema.Source
	log        *slog.Logger
	dateFormat DateFormat
}

// New builds the Health Sync handler for one filename granularity.
func New(dateFormat DateFormat, log *slog.Logger) *Handler {
	return &Handler{src: newSchema(), log: log, dateFormat: dateFormat}
}

func (h *Handler) Name() string           { return Name }
func (h *Handler) Schema() *schema.Source { return h.src }

// Locate globs one kind's files under root. Vitals filenames carry the
// configured granularity; sleep files are written per session and always
// carry a daily date.
func (h *Handler) Locate(root string, kind models.DataKind) ([]string, error) {
	ks, ok := h.src.Kinds[kind]
	if !ok {
		return nil, errs.Configf("health_sync provides no %q data", kind)
	}
	pattern, err := h.globPattern(kind)
	if err != nil {
		return nil, err
	}
	return source.LocateFiles(root, &ks, pattern)
}

// globPattern builds "{data type} {date} Fitbit.csv" for one kind.
func (h *Handler) globPattern(kind models.DataKind) (string, error) {
	df := h.dateFormat
	if kind == models.KindSleep {
		df = Daily
	}
	glob, ok := dateGlobs[df]
	if !ok {
		return "", errs.Configf("unknown date format %q", df)
	}
	return fmt.Sprintf("%s %s Fitbit.csv", dataTypes[kind], glob), nil
}

// Extract parses one located file. A sleep file's rows form a single
// session, so they wrap into one record; vitals rows are one record each.
func (h *Handler) Extract(path string, kind models.DataKind) ([]any, error) {
	ks, ok := h.src.Kinds[kind]
	if !ok {
		return nil, errs.Configf("health_sync provides no %q data", kind)
	}
	records, err := source.ReadFile(path, &ks)
	if err != nil {
		return nil, err
	}
	if kind == models.KindSleep {
		return []any{records}, nil
	}
	return records, nil
}

// Timezone returns the system zone: Health Sync writes phone-local
// timestamps and exports no zone name.
func (h *Handler) Timezone(root string) *time.Location {
	return time.Local
}
