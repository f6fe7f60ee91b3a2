// Package takeout handles Fitbit exports downloaded through Google Takeout:
// sleep and heart-rate JSON plus SpO2 CSV under the archive's Fitbit
// directory.
package takeout

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/schema"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/source"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/timezone"
)

// Name selects this handler on the command line.
const Name = "takeout"

const exportDir = "Global Export Data"

// Handler reads Google Takeout Fitbit exports.
type Handler struct {
	src *schema.Source
	log *slog.Logger
}

// New builds the Takeout handler.
func New(log *slog.Logger) *Handler {
	return &Handler{src: newSchema(), log: log}
}

func (h *Handler) Name() string           { return Name }
func (h *Handler) Schema() *schema.Source { return h.src }

// Locate resolves the archive's Fitbit directory and globs one kind's files.
func (h *Handler) Locate(root string, kind models.DataKind) ([]string, error) {
	fitbit, err := fitbitDir(root)
	if err != nil {
		return nil, err
	}
	ks, ok := h.src.Kinds[kind]
	if !ok {
		return nil, errs.Configf("takeout provides no %q data", kind)
	}
	return source.LocateFiles(fitbit, &ks, ks.Glob)
}

// Extract parses one located file into raw records.
func (h *Handler) Extract(path string, kind models.DataKind) ([]any, error) {
	ks, ok := h.src.Kinds[kind]
	if !ok {
		return nil, errs.Configf("takeout provides no %q data", kind)
	}
	return source.ReadFile(path, &ks)
}

// Timezone reads the profile's timezone. A missing or incomplete profile
// falls back to the system zone so the conversion still runs.
func (h *Handler) Timezone(root string) *time.Location {
	fitbit, err := fitbitDir(root)
	if err != nil {
		h.log.Warn("falling back to system timezone", "error", err)
		return time.Local
	}
	name, err := timezone.FromProfile(filepath.Join(fitbit, h.src.ProfilePath))
	if err != nil {
		h.log.Warn("falling back to system timezone", "error", err)
		return time.Local
	}
	return timezone.ResolveOrLocal(name, h.log)
}

// fitbitDir finds the archive's Fitbit directory: directly under root,
// under root/Takeout, or root itself when it already holds the export data.
func fitbitDir(root string) (string, error) {
	candidates := []string{
		filepath.Join(root, "Fitbit"),
		filepath.Join(root, "Takeout", "Fitbit"),
		root,
	}
	for _, dir := range candidates {
		if info, err := os.Stat(filepath.Join(dir, exportDir)); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", errs.Inputf("no Fitbit export data under %s", root)
}
