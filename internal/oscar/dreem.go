// Package oscar writes the two file formats OSCAR imports: Dreem-style
// sleep session CSVs and Viatom pulse-oximeter binaries.
package oscar

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
)

const dreemTimeLayout = "2006-01-02T15:04:05"

// dreemHeader is the column set OSCAR's Dreem importer expects.
var dreemHeader = []string{
	"Start Time",
	"Stop Time",
	"Sleep Onset Duration",
	"Light Sleep Duration",
	"Deep Sleep Duration",
	"REM Duration",
	"Wake After Sleep Onset Duration",
	"Number of awakenings",
	"Sleep efficiency",
	"Hypnogram",
}

// WriteDreem writes sessions as a semicolon-separated Dreem CSV. The header
// is written even when there are no sessions.
func WriteDreem(path string, sessions []*models.Sleep) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Inputf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(dreemHeader); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	for _, s := range sessions {
		if err := w.Write(dreemRow(s)); err != nil {
			return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func dreemRow(s *models.Sleep) []string {
	return []string{
		s.Start.Format(dreemTimeLayout),
		s.Stop.Format(dreemTimeLayout),
		clock(s.Duration),
		clock(s.StageDuration(models.StageLight)),
		clock(s.StageDuration(models.StageDeep)),
		clock(s.StageDuration(models.StageREM)),
		clock(s.WASO),
		strconv.Itoa(s.Awakenings()),
		strconv.FormatFloat(s.Efficiency, 'f', 2, 64),
		Hypnogram(s.Stages),
	}
}

// clock renders a duration as HH:MM:SS.
func clock(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

// hypnogramLabels maps canonical stages to Dreem's vocabulary.
var hypnogramLabels = map[string]string{
	models.StageWake:  "WAKE",
	models.StageLight: "Light",
	models.StageDeep:  "Deep",
	models.StageREM:   "REM",
}

// Hypnogram renders spans as one stage label per 30-second epoch, joined
// with commas and wrapped in brackets.
func Hypnogram(spans []models.StageSpan) string {
	var b strings.Builder
	b.WriteByte('[')
	first := true
	for _, span := range spans {
		label, ok := hypnogramLabels[span.Stage]
		if !ok {
			continue
		}
		for i := 0; i < int(span.Duration/(30*time.Second)); i++ {
			if !first {
				b.WriteByte(',')
			}
			b.WriteString(label)
			first = false
		}
	}
	b.WriteByte(']')
	return b.String()
}
