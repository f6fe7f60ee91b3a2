package oscar

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
)

// Reading is one paired SpO2 and pulse sample.
type Reading struct {
	Time time.Time
	SpO2 int
	BPM  int
}

// DefaultSessionGap splits vitals into sessions: a silence longer than this
// between samples starts a new session.
const DefaultSessionGap = 15 * time.Minute

// maxChunkRecords caps records per binary file; OSCAR rejects larger files.
const maxChunkRecords = 4095

// PairReadings joins SpO2 and heart-rate streams on equal timestamps,
// dropping samples only one stream recorded. Inputs need not be sorted.
func PairReadings(spo2, bpm []models.Vitals) []Reading {
	a := sortedCopy(spo2)
	b := sortedCopy(bpm)
	readings := make([]Reading, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Timestamp.Equal(b[j].Timestamp):
			readings = append(readings, Reading{
				Time: a[i].Timestamp,
				SpO2: a[i].Value,
				BPM:  b[j].Value,
			})
			i++
			j++
		case a[i].Timestamp.Before(b[j].Timestamp):
			i++
		default:
			j++
		}
	}
	return readings
}

func sortedCopy(v []models.Vitals) []models.Vitals {
	out := append([]models.Vitals(nil), v...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Sessions splits readings into runs with no internal gap longer than gap.
func Sessions(readings []Reading, gap time.Duration) [][]Reading {
	if len(readings) == 0 {
		return nil
	}
	var sessions [][]Reading
	start := 0
	for i := 1; i < len(readings); i++ {
		if readings[i].Time.Sub(readings[i-1].Time) > gap {
			sessions = append(sessions, readings[start:i])
			start = i
		}
	}
	return append(sessions, readings[start:])
}

// WriteViatom writes each session as one or more Viatom binary files under
// dir, splitting sessions over the per-file record cap. Files are named for
// their last sample's wall time. It returns the paths written.
func WriteViatom(dir string, sessions [][]Reading) ([]string, error) {
	var files []string
	for _, session := range sessions {
		for len(session) > 0 {
			n := min(len(session), maxChunkRecords)
			chunk := session[:n]
			session = session[n:]

			name := chunk[n-1].Time.Format("20060102150405") + ".bin"
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, encodeChunk(chunk), 0o644); err != nil {
				return files, errs.Inputf("writing %s: %w", name, err)
			}
			files = append(files, path)
		}
	}
	return files, nil
}

// encodeChunk renders one chunk in the Viatom layout: a 40-byte
// little-endian header carrying the first sample's wall-clock parts, the
// file size, and a duration word, then five bytes per record.
func encodeChunk(chunk []Reading) []byte {
	buf := make([]byte, 0, 40+5*len(chunk))
	first := chunk[0].Time

	buf = append(buf, 0x05, 0x00)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(first.Year()))
	buf = append(buf,
		byte(first.Month()), byte(first.Day()),
		byte(first.Hour()), byte(first.Minute()), byte(first.Second()))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(5*len(chunk)+40))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(4*len(chunk)))
	buf = append(buf, make([]byte, 25)...)

	for _, r := range chunk {
		buf = append(buf, clampByte(r.SpO2), clampByte(r.BPM), 0, 0, 0)
	}
	return buf
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
