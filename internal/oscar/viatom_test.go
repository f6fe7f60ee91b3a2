package oscar

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
)

func vitals(kind models.DataKind, t time.Time, value int) models.Vitals {
	return models.Vitals{Timestamp: t, Kind: kind, Value: value}
}

// TestPairReadings verifies the timestamp join: only instants present in
// both streams pair, and unsorted input is tolerated.
func TestPairReadings(t *testing.T) {
	t0 := time.Date(2024, 1, 16, 0, 10, 0, 0, time.UTC)
	spo2 := []models.Vitals{
		vitals(models.KindSpO2, t0.Add(3*time.Minute), 94),
		vitals(models.KindSpO2, t0, 96),
		vitals(models.KindSpO2, t0.Add(time.Minute), 95),
	}
	bpm := []models.Vitals{
		vitals(models.KindHeartRate, t0.Add(time.Minute), 61),
		vitals(models.KindHeartRate, t0.Add(2*time.Minute), 62),
		vitals(models.KindHeartRate, t0.Add(3*time.Minute), 63),
	}

	readings := PairReadings(spo2, bpm)
	if len(readings) != 2 {
		t.Fatalf("paired %d readings, want 2", len(readings))
	}
	if !readings[0].Time.Equal(t0.Add(time.Minute)) || readings[0].SpO2 != 95 || readings[0].BPM != 61 {
		t.Errorf("readings[0] = %+v", readings[0])
	}
	if !readings[1].Time.Equal(t0.Add(3*time.Minute)) || readings[1].SpO2 != 94 || readings[1].BPM != 63 {
		t.Errorf("readings[1] = %+v", readings[1])
	}
}

// TestSessions verifies gap splitting: strictly longer than the gap starts
// a new session, and the trailing session is kept.
func TestSessions(t *testing.T) {
	t0 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	readings := []Reading{
		{Time: t0, SpO2: 96, BPM: 60},
		{Time: t0.Add(1 * time.Minute), SpO2: 96, BPM: 61},
		{Time: t0.Add(16 * time.Minute), SpO2: 95, BPM: 62},
		{Time: t0.Add(17 * time.Minute), SpO2: 95, BPM: 63},
	}

	sessions := Sessions(readings, DefaultSessionGap)
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if len(sessions[0]) != 2 || len(sessions[1]) != 2 {
		t.Errorf("session sizes = %d, %d; want 2, 2", len(sessions[0]), len(sessions[1]))
	}

	// A gap of exactly the threshold does not split.
	exact := []Reading{
		{Time: t0, SpO2: 96, BPM: 60},
		{Time: t0.Add(DefaultSessionGap), SpO2: 96, BPM: 61},
	}
	if got := Sessions(exact, DefaultSessionGap); len(got) != 1 {
		t.Errorf("exact-gap readings split into %d sessions, want 1", len(got))
	}

	if got := Sessions(nil, DefaultSessionGap); got != nil {
		t.Errorf("Sessions(nil) = %v, want nil", got)
	}
}

// TestWriteViatom verifies the binary layout byte for byte: magic, first
// sample's wall-clock parts, file size, duration word, padding, and the
// five-byte records, with the file named for the last sample.
func TestWriteViatom(t *testing.T) {
	dir := t.TempDir()
	first := time.Date(2024, 1, 16, 0, 10, 30, 0, time.UTC)
	session := []Reading{
		{Time: first, SpO2: 96, BPM: 61},
		{Time: first.Add(time.Minute), SpO2: 95, BPM: 62},
	}

	files, err := WriteViatom(dir, [][]Reading{session})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("wrote %d files, want 1", len(files))
	}
	if got := filepath.Base(files[0]); got != "20240116001130.bin" {
		t.Errorf("file name = %q, want last sample time", got)
	}

	body, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x05, 0x00, // magic
		0xE8, 0x07, // 2024 little-endian
		1, 16, 0, 10, 30, // month day hour minute second
		50, 0, 0, 0, // file size: 40 + 2*5
		8, 0, // duration word: 4 per record
	}
	want = append(want, make([]byte, 25)...)
	want = append(want,
		96, 61, 0, 0, 0,
		95, 62, 0, 0, 0,
	)
	if !bytes.Equal(body, want) {
		t.Errorf("binary layout mismatch\n got %v\nwant %v", body, want)
	}
}

// TestWriteViatomChunks verifies that an oversized session splits at the
// record cap into separate files.
func TestWriteViatomChunks(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	session := make([]Reading, maxChunkRecords+1)
	for i := range session {
		session[i] = Reading{Time: t0.Add(time.Duration(i) * time.Second), SpO2: 95, BPM: 60}
	}

	files, err := WriteViatom(dir, [][]Reading{session})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("wrote %d files, want 2", len(files))
	}

	full, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != 40+5*maxChunkRecords {
		t.Errorf("first chunk = %d bytes, want %d", len(full), 40+5*maxChunkRecords)
	}
	rest, err := os.ReadFile(files[1])
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 45 {
		t.Errorf("second chunk = %d bytes, want 45 (one record)", len(rest))
	}
}
