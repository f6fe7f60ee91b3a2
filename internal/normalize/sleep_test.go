package normalize

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/fieldpath"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/schema"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSource() *schema.Source {
	return &schema.Source{
		Kinds: map[models.DataKind]schema.KindSchema{
			models.KindSleep: {
				Glob: "sleep-*.json",
				File: schema.FileJSON,
				Fields: schema.Mapping{
					schema.FieldTimestamp:  fieldpath.MustParse("dateOfSleep", false),
					schema.FieldStartTime:  fieldpath.MustParse("startTime", false),
					schema.FieldStopTime:   fieldpath.MustParse("endTime", false),
					schema.FieldDuration:   fieldpath.MustParse("duration", false),
					schema.FieldStages:     fieldpath.MustParse("levels.data", false),
					schema.FieldSummary:    fieldpath.MustParse("levels.summary", false),
					schema.FieldWASO:       fieldpath.MustParse("wasoSeconds", false),
					schema.FieldEfficiency: fieldpath.MustParse("efficiency", false),
				},
				Stage: &schema.StageMapping{
					Name:     fieldpath.MustParse("level", false),
					Start:    fieldpath.MustParse("dateTime", false),
					Duration: fieldpath.MustParse("seconds", false),
				},
				Required: []fieldpath.Path{
					fieldpath.MustParse("startTime", false),
					fieldpath.MustParse("levels.data", false),
				},
			},
			models.KindSpO2: {
				Glob: "spo2-*.csv",
				File: schema.FileCSV,
				Fields: schema.Mapping{
					schema.FieldTimestamp: fieldpath.MustParse("timestamp", false),
					schema.FieldValue:     fieldpath.MustParse("value", false),
				},
			},
			models.KindHeartRate: {
				Glob: "heart_rate-*.csv",
				File: schema.FileCSV,
				Fields: schema.Mapping{
					schema.FieldTimestamp: fieldpath.MustParse("timestamp", false),
					schema.FieldValue:     fieldpath.MustParse("value", false),
				},
			},
		},
		CSVTimestampLayout:  "2006-01-02 15:04:05",
		JSONTimestampLayout: "2006-01-02T15:04:05",
		DateLayout:          "2006-01-02",
		UseSeconds:          true,
		SpO2Floor:           75,
		HeartRateFloor:      50,
	}
}

func span(level, start string, units int) map[string]any {
	return map[string]any{
		"level":    level,
		"dateTime": start,
		"seconds":  float64(units),
	}
}

// rawSleep returns a 65-minute session: 5m wake, 30m light, 20m deep,
// 5m wake, 5m light. Total wake 10m, of which 5m precede sleep onset.
func rawSleep() map[string]any {
	return map[string]any{
		"dateOfSleep": "2024-01-16",
		"startTime":   "2024-01-16T00:00:00",
		"endTime":     "2024-01-16T01:05:00",
		"duration":    float64(3900),
		"levels": map[string]any{
			"data": []any{
				span("wake", "2024-01-16T00:00:00", 300),
				span("light", "2024-01-16T00:05:00", 1800),
				span("deep", "2024-01-16T00:35:00", 1200),
				span("wake", "2024-01-16T00:55:00", 300),
				span("light", "2024-01-16T01:00:00", 300),
			},
		},
	}
}

// TestNormalizeSleep verifies a fully-mapped record: bounds, aggregated
// summary, derived WASO, and computed efficiency.
func TestNormalizeSleep(t *testing.T) {
	n := NewSleep(testSource(), time.UTC, discard())
	s, err := n.Normalize(rawSleep())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC); !s.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", s.Timestamp, want)
	}
	if want := time.Date(2024, 1, 16, 1, 5, 0, 0, time.UTC); !s.Stop.Equal(want) {
		t.Errorf("stop = %v, want %v", s.Stop, want)
	}
	if s.Duration != 3900*time.Second {
		t.Errorf("duration = %v, want 65m", s.Duration)
	}
	if s.Inconsistent {
		t.Error("consistent session flagged inconsistent")
	}

	wantSummary := map[string]models.StageSummary{
		models.StageWake:  {Count: 2, Duration: 600 * time.Second},
		models.StageLight: {Count: 2, Duration: 2100 * time.Second},
		models.StageDeep:  {Count: 1, Duration: 1200 * time.Second},
	}
	for stage, want := range wantSummary {
		if got := s.Summary[stage]; got != want {
			t.Errorf("summary[%s] = %+v, want %+v", stage, got, want)
		}
	}

	// Total wake 10m minus 5m before onset.
	if s.WASO != 300*time.Second {
		t.Errorf("waso = %v, want 5m", s.WASO)
	}
	if want := 100 * 3600.0 / 3900.0; math.Abs(s.Efficiency-want) > 1e-9 {
		t.Errorf("efficiency = %v, want %v", s.Efficiency, want)
	}
	if s.Awakenings() != 2 {
		t.Errorf("awakenings = %d, want 2", s.Awakenings())
	}
	if want := time.Date(2024, 1, 16, 0, 5, 0, 0, time.UTC); !s.Onset().Equal(want) {
		t.Errorf("onset = %v, want %v", s.Onset(), want)
	}
}

// TestNormalizeSleepProvidedFields verifies that source-provided summary,
// WASO, and efficiency win over the derived values, and that summary labels
// canonicalizing to the same stage merge.
func TestNormalizeSleepProvidedFields(t *testing.T) {
	raw := rawSleep()
	raw["wasoSeconds"] = float64(480)
	raw["efficiency"] = float64(88)
	raw["levels"].(map[string]any)["summary"] = map[string]any{
		"light":    map[string]any{"count": float64(2), "minutes": float64(35)},
		"deep":     map[string]any{"count": float64(1), "minutes": float64(20)},
		"restless": map[string]any{"count": float64(1), "minutes": float64(6)},
		"awake":    map[string]any{"count": float64(1), "minutes": float64(4)},
	}

	n := NewSleep(testSource(), time.UTC, discard())
	s, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.WASO != 480*time.Second {
		t.Errorf("waso = %v, want 8m", s.WASO)
	}
	if s.Efficiency != 88 {
		t.Errorf("efficiency = %v, want 88", s.Efficiency)
	}
	if got := s.Summary[models.StageLight]; got.Duration != 35*time.Minute {
		t.Errorf("summary[light] = %+v, want 35m", got)
	}
	want := models.StageSummary{Count: 2, Duration: 10 * time.Minute}
	if got := s.Summary[models.StageWake]; got != want {
		t.Errorf("summary[wake] = %+v, want %+v (restless+awake merged)", got, want)
	}
}

// TestNormalizeSleepBoundsFallbacks verifies that duration and stop time
// derive from each other, and from the stage data when neither is mapped.
func TestNormalizeSleepBoundsFallbacks(t *testing.T) {
	wantStop := time.Date(2024, 1, 16, 1, 5, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"stop from duration", func(raw map[string]any) { delete(raw, "endTime") }},
		{"duration from stop", func(raw map[string]any) { delete(raw, "duration") }},
		{"bounds from stages", func(raw map[string]any) {
			delete(raw, "endTime")
			delete(raw, "duration")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawSleep()
			tt.mutate(raw)
			n := NewSleep(testSource(), time.UTC, discard())
			s, err := n.Normalize(raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Duration != 3900*time.Second {
				t.Errorf("duration = %v, want 65m", s.Duration)
			}
			if !s.Stop.Equal(wantStop) {
				t.Errorf("stop = %v, want %v", s.Stop, wantStop)
			}
			if s.Inconsistent {
				t.Error("derived bounds flagged inconsistent")
			}
		})
	}
}

// TestNormalizeSleepInconsistent verifies that a stop time disagreeing with
// the stage data flags the session without rejecting it.
func TestNormalizeSleepInconsistent(t *testing.T) {
	raw := rawSleep()
	raw["endTime"] = "2024-01-16T01:20:00"

	n := NewSleep(testSource(), time.UTC, discard())
	s, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Inconsistent {
		t.Error("disagreeing bounds not flagged")
	}
}

// TestNormalizeSleepMinutes verifies minute-unit stage durations.
func TestNormalizeSleepMinutes(t *testing.T) {
	src := testSource()
	src.UseSeconds = false
	raw := rawSleep()
	raw["levels"].(map[string]any)["data"] = []any{
		span("wake", "2024-01-16T00:00:00", 5),
		span("light", "2024-01-16T00:05:00", 30),
		span("deep", "2024-01-16T00:35:00", 20),
		span("wake", "2024-01-16T00:55:00", 5),
		span("light", "2024-01-16T01:00:00", 5),
	}

	n := NewSleep(src, time.UTC, discard())
	s, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Summary[models.StageLight].Duration; got != 35*time.Minute {
		t.Errorf("summary[light] = %v, want 35m", got)
	}
	if s.WASO != 5*time.Minute {
		t.Errorf("waso = %v, want 5m", s.WASO)
	}
}

// TestNormalizeSleepRejects verifies the data errors: broken bounds,
// classic-format logs, and out-of-range efficiency all skip the record.
func TestNormalizeSleepRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"zero duration", func(raw map[string]any) {
			raw["duration"] = float64(0)
			delete(raw, "endTime")
		}},
		{"stop before start", func(raw map[string]any) {
			delete(raw, "duration")
			raw["endTime"] = "2024-01-15T23:00:00"
		}},
		{"missing required field", func(raw map[string]any) {
			delete(raw, "startTime")
		}},
		{"efficiency out of range", func(raw map[string]any) {
			raw["efficiency"] = float64(132)
		}},
		{"classic log format", func(raw map[string]any) {
			raw["levels"].(map[string]any)["data"] = []any{
				span("asleep", "2024-01-16T00:00:00", 3600),
				span("restless", "2024-01-16T01:00:00", 300),
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawSleep()
			tt.mutate(raw)
			n := NewSleep(testSource(), time.UTC, discard())
			if _, err := n.Normalize(raw); !errors.Is(err, errs.ErrData) {
				t.Errorf("Normalize() error = %v, want ErrData", err)
			}
		})
	}
}

// TestNormalizeSleepSpansFromTransform verifies that a stages transform may
// yield converted spans directly, bypassing the stage mapping.
func TestNormalizeSleepSpansFromTransform(t *testing.T) {
	src := testSource()
	ks := src.Kinds[models.KindSleep]
	ks.Stage = nil
	start := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	ks.Transforms = schema.TransformSpec{
		schema.FieldStages: func(raw any, r *schema.Resolver) (any, error) {
			return []models.StageSpan{
				{Stage: models.StageLight, Start: start, Duration: 50 * time.Minute},
				{Stage: models.StageDeep, Start: start.Add(50 * time.Minute), Duration: 15 * time.Minute},
			}, nil
		},
	}
	src.Kinds[models.KindSleep] = ks

	n := NewSleep(src, time.UTC, discard())
	s, err := n.Normalize(rawSleep())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(s.Stages))
	}
	if got := s.Summary[models.StageLight].Duration; got != 50*time.Minute {
		t.Errorf("summary[light] = %v, want 50m", got)
	}
}
