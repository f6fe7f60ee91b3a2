package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
)

// TestNormalizeVitals verifies value coercion, rounding, range checks, and
// the confidence floors for both vitals kinds.
func TestNormalizeVitals(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.DataKind
		value   any
		want    int
		wantErr error
	}{
		{"spo2 ok", models.KindSpO2, float64(97), 97, nil},
		{"spo2 csv string", models.KindSpO2, "96.6", 97, nil},
		{"spo2 over range", models.KindSpO2, float64(150), 0, errs.ErrData},
		{"spo2 negative", models.KindSpO2, float64(-1), 0, errs.ErrData},
		{"spo2 stand-in under floor", models.KindSpO2, float64(50), 0, ErrLowConfidence},
		{"heart rate ok", models.KindHeartRate, float64(62), 62, nil},
		{"heart rate zero", models.KindHeartRate, float64(0), 0, errs.ErrData},
		{"heart rate negative", models.KindHeartRate, float64(-3), 0, errs.ErrData},
		{"heart rate under floor", models.KindHeartRate, float64(30), 0, ErrLowConfidence},
	}
	n := NewVitals(testSource(), time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]any{
				"timestamp": "2024-01-16 00:00:00",
				"value":     tt.value,
			}
			v, err := n.Normalize(raw, tt.kind)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Normalize() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Value != tt.want {
				t.Errorf("value = %d, want %d", v.Value, tt.want)
			}
			if v.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", v.Kind, tt.kind)
			}
			want := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
			if !v.Timestamp.Equal(want) {
				t.Errorf("timestamp = %v, want %v", v.Timestamp, want)
			}
		})
	}
}

// TestNormalizeVitalsLowConfidenceIsData verifies that low-confidence
// readings still classify as data errors for counting purposes.
func TestNormalizeVitalsLowConfidenceIsData(t *testing.T) {
	n := NewVitals(testSource(), time.UTC)
	raw := map[string]any{"timestamp": "2024-01-16 00:00:00", "value": float64(50)}
	_, err := n.Normalize(raw, models.KindSpO2)
	if !errors.Is(err, errs.ErrData) {
		t.Errorf("low-confidence error = %v, want ErrData", err)
	}
}

// TestNormalizeVitalsWrongKind verifies that asking for a non-vitals kind
// is a configuration error.
func TestNormalizeVitalsWrongKind(t *testing.T) {
	n := NewVitals(testSource(), time.UTC)
	if _, err := n.Normalize(map[string]any{}, models.KindSleep); !errors.Is(err, errs.ErrConfig) {
		t.Errorf("Normalize(sleep) error = %v, want ErrConfig", err)
	}
}
