package normalize

import (
	"fmt"
	"math"
	"time"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/schema"
)

// ErrLowConfidence marks readings below a source's confidence floor. Wrist
// devices write stand-in values when the sensor loses contact; those are
// dropped quietly rather than warned about.
var ErrLowConfidence = fmt.Errorf("%w: low-confidence reading", errs.ErrData)

// VitalsNormalizer converts one source's raw sensor readings into Vitals.
type VitalsNormalizer struct {
	src *schema.Source
	loc *time.Location
}

// NewVitals builds a normalizer for one source's vitals readings, parsing
// timestamps in loc.
func NewVitals(src *schema.Source, loc *time.Location) *VitalsNormalizer {
	return &VitalsNormalizer{src: src, loc: loc}
}

// Normalize converts one raw reading of the given kind. Fractional values
// round to the nearest integer; physiologically impossible values are data
// errors, and values under the source's confidence floor return
// ErrLowConfidence.
func (n *VitalsNormalizer) Normalize(raw any, kind models.DataKind) (models.Vitals, error) {
	if kind != models.KindSpO2 && kind != models.KindHeartRate {
		return models.Vitals{}, errs.Configf("kind %q is not a vitals kind", kind)
	}
	ks := n.src.Kinds[kind]
	if err := ks.CheckRequired(raw); err != nil {
		return models.Vitals{}, err
	}
	r := n.src.Resolver(raw, kind, n.loc)

	ts, err := r.ResolveTime(schema.FieldTimestamp)
	if err != nil {
		return models.Vitals{}, err
	}
	f, err := r.ResolveFloat(schema.FieldValue)
	if err != nil {
		return models.Vitals{}, err
	}
	value := int(math.Round(f))

	switch kind {
	case models.KindSpO2:
		if value < 0 || value > 100 {
			return models.Vitals{}, errs.Dataf("oxygen saturation %d%% out of range", value)
		}
		if floor := n.src.SpO2Floor; floor > 0 && value < floor {
			return models.Vitals{}, fmt.Errorf("%w: spo2 %d%% under %d%%", ErrLowConfidence, value, floor)
		}
	case models.KindHeartRate:
		if value <= 0 {
			return models.Vitals{}, errs.Dataf("heart rate %d bpm is not positive", value)
		}
		if floor := n.src.HeartRateFloor; floor > 0 && value < floor {
			return models.Vitals{}, fmt.Errorf("%w: %d bpm under %d bpm", ErrLowConfidence, value, floor)
		}
	}
	return models.Vitals{Timestamp: ts, Kind: kind, Value: value}, nil
}
