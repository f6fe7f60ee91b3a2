package takeout

import (
	"path/filepath"
	"time"

	"github.com/spf13/cast"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/fieldpath"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/schema"
)

// Raw paths the duration transforms read.
var (
	durationMillis = fieldpath.MustParse("duration", false)
	minutesAwake   = fieldpath.MustParse("minutesAwake", false)
)

// newSchema declares the Takeout layout. Sleep and heart rate are JSON
// under "Global Export Data"; SpO2 is per-minute CSV in its own directory.
// JSON timestamps are local with trailing millis, CSV timestamps are UTC.
func newSchema() *schema.Source {
	return &schema.Source{
		Kinds: map[models.DataKind]schema.KindSchema{
			models.KindSleep: {
				Dir:  exportDir,
				Glob: "sleep-*.json",
				File: schema.FileJSON,
				Fields: schema.Mapping{
					schema.FieldTimestamp:  fieldpath.MustParse("dateOfSleep", false),
					schema.FieldStartTime:  fieldpath.MustParse("startTime", false),
					schema.FieldStopTime:   fieldpath.MustParse("endTime", false),
					schema.FieldStages:     fieldpath.MustParse("levels.data", false),
					schema.FieldSummary:    fieldpath.MustParse("levels.summary", false),
					schema.FieldEfficiency: fieldpath.MustParse("efficiency", false),
				},
				Transforms: schema.TransformSpec{
					// The exported duration is milliseconds.
					schema.FieldDuration: func(raw any, r *schema.Resolver) (any, error) {
						v, ok := durationMillis.Resolve(raw)
						if !ok {
							return nil, schema.ErrFieldAbsent
						}
						ms, err := cast.ToFloat64E(v)
						if err != nil {
							return nil, errs.Dataf("duration: %v", err)
						}
						return time.Duration(ms * float64(time.Millisecond)), nil
					},
					schema.FieldWASO: func(raw any, r *schema.Resolver) (any, error) {
						v, ok := minutesAwake.Resolve(raw)
						if !ok {
							return nil, schema.ErrFieldAbsent
						}
						minutes, err := cast.ToFloat64E(v)
						if err != nil {
							return nil, errs.Dataf("minutesAwake: %v", err)
						}
						return time.Duration(minutes * float64(time.Minute)), nil
					},
				},
				Stage: &schema.StageMapping{
					Name:     fieldpath.MustParse("level", false),
					Start:    fieldpath.MustParse("dateTime", false),
					Duration: fieldpath.MustParse("seconds", false),
				},
				Required: []fieldpath.Path{
					fieldpath.MustParse("dateOfSleep", false),
					fieldpath.MustParse("startTime", false),
					fieldpath.MustParse("levels.data", false),
				},
			},
			models.KindSpO2: {
				Dir:  "Oxygen Saturation (SpO2)",
				Glob: "spo2-*.csv",
				File: schema.FileCSV,
				Fields: schema.Mapping{
					schema.FieldTimestamp: fieldpath.MustParse("timestamp", false),
					schema.FieldValue:     fieldpath.MustParse("value", false),
				},
				Required: []fieldpath.Path{
					fieldpath.MustParse("timestamp", false),
				},
			},
			models.KindHeartRate: {
				Dir:  exportDir,
				Glob: "heart-rate-*.json",
				File: schema.FileJSON,
				Fields: schema.Mapping{
					schema.FieldTimestamp: fieldpath.MustParse("dateTime", false),
					schema.FieldValue:     fieldpath.MustParse("value.bpm", false),
				},
				Required: []fieldpath.Path{
					fieldpath.MustParse("dateTime", false),
				},
			},
		},
		CSVTimestampLayout:  "2006-01-02T15:04:05",
		JSONTimestampLayout: "2006-01-02T15:04:05.000",
		DateLayout:          "2006-01-02",
		UseSeconds:          true,
		SpO2Floor:           75,
		HeartRateFloor:      50,
		ProfilePath:         filepath.Join("Your Profile", "Profile.csv"),
	}
}
