package healthsync

import (
	"time"

	"github.com/spf13/cast"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/fieldpath"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/schema"
)

// firstDate reads the first stage row's timestamp from a raw session.
var firstDate = fieldpath.MustParse("0.Date", true)

// newSchema declares the Health Sync layout: every kind is CSV in its own
// directory. A raw sleep record is the file's row list, so its fields are
// all transforms over that list; the session bounds chain off each other
// and resolve once.
func newSchema() *schema.Source {
	return &schema.Source{
		Kinds: map[models.DataKind]schema.KindSchema{
			models.KindSleep: {
				Dir:  "Health Sync Sleep",
				Glob: "Sleep ????.??.?? Fitbit.csv",
				File: schema.FileCSV,
				Transforms: schema.TransformSpec{
					schema.FieldTimestamp: func(raw any, r *schema.Resolver) (any, error) {
						return r.ResolveTime(schema.FieldStartTime)
					},
					schema.FieldStartTime: func(raw any, r *schema.Resolver) (any, error) {
						v, ok := firstDate.Resolve(raw)
						if !ok {
							return nil, errs.Dataf("sleep file has no rows")
						}
						return r.ParseTime(v)
					},
					schema.FieldStopTime: stopTime,
					schema.FieldDuration: func(raw any, r *schema.Resolver) (any, error) {
						start, err := r.ResolveTime(schema.FieldStartTime)
						if err != nil {
							return nil, err
						}
						stop, err := r.ResolveTime(schema.FieldStopTime)
						if err != nil {
							return nil, err
						}
						return stop.Sub(start), nil
					},
					schema.FieldStages: func(raw any, r *schema.Resolver) (any, error) {
						return raw, nil
					},
				},
				Stage: &schema.StageMapping{
					Name:     fieldpath.MustParse("Sleep stage", false),
					Start:    fieldpath.MustParse("Date", false),
					Duration: fieldpath.MustParse("Duration in seconds", false),
				},
				Required: []fieldpath.Path{
					fieldpath.MustParse("0.Date", true),
					fieldpath.MustParse("0.Sleep stage", true),
				},
			},
			models.KindSpO2: {
				Dir:  "Health Sync Oxygen Saturation",
				Glob: "Oxygen saturation ????.??.?? Fitbit.csv",
				File: schema.FileCSV,
				Fields: schema.Mapping{
					schema.FieldTimestamp: fieldpath.MustParse("Date", false),
					schema.FieldValue:     fieldpath.MustParse("Oxygen saturation", false),
				},
				Required: []fieldpath.Path{
					fieldpath.MustParse("Date", false),
				},
			},
			models.KindHeartRate: {
				Dir:  "Health Sync Heart rate",
				Glob: "Heart rate ????.??.?? Fitbit.csv",
				File: schema.FileCSV,
				Fields: schema.Mapping{
					schema.FieldTimestamp: fieldpath.MustParse("Date", false),
					schema.FieldValue:     fieldpath.MustParse("Heart rate", false),
				},
				Required: []fieldpath.Path{
					fieldpath.MustParse("Date", false),
				},
			},
		},
		CSVTimestampLayout: "2006.01.02 15:04:05",
		DateLayout:         "2006.01.02",
		UseSeconds:         true,
		SpO2Floor:          75,
		HeartRateFloor:     50,
	}
}

// stopTime computes a session's end: the last stage row's start plus that
// row's duration.
func stopTime(raw any, r *schema.Resolver) (any, error) {
	rows, ok := raw.([]any)
	if !ok || len(rows) == 0 {
		return nil, errs.Dataf("sleep file has no rows")
	}
	last, ok := rows[len(rows)-1].(map[string]any)
	if !ok {
		return nil, errs.Dataf("sleep row has unexpected type %T", rows[len(rows)-1])
	}
	start, err := r.ParseTime(last["Date"])
	if err != nil {
		return nil, err
	}
	secs, err := cast.ToFloat64E(last["Duration in seconds"])
	if err != nil {
		return nil, errs.Dataf("last row duration: %v", err)
	}
	return start.Add(time.Duration(secs * float64(time.Second))), nil
}
