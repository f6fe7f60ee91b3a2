// Package schema describes how a vendor's raw export records map onto the
// canonical field vocabulary, and resolves those fields per record.
package schema

import (
	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/fieldpath"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
)

// Canonical sleep fields.
const (
	FieldTimestamp  = "timestamp"
	FieldStartTime  = "start_time"
	FieldStopTime   = "stop_time"
	FieldDuration   = "duration"
	FieldStages     = "sleep_stages"
	FieldSummary    = "sleep_summary"
	FieldWASO       = "wake_after_sleep_onset"
	FieldEfficiency = "sleep_efficiency"
)

// Canonical vitals fields.
const (
	FieldValue = "value"
)

// FileKind tells the reader how to parse located files.
type FileKind string

const (
	FileJSON FileKind = "json"
	FileCSV  FileKind = "csv"
)

// Mapping binds canonical field names to paths into a raw record.
type Mapping map[string]fieldpath.Path

// Transform computes a canonical field from a raw record. A transform may
// resolve other canonical fields through the resolver; those chains are
// memoized and cycle-checked.
type Transform func(raw any, r *Resolver) (any, error)

// TransformSpec binds canonical field names to transforms. A transform
// shadows a mapped path of the same name.
type TransformSpec map[string]Transform

// StageMapping locates the parts of one raw stage entry. The sleep_stages
// field resolves to a list; each element is a container these paths read.
type StageMapping struct {
	Name     fieldpath.Path
	Start    fieldpath.Path
	Duration fieldpath.Path
}

// KindSchema describes where one data kind lives in an export tree and how
// its raw records produce canonical fields.
type KindSchema struct {
	// Dir is the subdirectory under the export root, "" for the root itself.
	Dir  string
	Glob string
	File FileKind

	Fields     Mapping
	Transforms TransformSpec

	// Stage describes the elements of the sleep_stages list. A sleep
	// schema may omit it only when its stages transform yields
	// []models.StageSpan directly.
	Stage *StageMapping

	// Required lists paths that must be present in a raw record before
	// normalization. A record missing one is skipped as a data error.
	Required []fieldpath.Path
}

// CheckRequired verifies that every required path is present in raw.
func (ks *KindSchema) CheckRequired(raw any) error {
	for _, p := range ks.Required {
		if _, ok := p.Resolve(raw); !ok {
			return errs.Dataf("required field %q absent", p)
		}
	}
	return nil
}

// Source is a vendor's complete schema: one KindSchema per data kind plus
// parsing conventions shared across kinds.
type Source struct {
	Kinds map[models.DataKind]KindSchema

	// Timestamp layouts in Go reference-time notation. CSV and JSON files
	// of the same vendor may use different conventions.
	CSVTimestampLayout  string
	JSONTimestampLayout string

	// DateLayout parses values that carry a calendar date with no clock
	// part, such as a sleep session's date.
	DateLayout string

	// UseSeconds reports that raw stage durations are already seconds;
	// when false they are minutes.
	UseSeconds bool

	// Readings below these floors are stand-ins the device writes when
	// sensor confidence is low. They are dropped without a warning.
	// Zero disables the floor.
	SpO2Floor      int
	HeartRateFloor int

	// ProfilePath optionally names a file (relative to the export root)
	// carrying the user's timezone.
	ProfilePath string
}

// TimestampLayout returns the layout matching a file kind.
func (s *Source) TimestampLayout(file FileKind) string {
	if file == FileCSV {
		return s.CSVTimestampLayout
	}
	return s.JSONTimestampLayout
}

// producible canonical fields per data kind; Validate enforces these.
var requiredFields = map[models.DataKind][]string{
	models.KindSleep:     {FieldTimestamp, FieldStartTime, FieldStages},
	models.KindSpO2:      {FieldTimestamp, FieldValue},
	models.KindHeartRate: {FieldTimestamp, FieldValue},
}

// Validate checks that the source definition is internally complete. It is
// called once at registration; a failure here is a programming error in the
// vendor package, surfaced as a configuration error.
func (s *Source) Validate() error {
	if len(s.Kinds) == 0 {
		return errs.Configf("source defines no data kinds")
	}
	for kind, ks := range s.Kinds {
		if ks.File != FileJSON && ks.File != FileCSV {
			return errs.Configf("kind %q: unknown file kind %q", kind, ks.File)
		}
		if ks.Glob == "" {
			return errs.Configf("kind %q: empty glob pattern", kind)
		}
		if s.TimestampLayout(ks.File) == "" {
			return errs.Configf("kind %q: no timestamp layout for %s files", kind, ks.File)
		}
		for _, field := range requiredFields[kind] {
			if !ks.produces(field) {
				return errs.Configf("kind %q: field %q has neither mapping nor transform", kind, field)
			}
		}
		if kind == models.KindSleep {
			if err := s.validateSleep(&ks); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateSleep checks the parts of a schema only sleep records use: how
// stage entries decompose and how the session date parses.
func (s *Source) validateSleep(ks *KindSchema) error {
	_, stagesTransformed := ks.Transforms[FieldStages]
	if ks.Stage == nil && !stagesTransformed {
		return errs.Configf("sleep: mapped stages need a stage mapping")
	}
	if ks.Stage != nil {
		switch {
		case ks.Stage.Name.IsZero():
			return errs.Configf("sleep: stage mapping has no name path")
		case ks.Stage.Start.IsZero():
			return errs.Configf("sleep: stage mapping has no start path")
		case ks.Stage.Duration.IsZero():
			return errs.Configf("sleep: stage mapping has no duration path")
		}
	}
	if _, ok := ks.Transforms[FieldTimestamp]; !ok && s.DateLayout == "" {
		return errs.Configf("sleep: mapped timestamp needs a date layout")
	}
	return nil
}

func (ks *KindSchema) produces(field string) bool {
	if _, ok := ks.Transforms[field]; ok {
		return true
	}
	_, ok := ks.Fields[field]
	return ok
}
