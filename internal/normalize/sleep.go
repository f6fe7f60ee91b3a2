// Package normalize turns schema-resolved raw records into canonical sleep
// sessions and vitals readings, computing the fields a source does not
// provide directly.
package normalize

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cast"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/schema"
)

// stopTolerance bounds how far a session's reported stop time may disagree
// with its other bounds before the session is flagged inconsistent.
const stopTolerance = time.Second

// SleepNormalizer converts one source's raw sleep records into sessions.
type SleepNormalizer struct {
	src *schema.Source
	loc *time.Location
	log *slog.Logger
}

// NewSleep builds a normalizer for one source's sleep records, parsing
// timestamps in loc.
func NewSleep(src *schema.Source, loc *time.Location, log *slog.Logger) *SleepNormalizer {
	return &SleepNormalizer{src: src, loc: loc, log: log}
}

// Normalize converts one raw sleep record into a session. A record that
// cannot produce a valid session returns a data error; a schema that cannot
// produce one returns a configuration error.
func (n *SleepNormalizer) Normalize(raw any) (*models.Sleep, error) {
	ks := n.src.Kinds[models.KindSleep]
	if err := ks.CheckRequired(raw); err != nil {
		return nil, err
	}
	r := n.src.Resolver(raw, models.KindSleep, n.loc)

	s := &models.Sleep{}
	var err error
	if s.Timestamp, err = r.ResolveDate(schema.FieldTimestamp); err != nil {
		return nil, err
	}
	if s.Start, err = r.ResolveTime(schema.FieldStartTime); err != nil {
		return nil, err
	}
	if s.Stages, err = n.stages(r); err != nil {
		return nil, err
	}
	sort.SliceStable(s.Stages, func(i, j int) bool {
		return s.Stages[i].Start.Before(s.Stages[j].Start)
	})

	if err := n.bounds(r, s); err != nil {
		return nil, err
	}
	if err := n.summary(r, s); err != nil {
		return nil, err
	}
	if err := n.waso(r, s); err != nil {
		return nil, err
	}
	if err := n.efficiency(r, s); err != nil {
		return nil, err
	}

	// Classic-format logs summarize asleep/restless/awake instead of
	// stages; OSCAR needs staged sessions, so they are skipped.
	if _, ok := s.Summary[models.StageLight]; !ok {
		return nil, errs.Dataf("no light sleep stage (classic log format)")
	}
	return s, nil
}

// stages resolves the session's stage spans. A transform may yield spans
// directly; otherwise the raw entries decompose through the stage mapping.
func (n *SleepNormalizer) stages(r *schema.Resolver) ([]models.StageSpan, error) {
	v, err := r.Resolve(schema.FieldStages)
	if err != nil {
		return nil, err
	}
	if spans, ok := v.([]models.StageSpan); ok {
		return spans, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, errs.Dataf("sleep stages: unexpected type %T", v)
	}
	mapping := n.src.Kinds[models.KindSleep].Stage
	if mapping == nil {
		return nil, errs.Configf("sleep stages: raw entries need a stage mapping")
	}

	spans := make([]models.StageSpan, 0, len(list))
	for i, entry := range list {
		span, ok, err := n.stageSpan(r, mapping, entry)
		if err != nil {
			return nil, errs.Dataf("stage entry %d: %w", i, err)
		}
		if !ok {
			continue
		}
		spans = append(spans, span)
	}
	return spans, nil
}

// stageSpan converts one raw stage entry. ok is false for labels outside
// the canonical vocabulary, which classic-format logs produce.
func (n *SleepNormalizer) stageSpan(r *schema.Resolver, m *schema.StageMapping, entry any) (models.StageSpan, bool, error) {
	rawName, present := m.Name.Resolve(entry)
	if !present {
		return models.StageSpan{}, false, errs.Dataf("missing %q", m.Name)
	}
	label, err := cast.ToStringE(rawName)
	if err != nil {
		return models.StageSpan{}, false, errs.Dataf("stage label: %v", err)
	}
	stage, known := models.NormalizeStage(label)
	if !known {
		n.log.Debug("skipping unknown sleep stage", "label", label)
		return models.StageSpan{}, false, nil
	}

	rawStart, present := m.Start.Resolve(entry)
	if !present {
		return models.StageSpan{}, false, errs.Dataf("missing %q", m.Start)
	}
	start, err := r.ParseTime(rawStart)
	if err != nil {
		return models.StageSpan{}, false, err
	}

	rawDur, present := m.Duration.Resolve(entry)
	if !present {
		return models.StageSpan{}, false, errs.Dataf("missing %q", m.Duration)
	}
	units, err := cast.ToFloat64E(rawDur)
	if err != nil {
		return models.StageSpan{}, false, errs.Dataf("stage duration: %v", err)
	}
	d := time.Duration(units * float64(time.Second))
	if !n.src.UseSeconds {
		d = time.Duration(units * float64(time.Minute))
	}
	return models.StageSpan{Stage: stage, Start: start, Duration: d}, true, nil
}

// bounds fills the session's duration and stop time, each falling back on
// the other and both falling back on the stage data, then flags sessions
// whose bounds disagree beyond the tolerance.
func (n *SleepNormalizer) bounds(r *schema.Resolver, s *models.Sleep) error {
	dur, haveDur, err := optionalDuration(r, schema.FieldDuration)
	if err != nil {
		return err
	}
	stop, haveStop, err := optionalTime(r, schema.FieldStopTime)
	if err != nil {
		return err
	}

	switch {
	case haveDur && haveStop:
	case haveDur:
		stop = s.Start.Add(dur)
	case haveStop:
		dur = stop.Sub(s.Start)
	default:
		if len(s.Stages) == 0 {
			return errs.Dataf("no duration, stop time, or stages")
		}
		stop = s.Stages[len(s.Stages)-1].End()
		dur = stop.Sub(s.Start)
	}
	if dur <= 0 {
		return errs.Dataf("non-positive duration %v", dur)
	}
	s.Duration = dur
	s.Stop = stop

	if delta := stop.Sub(s.Start) - dur; absDuration(delta) > stopTolerance {
		s.Inconsistent = true
		n.log.Warn("sleep bounds disagree",
			"start", s.Start, "stop", stop, "duration", dur)
	}
	if len(s.Stages) > 0 && !s.Inconsistent {
		last := s.Stages[len(s.Stages)-1].End()
		if absDuration(last.Sub(stop)) > stopTolerance {
			s.Inconsistent = true
			n.log.Warn("sleep stop disagrees with stage data",
				"stop", stop, "last_stage_end", last)
		}
	}
	return nil
}

// summary fills the per-stage aggregates, preferring a source-provided
// summary and aggregating the spans otherwise.
func (n *SleepNormalizer) summary(r *schema.Resolver, s *models.Sleep) error {
	v, err := r.Resolve(schema.FieldSummary)
	switch {
	case err == nil:
		sum, perr := n.parseSummary(v)
		if perr != nil {
			return perr
		}
		s.Summary = sum
		return nil
	case absent(err):
		s.Summary = aggregate(s.Stages)
		return nil
	default:
		return err
	}
}

// parseSummary reads a source-provided summary: raw stage label to an entry
// holding a span count and a duration in minutes or seconds. Labels that
// canonicalize to the same stage merge.
func (n *SleepNormalizer) parseSummary(v any) (map[string]models.StageSummary, error) {
	if sum, ok := v.(map[string]models.StageSummary); ok {
		return sum, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errs.Dataf("sleep summary: unexpected type %T", v)
	}
	out := make(map[string]models.StageSummary, len(m))
	for label, entry := range m {
		stage, known := models.NormalizeStage(label)
		if !known {
			n.log.Debug("skipping unknown summary stage", "label", label)
			continue
		}
		fields, ok := entry.(map[string]any)
		if !ok {
			return nil, errs.Dataf("summary %q: unexpected type %T", label, entry)
		}
		var d time.Duration
		switch {
		case fields["seconds"] != nil:
			secs, err := cast.ToFloat64E(fields["seconds"])
			if err != nil {
				return nil, errs.Dataf("summary %q seconds: %v", label, err)
			}
			d = time.Duration(secs * float64(time.Second))
		case fields["minutes"] != nil:
			mins, err := cast.ToFloat64E(fields["minutes"])
			if err != nil {
				return nil, errs.Dataf("summary %q minutes: %v", label, err)
			}
			d = time.Duration(mins * float64(time.Minute))
		default:
			return nil, errs.Dataf("summary %q: no duration", label)
		}
		count, err := cast.ToIntE(fields["count"])
		if err != nil {
			count = 0
		}
		agg := out[stage]
		agg.Count += count
		agg.Duration += d
		out[stage] = agg
	}
	return out, nil
}

// aggregate sums spans per canonical stage.
func aggregate(spans []models.StageSpan) map[string]models.StageSummary {
	out := make(map[string]models.StageSummary, 4)
	for _, span := range spans {
		agg := out[span.Stage]
		agg.Count++
		agg.Duration += span.Duration
		out[span.Stage] = agg
	}
	return out
}

// waso fills wake-after-sleep-onset, deriving it when unmapped as the
// session's total wake minus the wake before first falling asleep.
func (n *SleepNormalizer) waso(r *schema.Resolver, s *models.Sleep) error {
	d, ok, err := optionalDuration(r, schema.FieldWASO)
	if err != nil {
		return err
	}
	if ok {
		s.WASO = d
		return nil
	}
	onset := s.Onset()
	var preOnset time.Duration
	for _, span := range s.Stages {
		if !span.Start.Before(onset) {
			break
		}
		preOnset += span.Duration
	}
	waso := s.Summary[models.StageWake].Duration - preOnset
	if waso < 0 {
		waso = 0
	}
	s.WASO = waso
	return nil
}

// efficiency fills sleep efficiency, computing time asleep over time in bed
// when the source does not provide it.
func (n *SleepNormalizer) efficiency(r *schema.Resolver, s *models.Sleep) error {
	eff, ok, err := optionalFloat(r, schema.FieldEfficiency)
	if err != nil {
		return err
	}
	if !ok {
		eff = 100 * float64(s.Duration-s.WASO) / float64(s.Duration)
	}
	if eff < 0 || eff > 100 {
		return errs.Dataf("sleep efficiency %.1f out of range", eff)
	}
	s.Efficiency = eff
	return nil
}

// absent reports whether a resolution error means the field is simply not
// there: unmapped in the schema, or mapped to a path missing from the
// record. Callers with a fallback compute instead.
func absent(err error) bool {
	return errors.Is(err, schema.ErrFieldAbsent) || errors.Is(err, schema.ErrFieldUnknown)
}

func optionalDuration(r *schema.Resolver, field string) (time.Duration, bool, error) {
	d, err := r.ResolveDuration(field)
	switch {
	case err == nil:
		return d, true, nil
	case absent(err):
		return 0, false, nil
	default:
		return 0, false, err
	}
}

func optionalTime(r *schema.Resolver, field string) (time.Time, bool, error) {
	t, err := r.ResolveTime(field)
	switch {
	case err == nil:
		return t, true, nil
	case absent(err):
		return time.Time{}, false, nil
	default:
		return time.Time{}, false, err
	}
}

func optionalFloat(r *schema.Resolver, field string) (float64, bool, error) {
	f, err := r.ResolveFloat(field)
	switch {
	case err == nil:
		return f, true, nil
	case absent(err):
		return 0, false, nil
	default:
		return 0, false, err
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
