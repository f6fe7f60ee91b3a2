package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/timezone"
)

// ErrFieldAbsent reports a mapped path that is absent in the current record.
// Callers with a fallback computation treat it as "compute instead"; callers
// without one skip the record.
var ErrFieldAbsent = fmt.Errorf("%w: field absent", errs.ErrData)

// ErrFieldUnknown reports a canonical field the schema can produce in no way
// at all. That is a broken source definition, not a bad record.
var ErrFieldUnknown = fmt.Errorf("%w: unknown canonical field", errs.ErrConfig)

// Resolver produces canonical fields for one raw record. Each field is
// computed at most once; transforms may resolve further fields, and cycles
// among them are detected rather than looping.
type Resolver struct {
	raw      any
	ks       *KindSchema
	computed map[string]any
	active   map[string]bool
	stack    []string

	layout     string
	dateLayout string
	loc        *time.Location
}

// NewResolver builds a resolver for one raw record of one data kind. It
// carries no timestamp context; use Source.Resolver when time fields need
// parsing.
func NewResolver(raw any, ks *KindSchema) *Resolver {
	return &Resolver{
		raw:      raw,
		ks:       ks,
		computed: make(map[string]any),
		active:   make(map[string]bool),
	}
}

// Resolver builds a resolver for one raw record of the given kind, parsing
// timestamps with the source's layouts in loc.
func (s *Source) Resolver(raw any, kind models.DataKind, loc *time.Location) *Resolver {
	ks := s.Kinds[kind]
	r := NewResolver(raw, &ks)
	r.layout = s.TimestampLayout(ks.File)
	r.dateLayout = s.DateLayout
	r.loc = loc
	return r
}

// Resolve returns the canonical field's value. Transforms win over mapped
// paths of the same name. Successful values are memoized; errors are not,
// so a field that failed once (say, inside a cycle report) does not poison
// unrelated fields.
func (r *Resolver) Resolve(field string) (any, error) {
	if v, ok := r.computed[field]; ok {
		return v, nil
	}
	if r.active[field] {
		return nil, r.cycleError(field)
	}

	if transform, ok := r.ks.Transforms[field]; ok {
		r.active[field] = true
		r.stack = append(r.stack, field)
		v, err := transform(r.raw, r)
		r.stack = r.stack[:len(r.stack)-1]
		delete(r.active, field)
		if err != nil {
			return nil, fmt.Errorf("computing %q: %w", field, err)
		}
		r.computed[field] = v
		return v, nil
	}

	if path, ok := r.ks.Fields[field]; ok {
		v, present := path.Resolve(r.raw)
		if !present {
			return nil, fmt.Errorf("%w: %q (path %q)", ErrFieldAbsent, field, path)
		}
		r.computed[field] = v
		return v, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrFieldUnknown, field)
}

// Has reports whether the schema can produce the field at all, via either a
// transform or a mapped path. Callers use it to pick between resolving and
// falling back to a computed default.
func (r *Resolver) Has(field string) bool {
	return r.ks.produces(field)
}

// ResolveString resolves a field and coerces it to a string.
func (r *Resolver) ResolveString(field string) (string, error) {
	v, err := r.Resolve(field)
	if err != nil {
		return "", err
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", errs.Dataf("field %q: %w", field, err)
	}
	return s, nil
}

// ResolveInt resolves a field and coerces it to an int. CSV cells arrive as
// strings and JSON numbers as float64; both coerce.
func (r *Resolver) ResolveInt(field string) (int, error) {
	v, err := r.Resolve(field)
	if err != nil {
		return 0, err
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, errs.Dataf("field %q: %w", field, err)
	}
	return n, nil
}

// ResolveFloat resolves a field and coerces it to a float64.
func (r *Resolver) ResolveFloat(field string) (float64, error) {
	v, err := r.Resolve(field)
	if err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, errs.Dataf("field %q: %w", field, err)
	}
	return f, nil
}

// ResolveTime resolves a field and parses it as an instant.
func (r *Resolver) ResolveTime(field string) (time.Time, error) {
	v, err := r.Resolve(field)
	if err != nil {
		return time.Time{}, err
	}
	t, err := r.ParseTime(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %q: %w", field, err)
	}
	return t, nil
}

// ResolveDate resolves a field as a calendar date: midnight in the record's
// location. Values already carrying a clock part are truncated.
func (r *Resolver) ResolveDate(field string) (time.Time, error) {
	v, err := r.Resolve(field)
	if err != nil {
		return time.Time{}, err
	}
	if t, ok := v.(time.Time); ok {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return time.Time{}, errs.Dataf("field %q: %w", field, err)
	}
	if r.dateLayout == "" {
		return time.Time{}, errs.Configf("field %q: source defines no date layout", field)
	}
	t, err := time.ParseInLocation(r.dateLayout, s, r.Location())
	if err != nil {
		return time.Time{}, errs.Dataf("field %q: %w", field, err)
	}
	return t, nil
}

// ResolveDuration resolves a field as a duration. time.Duration values pass
// through; numeric values are seconds.
func (r *Resolver) ResolveDuration(field string) (time.Duration, error) {
	v, err := r.Resolve(field)
	if err != nil {
		return 0, err
	}
	if d, ok := v.(time.Duration); ok {
		return d, nil
	}
	secs, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, errs.Dataf("field %q: %w", field, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// ParseTime parses a raw instant using the source's layout for this record's
// file kind. time.Time values pass through untouched.
func (r *Resolver) ParseTime(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return time.Time{}, errs.Dataf("timestamp %v: %v", v, err)
	}
	if r.layout == "" {
		return time.Time{}, errs.Configf("source defines no timestamp layout")
	}
	return timezone.ParseTimestamp(s, r.layout, r.Location())
}

// Location returns the timezone raw timestamps parse in.
func (r *Resolver) Location() *time.Location {
	if r.loc == nil {
		return time.Local
	}
	return r.loc
}

// cycleError names every field on the dependency cycle, in resolution order.
func (r *Resolver) cycleError(field string) error {
	start := 0
	for i, f := range r.stack {
		if f == field {
			start = i
			break
		}
	}
	cycle := append(append([]string{}, r.stack[start:]...), field)
	return errs.Configf("transform dependency cycle: %s", strings.Join(cycle, " -> "))
}
