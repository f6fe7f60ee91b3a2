// Package timezone resolves the timezone names found in health exports and
// parses export timestamps into that zone.
//
// Fitbit profiles carry either IANA names ("America/New_York") or Microsoft
// Time Zone Index names ("Eastern Standard Time"). IANA names load from the
// compiled-in zone database; Microsoft names map to fixed UTC offsets via an
// embedded table, since the index carries no DST rules.
package timezone

import (
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
)

//go:embed ms_timezones.json
var msTimezonesJSON []byte

var msTimezones = func() map[string]string {
	m := make(map[string]string)
	if err := json.Unmarshal(msTimezonesJSON, &m); err != nil {
		panic(fmt.Sprintf("timezone: embedded ms_timezones.json: %v", err))
	}
	return m
}()

// Resolve turns a timezone name into a Location. IANA names (including
// legacy links like "US/Eastern") resolve with full DST rules; Microsoft
// index names resolve to fixed offsets.
func Resolve(name string) (*time.Location, error) {
	if name == "" {
		return nil, errs.Dataf("empty timezone name")
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc, nil
	}
	if offset, ok := msTimezones[name]; ok {
		secs, err := parseOffset(offset)
		if err != nil {
			return nil, err
		}
		return time.FixedZone(name, secs), nil
	}
	if secs, err := parseOffset(name); err == nil {
		return time.FixedZone(name, secs), nil
	}
	return nil, errs.Dataf("unknown timezone %q", name)
}

// ResolveOrLocal resolves a timezone name, falling back to the system zone
// when the name is unknown. Exports from phones with odd locale settings
// still convert, just less precisely.
func ResolveOrLocal(name string, log *slog.Logger) *time.Location {
	loc, err := Resolve(name)
	if err != nil {
		log.Warn("falling back to system timezone", "name", name, "error", err)
		return time.Local
	}
	return loc
}

// parseOffset parses "±HH:MM" offsets, with an optional "UTC" prefix and
// optional trailing seconds.
func parseOffset(offset string) (int, error) {
	s := strings.TrimPrefix(strings.TrimSpace(offset), "UTC")
	if s == "" {
		return 0, errs.Dataf("empty UTC offset")
	}
	sign := 1
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, errs.Dataf("malformed UTC offset %q", offset)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, errs.Dataf("malformed UTC offset %q: %w", offset, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errs.Dataf("malformed UTC offset %q: %w", offset, err)
	}
	return sign * (hours*3600 + minutes*60), nil
}

// FromProfile reads the timezone name from a Fitbit profile CSV. The file
// has a header row and one data row; the column is named "timezone".
func FromProfile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.Inputf("opening profile: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return "", errs.Inputf("reading profile header: %w", err)
	}
	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "timezone") {
			col = i
			break
		}
	}
	if col == -1 {
		return "", errs.Dataf("profile has no timezone column")
	}
	row, err := r.Read()
	if err == io.EOF {
		return "", errs.Dataf("profile has no data row")
	}
	if err != nil {
		return "", errs.Inputf("reading profile: %w", err)
	}
	tz := strings.TrimSpace(row[col])
	if tz == "" {
		return "", errs.Dataf("profile timezone column is empty")
	}
	return tz, nil
}

// ParseTimestamp parses an export timestamp. A trailing "Z" marks UTC and
// the result is converted into loc; otherwise the value is interpreted
// directly in loc. Layouts with fractional seconds also accept values
// without them, since exports are inconsistent about trailing millis.
func ParseTimestamp(value, layout string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	layouts := []string{layout}
	if trimmed := strings.TrimSuffix(layout, ".000"); trimmed != layout {
		layouts = append(layouts, trimmed)
	}

	utc := strings.HasSuffix(value, "Z")
	v := strings.TrimSuffix(value, "Z")

	var firstErr error
	for _, l := range layouts {
		if utc {
			t, err := time.Parse(l, v)
			if err == nil {
				return t.In(loc), nil
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		t, err := time.ParseInLocation(l, v, loc)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, errs.Dataf("timestamp %q: %w", value, firstErr)
}
