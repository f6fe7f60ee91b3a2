// Package errs defines the failure kinds shared across the converter.
//
// Every error produced by the engine wraps exactly one of the three
// sentinels below, so callers can sort failures with errors.Is without
// knowing which package raised them:
//
//   - ErrInput: the input tree is unusable (missing root, no files,
//     unparseable file). Fatal for the run.
//   - ErrData: a single record is unusable (failed validation, absent
//     required field, out-of-range value). The record is skipped and
//     the run continues.
//   - ErrConfig: a source definition is wrong (unknown canonical field,
//     transform dependency cycle, malformed path). Fatal, since retrying
//     other records cannot help.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInput marks fatal problems with the export tree itself.
	ErrInput = errors.New("input error")

	// ErrData marks record-level data-quality problems.
	ErrData = errors.New("data error")

	// ErrConfig marks invalid source definitions or settings.
	ErrConfig = errors.New("configuration error")
)

// Inputf formats a fatal input error. The format may wrap a cause with %w.
func Inputf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrInput, args)...)
}

// Dataf formats a record-level data error. The format may wrap a cause with %w.
func Dataf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrData, args)...)
}

// Configf formats a configuration error. The format may wrap a cause with %w.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, prepend(ErrConfig, args)...)
}

func prepend(kind error, args []any) []any {
	return append([]any{kind}, args...)
}
