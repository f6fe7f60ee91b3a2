// Package source defines the contract a Fitbit export vendor implements
// and the file plumbing shared by every vendor: locating files by glob and
// parsing them into raw records for the schema layer to resolve.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/schema"
)

// Handler adapts one vendor's export layout to the conversion pipeline.
// Handlers are stateless across runs; the same instance serves every call.
type Handler interface {
	// Name identifies the handler on the command line.
	Name() string

	// Schema describes the vendor's file layout and field mappings.
	Schema() *schema.Source

	// Locate returns the files holding one data kind under root, sorted
	// by name. Zero matches is an input error.
	Locate(root string, kind models.DataKind) ([]string, error)

	// Extract parses one located file into raw records.
	Extract(path string, kind models.DataKind) ([]any, error)

	// Timezone resolves the export's timezone from the tree under root,
	// falling back to the system zone when the export does not say.
	Timezone(root string) *time.Location
}

// Registry holds the known source handlers, keyed by name.
type Registry struct {
	handlers map[string]Handler
	order    []string
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register validates a handler's schema and adds it. Registering the same
// name twice or an invalid schema is a configuration error.
func (r *Registry) Register(h Handler) error {
	name := h.Name()
	if _, dup := r.handlers[name]; dup {
		return errs.Configf("source %q already registered", name)
	}
	if err := h.Schema().Validate(); err != nil {
		return fmt.Errorf("source %q: %w", name, err)
	}
	r.handlers[name] = h
	r.order = append(r.order, name)
	return nil
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (Handler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, errs.Inputf("unknown source %q (available: %s)",
			name, strings.Join(r.Names(), ", "))
	}
	return h, nil
}

// Names lists registered sources in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// LocateFiles globs for one kind's files under root using the kind's
// directory and the given pattern. The directory must exist and the
// pattern must match at least one file.
func LocateFiles(root string, ks *schema.KindSchema, pattern string) ([]string, error) {
	dir := filepath.Join(root, ks.Dir)
	if _, err := os.Stat(dir); err != nil {
		return nil, errs.Inputf("source directory: %w", err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errs.Configf("glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, errs.Inputf("no files matching %q under %s", pattern, dir)
	}
	sort.Strings(matches)
	return matches, nil
}
