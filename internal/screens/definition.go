// Package screens describes the list screens served by the application and
// binds each one to its row renderer.
package screens

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dashboard-baker/baker/internal/listing"
)

//go:embed screens.yaml
var embeddedDefinitions []byte

// ErrUnknownScreen is returned for a screen name with no definition.
var ErrUnknownScreen = errors.New("screens: unknown screen")

// Option is one choice of a select filter.
type Option struct {
	Value string `yaml:"value"`
	Label string `yaml:"label" validate:"required"`
}

// Filter declares one filter input of a screen.
type Filter struct {
	Key      string   `yaml:"key" validate:"required"`
	Label    string   `yaml:"label" validate:"required"`
	Kind     string   `yaml:"kind" validate:"required,oneof=text select date number"`
	Default  string   `yaml:"default"`
	Requires string   `yaml:"requires"`
	Validate string   `yaml:"validate"`
	Options  []Option `yaml:"options" validate:"required_if=Kind select,dive"`
}

// Definition is the static description of a list screen.
type Definition struct {
	Name          string            `yaml:"name" validate:"required,alphanum"`
	Title         string            `yaml:"title" validate:"required"`
	Endpoint      string            `yaml:"endpoint" validate:"required,startswith=/"`
	ItemsKeys     []string          `yaml:"items_keys"`
	PageSize      int               `yaml:"page_size" validate:"required,min=1,max=200"`
	PageSizeParam string            `yaml:"page_size_param"`
	Timeout       time.Duration     `yaml:"timeout" validate:"required,min=1s"`
	EmptyMessage  string            `yaml:"empty_message"`
	Filters       []Filter          `yaml:"filters" validate:"dive"`
	Exports       map[string]string `yaml:"exports" validate:"dive,keys,oneof=excel csv pdf json,endkeys,startswith=/"`
}

type document struct {
	Screens []Definition `yaml:"screens" validate:"required,dive"`
}

// Defaults returns the initial filter values.
func (d Definition) Defaults() map[string]any {
	out := make(map[string]any)
	for _, f := range d.Filters {
		if f.Default != "" {
			out[f.Key] = f.Default
		}
	}
	return out
}

// Filter looks up a filter by key.
func (d Definition) Filter(key string) (Filter, bool) {
	for _, f := range d.Filters {
		if f.Key == key {
			return f, true
		}
	}
	return Filter{}, false
}

// Query encodes a page request, dropping filters whose required partner is
// unset.
func (d Definition) Query(req listing.PageRequest) url.Values {
	values := req.Values()
	d.dropUnpaired(values, req.Filters)
	return values
}

// FilterQuery encodes only the filters, with the same pairing rule as Query.
// Export downloads use it.
func (d Definition) FilterQuery(filters listing.FilterState) url.Values {
	values := filters.Values()
	d.dropUnpaired(values, filters)
	return values
}

func (d Definition) dropUnpaired(values url.Values, filters listing.FilterState) {
	for _, f := range d.Filters {
		if f.Requires == "" {
			continue
		}
		if _, ok := filters.Get(f.Requires); !ok {
			values.Del(f.Key)
		}
	}
}

// Definitions is the validated set of screens, keyed by name.
type Definitions struct {
	byName map[string]Definition
	order  []string
}

// Lookup returns the definition of name.
func (d *Definitions) Lookup(name string) (Definition, error) {
	def, ok := d.byName[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownScreen, name)
	}
	return def, nil
}

// All returns every definition in declaration order.
func (d *Definitions) All() []Definition {
	out := make([]Definition, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.byName[name])
	}
	return out
}

// Names lists the screen names sorted alphabetically.
func (d *Definitions) Names() []string {
	names := append([]string(nil), d.order...)
	sort.Strings(names)
	return names
}

// LoadDefinitions parses the embedded screen document and, when path is
// set, overlays the screens declared in that file. A missing override file is
// not an error.
func LoadDefinitions(path string) (*Definitions, error) {
	defs, err := ParseDefinitions(embeddedDefinitions)
	if err != nil {
		return nil, fmt.Errorf("embedded screens: %w", err)
	}
	if path == "" {
		return defs, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defs, nil
		}
		return nil, fmt.Errorf("read screens file: %w", err)
	}
	override, err := ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, def := range override.All() {
		if _, ok := defs.byName[def.Name]; !ok {
			defs.order = append(defs.order, def.Name)
		}
		defs.byName[def.Name] = def
	}
	return defs, nil
}

// ParseDefinitions decodes and validates a screen document.
func ParseDefinitions(data []byte) (*Definitions, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode screens: %w", err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("validate screens: %w", err)
	}
	defs := &Definitions{byName: make(map[string]Definition, len(doc.Screens))}
	for _, def := range doc.Screens {
		if _, dup := defs.byName[def.Name]; dup {
			return nil, fmt.Errorf("validate screens: duplicate screen %q", def.Name)
		}
		if err := checkFilters(def); err != nil {
			return nil, err
		}
		if def.PageSizeParam == "" {
			def.PageSizeParam = listing.DefaultPageSizeParam
		}
		defs.byName[def.Name] = def
		defs.order = append(defs.order, def.Name)
	}
	return defs, nil
}

func checkFilters(def Definition) error {
	seen := make(map[string]bool, len(def.Filters))
	for _, f := range def.Filters {
		if seen[f.Key] {
			return fmt.Errorf("validate screens: %s: duplicate filter %q", def.Name, f.Key)
		}
		seen[f.Key] = true
		if err := checkRule(f.Validate); err != nil {
			return fmt.Errorf("validate screens: %s: filter %q: %w", def.Name, f.Key, err)
		}
	}
	for _, f := range def.Filters {
		if f.Requires != "" && !seen[f.Requires] {
			return fmt.Errorf("validate screens: %s: filter %q requires unknown %q", def.Name, f.Key, f.Requires)
		}
	}
	return nil
}

// checkRule rejects validation tags the validator does not know; Var panics
// on those.
func checkRule(tag string) (err error) {
	if tag == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid rule %q: %v", tag, r)
		}
	}()
	_ = validate.Var("", tag)
	return nil
}

var validate = validator.New()
