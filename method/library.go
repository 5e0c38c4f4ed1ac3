package method

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
)

// Clone returns a deep copy of the template using a JSON round trip, falling
// back to a shallow copy if marshaling ever fails.
func (t *Template) Clone() *Template {
	if t == nil {
		return &Template{}
	}

	data, err := json.Marshal(t)
	if err != nil {
		copied := *t
		return &copied
	}

	var clone Template
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *t
		return &copied
	}
	return &clone
}

// Library is a read-only collection of method templates. Build it with
// Builtin or New, merge site methods with Load/LoadFile during startup, then
// treat it as immutable; after that point it is safe for concurrent reads
// without locking.
type Library struct {
	templates map[string]*Template
}

// New builds a library from an explicit template list. Every template is
// normalized and validated; duplicate names are rejected.
func New(templates []*Template) (*Library, error) {
	l := &Library{templates: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		prepared, err := prepare(t)
		if err != nil {
			return nil, err
		}
		if _, exists := l.templates[prepared.Name]; exists {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: duplicate template %q", errors.ErrInvalidData, prepared.Name),
				"method", "New", "build library")
		}
		l.templates[prepared.Name] = prepared
	}
	return l, nil
}

// Builtin returns a library populated with the compiled-in method templates.
func Builtin() *Library {
	l, err := New(builtinTemplates())
	if err != nil {
		// Compiled-in templates failing validation is a programming error.
		panic(err)
	}
	return l
}

// prepare clones, normalizes and validates a template for insertion, so the
// library never aliases caller memory and never stores an invalid entry.
func prepare(t *Template) (*Template, error) {
	if t == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: template cannot be nil", errors.ErrInvalidData),
			"method", "prepare", "prepare template")
	}
	prepared := t.Clone()
	prepared.normalize()
	if err := prepared.Validate(); err != nil {
		return nil, err
	}
	return prepared, nil
}

// Get returns a copy of the named template.
func (l *Library) Get(name string) (*Template, bool) {
	t, ok := l.templates[name]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Len returns the number of templates in the library.
func (l *Library) Len() int {
	return len(l.templates)
}

// Names returns all template names in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TemplateInfo is the listing view of a template.
type TemplateInfo struct {
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	Description string                 `json:"description,omitempty"`
	Detector    catalog.DetectorFamily `json:"detector"`
	Runtime     float64                `json:"runtime_min"`
}

// Summaries returns the listing view of every template, sorted by name.
func (l *Library) Summaries() []TemplateInfo {
	infos := make([]TemplateInfo, 0, len(l.templates))
	for _, name := range l.Names() {
		t := l.templates[name]
		infos = append(infos, TemplateInfo{
			Name:        t.Name,
			Version:     t.Version,
			Description: t.Description,
			Detector:    t.Detector.Family,
			Runtime:     t.Oven.TotalRuntime(),
		})
	}
	return infos
}

// Resolve returns a deep copy of the named template with overrides applied
// and the combined result validated. Stored templates are never mutated, so
// concurrent resolutions are safe and repeated resolutions of the same name
// are independent.
//
// Fails with ErrUnknownTemplate when the name is absent and with
// ErrInvalidOverride when an override puts any parameter outside its
// physically plausible domain.
func (l *Library) Resolve(name string, ov *Overrides) (*Template, error) {
	t, ok := l.templates[name]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownTemplate, name),
			"method", "Resolve", "resolve template")
	}

	resolved := t.Clone()
	ov.apply(resolved)
	resolved.normalize()
	if err := resolved.Validate(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// libraryFile is the on-disk YAML shape for site method libraries.
type libraryFile struct {
	Templates []*Template `yaml:"templates"`
}

// Load parses a YAML template list and merges it over the library; loaded
// entries replace built-ins with the same name. The merge is atomic: a
// validation failure on any entry leaves the library unchanged. Intended for
// process start, before the library is shared; not safe to call
// concurrently with readers.
func (l *Library) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.WrapTransient(err, "method", "Load", "read method library")
	}

	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"method", "Load", "parse method library")
	}
	if len(file.Templates) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: method library is empty", errors.ErrInvalidData),
			"method", "Load", "parse method library")
	}

	staged := make([]*Template, 0, len(file.Templates))
	for _, t := range file.Templates {
		prepared, err := prepare(t)
		if err != nil {
			return err
		}
		staged = append(staged, prepared)
	}

	for _, t := range staged {
		l.templates[t.Name] = t
	}
	return nil
}

// LoadFile loads a YAML method library from disk.
func (l *Library) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.WrapInvalid(err, "method", "LoadFile", "open method library")
	}
	defer f.Close()
	return l.Load(f)
}
