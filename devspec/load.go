package devspec

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/shimmeringbee/logwrap"
	"gopkg.in/yaml.v3"
)

type specDocument struct {
	Specs []DeviceSpec `yaml:"specs"`
}

// LoadString loads a YAML spec document.
func (r *Registry) LoadString(ctx context.Context, data string) error {
	return r.load(ctx, "string", []byte(data))
}

// LoadReader loads a YAML spec document from a reader.
func (r *Registry) LoadReader(ctx context.Context, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("spec document read: %w", err)
	}

	return r.load(ctx, "reader", data)
}

// LoadFS loads every .yaml/.yml file in the filesystem, in lexical order.
func (r *Registry) LoadFS(ctx context.Context, fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		switch path.Ext(p) {
		case ".yaml", ".yml":
		default:
			return nil
		}

		f, err := fsys.Open(p)
		if err != nil {
			return fmt.Errorf("spec document open: %s: %w", p, err)
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("spec document read: %s: %w", p, err)
		}

		return r.load(ctx, p, data)
	})
}

func (r *Registry) load(ctx context.Context, name string, data []byte) error {
	r.m.Lock()
	defer r.m.Unlock()

	return r.addDocumentLocked(ctx, document{name: name, data: data})
}

// addDocumentLocked parses and merges one document. The caller holds the
// write lock; the document is retained for Reload regardless of outcome so
// a fixed loader bug can be retried by reloading.
func (r *Registry) addDocumentLocked(ctx context.Context, d document) error {
	r.documents = append(r.documents, d)

	var doc specDocument
	if err := yaml.Unmarshal(d.data, &doc); err != nil {
		return fmt.Errorf("spec document parse: %s: %w", d.name, err)
	}

	for i := range doc.Specs {
		spec := doc.Specs[i]
		r.addSpecLocked(ctx, &spec)
	}

	// Derived query results may no longer hold.
	r.queryCache = make(map[string][]string)

	return nil
}

func (r *Registry) addSpecLocked(ctx context.Context, spec *DeviceSpec) {
	if spec.Type == "" {
		r.problems = append(r.problems, Problem{
			Level:   ProblemError,
			Message: "spec with empty device type dropped",
		})
		return
	}

	if _, exists := r.specs[spec.Type]; exists {
		// First declaration wins; re-loading the same document is harmless.
		r.problems = append(r.problems, Problem{
			Level:      ProblemWarning,
			DeviceType: spec.Type,
			Message:    "duplicate device type ignored",
		})
		return
	}

	if r.level != ValidationNone {
		problems, invalid := r.validateSpec(spec)

		if invalid && r.level == ValidationLenient {
			// Lenient keeps the spec and downgrades its errors.
			for i := range problems {
				problems[i].Level = ProblemWarning
			}
			invalid = false
		}

		r.problems = append(r.problems, problems...)

		if invalid {
			r.logger.LogWarn(ctx, "Dropped invalid device spec.", logwrap.Datum("DeviceType", spec.Type))
			return
		}
	}

	r.specs[spec.Type] = spec
}
