package replicant

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schemaDefinition is the definition every replicant schema must provide.
const schemaDefinition = "#Value"

// Schema validates replicant values against a CUE definition named #Value.
// A cue.Context is not safe for concurrent use, so validation is serialized.
type Schema struct {
	mu         sync.Mutex
	ctx        *cue.Context
	definition cue.Value
}

// CompileSchema compiles CUE source that declares #Value.
func CompileSchema(source, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(source, cue.Filename(filename))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", filename, err)
	}
	definition := root.LookupPath(cue.ParsePath(schemaDefinition))
	if !definition.Exists() {
		return nil, fmt.Errorf("compile schema %s: missing %s definition", filename, schemaDefinition)
	}
	return &Schema{ctx: ctx, definition: definition}, nil
}

// LoadSchema reads and compiles a CUE schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return CompileSchema(string(data), path)
}

// Validate reports whether value is a concrete instance of #Value.
func (s *Schema) Validate(value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	encoded := s.ctx.Encode(value)
	if err := encoded.Err(); err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	unified := s.definition.Unify(encoded)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

func resolveSchema(path, source string) (*Schema, error) {
	if strings.TrimSpace(path) != "" {
		return LoadSchema(path)
	}
	if strings.TrimSpace(source) != "" {
		return CompileSchema(source, "inline.cue")
	}
	return nil, nil
}
