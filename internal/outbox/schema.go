package outbox

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/duetapp/duet/internal/common"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// schemaSet holds one compiled payload schema per entry kind. Enqueue
// validates against these so a payload the remote store can never accept is
// rejected up front instead of wedging the queue at replay time.
type schemaSet struct {
	byKind map[Kind]*jsonschema.Schema
}

func loadSchemas() (*schemaSet, error) {
	compiler := jsonschema.NewCompiler()

	kinds := []Kind{KindNote, KindBucketItem, KindEvent}
	set := &schemaSet{byKind: make(map[Kind]*jsonschema.Schema, len(kinds))}

	for _, k := range kinds {
		name := fmt.Sprintf("schemas/%s.json", k)
		data, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
		sch, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		set.byKind[k] = sch
	}

	return set, nil
}

// validate checks payload against the schema for kind. An unknown kind is
// common.ErrUnknownKind.
func (s *schemaSet) validate(kind Kind, payload []byte) error {
	sch, ok := s.byKind[kind]
	if !ok {
		return fmt.Errorf("%w: %q", common.ErrUnknownKind, kind)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("payload rejected by %s schema: %w", kind, err)
	}
	return nil
}
