package persistence

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/khalecl/supply-chain-idle/internal/engine"
)

// ErrUnknownVersion is returned for blobs written by a format this build
// has no migration for.
var ErrUnknownVersion = errors.New("unknown save version")

//go:embed save_v3.schema.json
var schemaV3 string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func v3Schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("save_v3.schema.json", schemaV3)
	})
	return schema, schemaErr
}

// Encode serializes a snapshot as a current-version envelope.
func Encode(s engine.Snapshot) ([]byte, error) {
	data, err := json.Marshal(envelope[saveV3]{State: fromSnapshot(s), Version: CurrentVersion})
	if err != nil {
		return nil, fmt.Errorf("encode save: %w", err)
	}
	return data, nil
}

// Decode reads an envelope of any known version and migrates it forward
// to the current format.
func Decode(blob []byte) (engine.Snapshot, error) {
	var env envelope[json.RawMessage]
	if err := json.Unmarshal(blob, &env); err != nil {
		return engine.Snapshot{}, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.State) == 0 || bytes.Equal(env.State, []byte("null")) {
		return engine.Snapshot{}, errors.New("decode envelope: missing state")
	}

	var v3 saveV3
	switch env.Version {
	case 1:
		var v1 saveV1
		if err := json.Unmarshal(env.State, &v1); err != nil {
			return engine.Snapshot{}, fmt.Errorf("decode v1 state: %w", err)
		}
		v3 = migrateV2toV3(migrateV1toV2(v1))
	case 2:
		var v2 saveV2
		if err := json.Unmarshal(env.State, &v2); err != nil {
			return engine.Snapshot{}, fmt.Errorf("decode v2 state: %w", err)
		}
		v3 = migrateV2toV3(v2)
	case CurrentVersion:
		if err := validateV3(env.State); err != nil {
			return engine.Snapshot{}, err
		}
		if err := json.Unmarshal(env.State, &v3); err != nil {
			return engine.Snapshot{}, fmt.Errorf("decode v3 state: %w", err)
		}
	default:
		return engine.Snapshot{}, fmt.Errorf("%w %d", ErrUnknownVersion, env.Version)
	}
	return v3.snapshot(), nil
}

func validateV3(state json.RawMessage) error {
	s, err := v3Schema()
	if err != nil {
		return fmt.Errorf("compile save schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(state, &doc); err != nil {
		return fmt.Errorf("decode v3 state: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("invalid v3 state: %w", err)
	}
	return nil
}
