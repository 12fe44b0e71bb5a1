// Package recovery persists the live trade state so a restart can decide
// whether reconciliation against the broker is needed.
package recovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"optdesk/internal/domain"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Record is the on-disk document.
type Record struct {
	Live    domain.LiveTradeState `json:"live"`
	SavedAt time.Time             `json:"savedAt"`
}

const schemaDoc = `{
  "type": "object",
  "required": ["live", "savedAt"],
  "properties": {
    "savedAt": {"type": "string", "minLength": 1},
    "live": {
      "type": "object",
      "properties": {
        "current": {"oneOf": [{"type": "null"}, {"$ref": "#/$defs/trade"}]},
        "history": {"oneOf": [{"type": "null"}, {"type": "array", "items": {"$ref": "#/$defs/trade"}}]}
      }
    }
  },
  "$defs": {
    "trade": {
      "type": "object",
      "required": ["id", "status", "tradingSymbol", "qty", "entryPrice"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "status": {"enum": ["OPEN", "EXITING", "CLOSED"]},
        "tradingSymbol": {"type": "string", "minLength": 1},
        "qty": {"type": "integer", "minimum": 1},
        "entryPrice": {"type": "number", "minimum": 0},
        "slPrice": {"type": "number", "minimum": 0}
      }
    }
  }
}`

// File is a JSON recovery record replaced atomically on every save.
type File struct {
	path   string
	schema *jsonschema.Schema
	now    func() time.Time
	mu     sync.Mutex
}

func NewFile(path string) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("recovery path cannot be empty")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("recovery.json", strings.NewReader(schemaDoc)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("recovery.json")
	if err != nil {
		return nil, fmt.Errorf("compile recovery schema: %w", err)
	}
	return &File{path: path, schema: schema, now: time.Now}, nil
}

func (f *File) Path() string { return f.path }

// Save writes live through a temp file and rename so a crash never leaves a
// half-written record behind.
func (f *File) Save(live domain.LiveTradeState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := Record{Live: live.Clone(), SavedAt: f.now().UTC()}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode recovery record: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".recovery-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

// Load reads the record. ok is false when no record exists yet.
func (f *File) Load() (rec Record, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Record{}, false, fmt.Errorf("parse recovery record: %w", err)
	}
	if err := f.schema.Validate(doc); err != nil {
		return Record{}, false, fmt.Errorf("invalid recovery record: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode recovery record: %w", err)
	}
	return rec, true, nil
}
