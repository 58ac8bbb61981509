// Package snapshot decodes bank movement snapshots into raw, untrusted records.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rumor-ml/commons.systems/bankstmt/internal/domain"
	"github.com/shopspring/decimal"
)

// Text is a scalar the upstream feed sends either as a JSON string or as a
// JSON number. Numbers keep their literal spelling.
type Text string

// UnmarshalJSON accepts strings, numbers and booleans. Objects and arrays are rejected.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty scalar")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{', '[':
		return fmt.Errorf("expected scalar, got %s", data[:1])
	default:
		*t = Text(data)
	}
	return nil
}

// StringPtr converts an optional Text into an optional string.
func (t *Text) StringPtr() *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

// Meta is the movement_meta mapping. A key present with a JSON null maps to a
// nil *Text; a missing key is absent from the map.
type Meta map[string]*Text

// RawMovement is one entry of a snapshot's movements array, exactly as sent.
// Pointer fields are nil when the key was absent or null.
type RawMovement struct {
	ID              *Text            `json:"id"`
	Type            *string          `json:"type"`
	Amount          *decimal.Decimal `json:"amount"`
	AccountableDate *string          `json:"accountable_date"`
	Date            *string          `json:"date"`
	Description     *string          `json:"description"`
	MovementMeta    Meta             `json:"movement_meta"`

	// TypePresent is set when the "type" key appeared, even with a null value.
	TypePresent bool `json:"-"`
}

// UnmarshalJSON decodes the movement and records which keys were present.
func (m *RawMovement) UnmarshalJSON(data []byte) error {
	type plain RawMovement
	var aux plain
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*m = RawMovement(aux)
	_, m.TypePresent = keys["type"]
	return nil
}

// Snapshot is a decoded snapshot file.
type Snapshot struct {
	Source    string // file path, empty when decoded from a stream
	Movements []RawMovement
}

// Decode reads one snapshot document. The top-level movements array is required.
func Decode(r io.Reader) (*Snapshot, error) {
	var aux struct {
		Movements *[]RawMovement `json:"movements"`
	}
	dec := json.NewDecoder(r)
	if err := dec.Decode(&aux); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot JSON: %w", err)
	}
	if aux.Movements == nil {
		return nil, fmt.Errorf("snapshot: %w: movements", domain.ErrMissingField)
	}
	return &Snapshot{Movements: *aux.Movements}, nil
}

// Load opens and decodes the snapshot at path.
func Load(path string) (s *Snapshot, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close snapshot %s: %w", path, closeErr)
		}
	}()

	s, err = Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Source = path
	return s, nil
}
