package pipeline

import (
	"encoding/json"
	"fmt"
	"math"

	apperrors "github.com/kbukum/filestream/errors"
)

// Common checkpoint keys.
const (
	KeySource     = "source"
	KeyCurrentIdx = "current_idx"
)

// State is a node checkpoint: a nested key-value structure that survives a
// JSON round-trip. Accessors accept both the in-process shapes (int, State)
// and the decoded ones (float64, json.Number, map[string]any).
type State map[string]any

// Has reports whether key is present with a non-nil value.
func (s State) Has(key string) bool {
	v, ok := s[key]
	return ok && v != nil
}

// Int returns the integer at key. A missing key yields 0.
func (s State) Int(key string) (int, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, invalidField(key, v)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, invalidField(key, v)
		}
		return int(i), nil
	default:
		return 0, invalidField(key, v)
	}
}

// String returns the string at key. A missing or nil key yields "".
func (s State) String(key string) (string, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return "", nil
	}
	str, ok := v.(string)
	if !ok {
		return "", invalidField(key, v)
	}
	return str, nil
}

// Bool returns the bool at key. A missing key yields false.
func (s State) Bool(key string) (bool, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, invalidField(key, v)
	}
	return b, nil
}

// Sub returns the nested checkpoint at key, or nil when absent.
func (s State) Sub(key string) (State, error) {
	m, err := s.Map(key)
	if err != nil || m == nil {
		return nil, err
	}
	return State(m), nil
}

// Map returns the nested map at key, or nil when absent.
func (s State) Map(key string) (map[string]any, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch m := v.(type) {
	case State:
		return m, nil
	case map[string]any:
		return m, nil
	default:
		return nil, invalidField(key, v)
	}
}

// Clone returns a deep copy made through JSON, the shape a persisted
// checkpoint comes back in.
func (s State) Clone() (State, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, apperrors.InvalidState("checkpoint is not serializable").WithCause(err)
	}
	var out State
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, apperrors.InvalidState("checkpoint is not serializable").WithCause(err)
	}
	return out, nil
}

// decodeSlice converts a checkpointed slice back into []T. Values that went
// through JSON are re-decoded into T.
func decodeSlice[T any](v any) ([]T, error) {
	if v == nil {
		return nil, nil
	}
	if typed, ok := v.([]T); ok {
		return append([]T(nil), typed...), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func invalidField(key string, v any) error {
	return apperrors.InvalidState(fmt.Sprintf("checkpoint field %q has unexpected type %T", key, v))
}
