package model

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/goccy/go-json"
)

// Ref normalizes an incoming campaign or asset reference to its id. Callers
// send references as plain strings, numbers or populated objects ({"id"} or
// {"_id"}); every form decodes into the same Ref. Other fields of a populated
// object are dropped.
type Ref struct {
	id string
}

func IDRef(id string) Ref {
	return Ref{id: id}
}

func (r Ref) ID() string { return r.id }

var ErrEmptyRef = errors.New("reference has no id")

// UnmarshalJSON accepts "id", 42, {"id":"..."} and {"_id":"..."}.
func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ErrEmptyRef
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		r.id = s
	case '{':
		var obj struct {
			ID    json.RawMessage `json:"id"`
			OldID json.RawMessage `json:"_id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		raw := obj.ID
		if len(raw) == 0 {
			raw = obj.OldID
		}
		if len(raw) == 0 {
			return ErrEmptyRef
		}
		return r.UnmarshalJSON(raw)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		if _, err := strconv.ParseFloat(string(n), 64); err != nil {
			return err
		}
		r.id = n.String()
	}
	if r.id == "" {
		return ErrEmptyRef
	}
	return nil
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.id)
}

// RefIDs normalizes a list of references to their ids, dropping
// duplicates while keeping first-occurrence order.
func RefIDs(refs []Ref) []string {
	out := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		if r.id == "" {
			continue
		}
		if _, ok := seen[r.id]; ok {
			continue
		}
		seen[r.id] = struct{}{}
		out = append(out, r.id)
	}
	return out
}
