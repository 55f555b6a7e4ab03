// Package docstore is the document store collaborator: schemaless records
// grouped in collections and queried with a small filter DSL.
package docstore

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("docstore: not found")
	ErrConflict        = errors.New("docstore: conflict")
	ErrInvalidDocument = errors.New("docstore: invalid document")
)

// Well-known field names shared by every collection.
const (
	FieldID        = "id"
	FieldClientID  = "clientId"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Document is a single record. Values follow encoding/json conventions.
type Document map[string]any

// ID returns the document identifier or "".
func (d Document) ID() string { return d.String(FieldID) }

// ClientID returns the owning tenant or "".
func (d Document) ClientID() string { return d.String(FieldClientID) }

// String returns the field rendered as a string, "" when absent or null.
func (d Document) String(field string) string {
	return scalarString(d[field])
}

// Clone deep-copies maps and slices so callers cannot alias stored state.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

// Merge returns a copy of d with patch applied on top (shallow).
func (d Document) Merge(patch Document) Document {
	out := d.Clone()
	if out == nil {
		out = Document{}
	}
	for k, v := range patch.Clone() {
		out[k] = v
	}
	return out
}

// Stamp sets updatedAt, and createdAt when created is true.
func Stamp(d Document, now time.Time, created bool) {
	ts := now.UTC().Format(time.RFC3339Nano)
	if created {
		d[FieldCreatedAt] = ts
	}
	d[FieldUpdatedAt] = ts
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Document:
		return Document(cloneValue(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	default:
		return v
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64, float32, int, int64, int32, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}
