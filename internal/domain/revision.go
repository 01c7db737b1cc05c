package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Revision is one immutable audit entry. Rows are only ever appended;
// there is no update or delete path for them anywhere in this module.
type Revision struct {
	ID             int64     `json:"id"`
	OpportunityUID uuid.UUID `json:"opportunity_uid"`
	RevisionNumber int       `json:"revision_number"`
	ChangedBy      string    `json:"changed_by"`
	ChangedAt      time.Time `json:"changed_at"`
	ChangedFields  ChangeSet `json:"changed_fields"`
}

// FieldChange records one field's transition within a revision.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// ChangeSet is an ordered map of field name to change, restricted to
// fields whose normalized value actually differs. Order follows
// MutableFields so serialized revisions are deterministic.
type ChangeSet struct {
	fields  []string
	changes map[string]FieldChange
}

// Set appends or replaces a field change, preserving first-seen order.
func (cs *ChangeSet) Set(field string, change FieldChange) {
	if cs.changes == nil {
		cs.changes = make(map[string]FieldChange)
	}
	if _, ok := cs.changes[field]; !ok {
		cs.fields = append(cs.fields, field)
	}
	cs.changes[field] = change
}

// Get returns the change recorded for a field.
func (cs ChangeSet) Get(field string) (FieldChange, bool) {
	change, ok := cs.changes[field]
	return change, ok
}

// Fields returns the changed field names in order.
func (cs ChangeSet) Fields() []string {
	return append([]string(nil), cs.fields...)
}

// Len reports how many fields changed.
func (cs ChangeSet) Len() int {
	return len(cs.fields)
}

// Empty reports whether no field changed.
func (cs ChangeSet) Empty() bool {
	return len(cs.fields) == 0
}

// MarshalJSON writes the change set as a JSON object in field order.
func (cs ChangeSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range cs.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(cs.changes[field])
		if err != nil {
			return nil, fmt.Errorf("marshal change for %s: %w", field, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a stored change set. Field order is restored from
// the fixed schema order, with any unknown fields appended after it.
func (cs *ChangeSet) UnmarshalJSON(data []byte) error {
	var raw map[string]FieldChange
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cs.fields = nil
	cs.changes = nil
	for _, field := range MutableFields {
		if change, ok := raw[field]; ok {
			cs.Set(field, change)
			delete(raw, field)
		}
	}
	for field, change := range raw {
		cs.Set(field, change)
	}
	return nil
}

// Diff compares two candidates over the mutable field set and returns the
// ordered set of fields whose normalized value differs. Empty string and
// null are equivalent, so a re-import that turns an absent cell into an
// empty one produces no diff.
func Diff(prev, next Candidate) ChangeSet {
	var cs ChangeSet
	for _, field := range MutableFields {
		oldRaw, oldNorm := prev.value(field)
		newRaw, newNorm := next.value(field)
		if oldNorm == newNorm {
			continue
		}
		cs.Set(field, FieldChange{Old: nullable(oldRaw, oldNorm), New: nullable(newRaw, newNorm)})
	}
	return cs
}

// InitialChangeSet builds the revision-1 change set: the full initial
// state rather than a change from nothing. Fields with no value are
// omitted.
func InitialChangeSet(c Candidate) ChangeSet {
	var cs ChangeSet
	for _, field := range MutableFields {
		raw, norm := c.value(field)
		if norm == "" {
			continue
		}
		cs.Set(field, FieldChange{Old: nil, New: raw})
	}
	return cs
}

func nullable(raw any, norm string) any {
	if norm == "" {
		return nil
	}
	return raw
}
