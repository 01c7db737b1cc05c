// Package identity resolves incoming candidate records to stable
// opportunity uids. Matching is exact after normalization: name first,
// then code, first match wins. There is no fuzzy matching, and an
// ambiguous index key is a hard error rather than a tie-break.
package identity

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/salestrack/oppsmon/internal/domain"
)

// ErrAmbiguousIdentity signals that a normalized key maps to more than one
// existing opportunity. Callers must surface it for human resolution.
var ErrAmbiguousIdentity = errors.New("ambiguous identity")

// ErrNotFound signals that neither the name nor the code matched any
// existing opportunity; the caller should create a new record.
var ErrNotFound = errors.New("no matching opportunity")

// AmbiguityError carries the colliding key and every uid that claims it.
type AmbiguityError struct {
	Kind string // "name" or "code"
	Key  string
	UIDs []uuid.UUID
}

func (e *AmbiguityError) Error() string {
	ids := make([]string, len(e.UIDs))
	for i, id := range e.UIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s %q matches %d opportunities (%s)", e.Kind, e.Key, len(e.UIDs), strings.Join(ids, ", "))
}

func (e *AmbiguityError) Unwrap() error {
	return ErrAmbiguousIdentity
}

// Key is one existing opportunity's identity material, as loaded from the
// store when a job begins.
type Key struct {
	UID         uuid.UUID
	ProjectName string
	ProjectCode string
}

// Index maps normalized identity keys to uids. It is built per job (or
// behind an explicit refresh) and never shared as module state.
type Index struct {
	byName map[string][]uuid.UUID
	byCode map[string][]uuid.UUID
}

// Normalize produces the canonical form of an identity key: trimmed and
// case-folded.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// BuildIndex indexes every existing opportunity's name and code. Keys
// claimed by more than one uid are retained so Resolve can refuse them.
func BuildIndex(keys []Key) *Index {
	ix := &Index{
		byName: make(map[string][]uuid.UUID, len(keys)),
		byCode: make(map[string][]uuid.UUID, len(keys)),
	}
	for _, key := range keys {
		ix.Add(key)
	}
	return ix
}

// Add registers one opportunity's identity keys, typically after the merge
// engine inserts a new record mid-batch so later rows in the same file
// resolve to it.
func (ix *Index) Add(key Key) {
	if name := Normalize(key.ProjectName); name != "" {
		ix.byName[name] = appendUnique(ix.byName[name], key.UID)
	}
	if code := Normalize(key.ProjectCode); code != "" {
		ix.byCode[code] = appendUnique(ix.byCode[code], key.UID)
	}
}

// Resolve maps a candidate's identity fields to an existing uid. Name
// match takes priority; code is the fallback. A key that matches multiple
// opportunities returns an AmbiguityError instead of picking one. When
// neither key matches, ErrNotFound tells the caller to create.
func (ix *Index) Resolve(c domain.Candidate) (uuid.UUID, error) {
	if name := Normalize(c.ProjectName); name != "" {
		if uids, ok := ix.byName[name]; ok {
			if len(uids) > 1 {
				return uuid.Nil, &AmbiguityError{Kind: "name", Key: name, UIDs: sorted(uids)}
			}
			return uids[0], nil
		}
	}
	if code := Normalize(c.ProjectCode); code != "" {
		if uids, ok := ix.byCode[code]; ok {
			if len(uids) > 1 {
				return uuid.Nil, &AmbiguityError{Kind: "code", Key: code, UIDs: sorted(uids)}
			}
			return uids[0], nil
		}
	}
	return uuid.Nil, ErrNotFound
}

func appendUnique(uids []uuid.UUID, uid uuid.UUID) []uuid.UUID {
	for _, existing := range uids {
		if existing == uid {
			return uids
		}
	}
	return append(uids, uid)
}

func sorted(uids []uuid.UUID) []uuid.UUID {
	out := append([]uuid.UUID(nil), uids...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
