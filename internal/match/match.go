// Package match resolves a source entity to zero, one, or many candidate
// target entities by normalized display name. Matching is purely by name
// equality after trimming and case folding; ambiguity is never resolved
// automatically.
package match

import "strings"

// Candidate is one target-snapshot entity eligible for matching.
type Candidate struct {
	ID      int64
	Name    string
	Payload string // kind-specific JSON carried through from the snapshot
}

// Kind classifies a lookup result.
type Kind int

const (
	NoMatch Kind = iota
	OneMatch
	AmbiguousMatch
)

// Result is the outcome of a lookup.
type Result struct {
	Kind       Kind
	Candidate  Candidate   // valid when Kind == OneMatch
	Candidates []Candidate // valid when Kind == AmbiguousMatch
}

// Normalize produces the comparison key for a display name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Index is a lookup over the target snapshot, grouped by normalized name.
type Index struct {
	byName map[string][]Candidate
}

// NewIndex builds an index from target-snapshot candidates.
func NewIndex(candidates []Candidate) *Index {
	ix := &Index{byName: make(map[string][]Candidate, len(candidates))}
	for _, c := range candidates {
		key := Normalize(c.Name)
		ix.byName[key] = append(ix.byName[key], c)
	}
	return ix
}

// Lookup resolves a source display name against the index.
func (ix *Index) Lookup(name string) Result {
	found := ix.byName[Normalize(name)]
	switch len(found) {
	case 0:
		return Result{Kind: NoMatch}
	case 1:
		return Result{Kind: OneMatch, Candidate: found[0]}
	default:
		return Result{Kind: AmbiguousMatch, Candidates: found}
	}
}

// Size returns the number of distinct normalized names in the index.
func (ix *Index) Size() int {
	return len(ix.byName)
}
