package autohash

import (
	"testing"

	"github.com/lherron/jiramine/internal/domain"
)

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func TestSumDeterministic(t *testing.T) {
	a := Sum(String("x"), NullString(strPtr("y")), NullInt64(int64Ptr(7)))
	b := Sum(String("x"), NullString(strPtr("y")), NullInt64(int64Ptr(7)))
	if a != b {
		t.Errorf("same tuple hashed differently: %s vs %s", a, b)
	}
}

func TestSumNullDistinctFromEmpty(t *testing.T) {
	null := Sum(NullString(nil))
	empty := Sum(NullString(strPtr("")))
	if null == empty {
		t.Error("null and empty string must hash differently")
	}
}

func TestSumNoSeparatorCollision(t *testing.T) {
	// Without length prefixes these two tuples would serialize identically.
	a := Sum(String("a;b"), String("c"))
	b := Sum(String("a"), String("b;c"))
	if a == b {
		t.Error("tuples differing only in value boundaries must hash differently")
	}

	c := Sum(String("n;"), String(""))
	d := Sum(NullString(nil), String(""))
	if c == d {
		t.Error("literal null token as a value must hash differently from an actual null")
	}
}

func TestSumFieldOrderMatters(t *testing.T) {
	a := Sum(String("x"), String("y"))
	b := Sum(String("y"), String("x"))
	if a == b {
		t.Error("field order must affect the hash")
	}
}

func TestForRowCoversAllAutomatableFields(t *testing.T) {
	base := func() *domain.MappingRow {
		return &domain.MappingRow{
			SourceKey:    "PROJ",
			Status:       domain.StatusMatchFound,
			TargetID:     int64Ptr(3),
			ProposedName: strPtr("Proj"),
		}
	}

	orig := ForRow(base())

	mutations := map[string]func(*domain.MappingRow){
		"target_id":        func(r *domain.MappingRow) { r.TargetID = int64Ptr(4) },
		"proposed_name":    func(r *domain.MappingRow) { r.ProposedName = strPtr("Other") },
		"proposed_payload": func(r *domain.MappingRow) { r.ProposedPayload = strPtr("{}") },
		"status":           func(r *domain.MappingRow) { r.Status = domain.StatusCreationSuccess },
		"notes":            func(r *domain.MappingRow) { r.SetNotes("edited") },
	}
	for name, mutate := range mutations {
		row := base()
		mutate(row)
		if ForRow(row) == orig {
			t.Errorf("changing %s did not change the row hash", name)
		}
	}

	// Fields outside the tuple must not affect the hash.
	row := base()
	row.SourceName = "different"
	row.MappingID = "other-id"
	if ForRow(row) != orig {
		t.Error("non-automatable fields must not affect the row hash")
	}
}

func TestVerify(t *testing.T) {
	row := &domain.MappingRow{SourceKey: "A", Status: domain.StatusPendingAnalysis}

	if !Verify(row) {
		t.Error("row without a stored hash must verify")
	}

	Stamp(row)
	if !Verify(row) {
		t.Error("freshly stamped row must verify")
	}

	row.Status = domain.StatusCreationSuccess
	if Verify(row) {
		t.Error("row edited after stamping must fail verification")
	}

	Stamp(row)
	if !Verify(row) {
		t.Error("re-stamped row must verify again")
	}
}
