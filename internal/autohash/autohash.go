// Package autohash computes the automation hash stored on every mapping row.
// The hash fingerprints the automatable field tuple as of the last automated
// write; a mismatch between the stored hash and the hash of the currently
// stored fields means a human edited the row outside the engine, and the
// engine must leave the row alone.
package autohash

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"

	"github.com/lherron/jiramine/internal/domain"
)

// Field is one automatable field value. Absence (SQL NULL) is significant
// and hashes differently from the empty string.
type Field struct {
	present bool
	value   string
}

// String wraps a non-null string value.
func String(s string) Field {
	return Field{present: true, value: s}
}

// NullString wraps a nullable string value.
func NullString(p *string) Field {
	if p == nil {
		return Field{}
	}
	return Field{present: true, value: *p}
}

// NullInt64 wraps a nullable integer value.
func NullInt64(p *int64) Field {
	if p == nil {
		return Field{}
	}
	return Field{present: true, value: strconv.FormatInt(*p, 10)}
}

// Sum digests the ordered field tuple. Each value is length-prefixed so a
// delimiter character inside a value cannot make two distinct tuples hash
// identically; nulls are encoded as a token distinct from any value.
func Sum(fields ...Field) string {
	h := sha256.New()
	for _, f := range fields {
		if !f.present {
			io.WriteString(h, "n;")
			continue
		}
		io.WriteString(h, strconv.Itoa(len(f.value)))
		io.WriteString(h, ":")
		io.WriteString(h, f.value)
		io.WriteString(h, ";")
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ForRow computes the hash of a mapping row's automatable fields in their
// fixed order: target id, proposed name, proposed payload, status, notes.
func ForRow(row *domain.MappingRow) string {
	return Sum(
		NullInt64(row.TargetID),
		NullString(row.ProposedName),
		NullString(row.ProposedPayload),
		String(string(row.Status)),
		NullString(row.Notes),
	)
}

// Verify reports whether the row is safe for the engine to update: either no
// hash has been stored yet, or the stored hash matches the hash of the
// currently stored fields.
func Verify(row *domain.MappingRow) bool {
	if row.AutomationHash == nil || *row.AutomationHash == "" {
		return true
	}
	return *row.AutomationHash == ForRow(row)
}

// Stamp recomputes the hash from the row's current field values and stores
// it on the row. Every automated write must stamp before persisting.
func Stamp(row *domain.MappingRow) {
	h := ForRow(row)
	row.AutomationHash = &h
}
