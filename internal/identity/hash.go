package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Hash returns the lowercase hex SHA-256 of the record's canonical form.
// Two records with the same field values always hash identically, no matter
// how they were constructed.
func Hash(r *Record) string {
	sum := sha256.Sum256([]byte(Canonical(r)))
	return hex.EncodeToString(sum[:])
}

// Canonical serializes a record to the canonical byte form the hash is
// computed over. The format is a JSON object with a fixed key order
// (country, id_number, name, date_of_birth, document_expiration), ", " and
// ": " separators, null for absent fields and \uXXXX escapes for all
// non-ASCII characters. This is the byte form the reference deployment
// hashed, so hashes stay reproducible for audit and dispute purposes. Do
// not change any of it.
func Canonical(r *Record) string {
	var b strings.Builder
	b.WriteByte('{')
	writeStringField(&b, "country", r.Country)
	b.WriteString(", ")
	writeStringField(&b, "id_number", r.IDNumber)
	b.WriteString(", ")
	writeStringField(&b, "name", r.FullName)
	b.WriteString(", ")
	writeIntField(&b, "date_of_birth", r.DateOfBirth)
	b.WriteString(", ")
	writeIntField(&b, "document_expiration", r.DocumentExpiration)
	b.WriteByte('}')
	return b.String()
}

func writeStringField(b *strings.Builder, key string, v *string) {
	writeKey(b, key)
	if v == nil {
		b.WriteString("null")
		return
	}
	writeEscapedString(b, *v)
}

func writeIntField(b *strings.Builder, key string, v *int64) {
	writeKey(b, key)
	if v == nil {
		b.WriteString("null")
		return
	}
	b.WriteString(strconv.FormatInt(*v, 10))
}

func writeKey(b *strings.Builder, key string) {
	b.WriteByte('"')
	b.WriteString(key)
	b.WriteString(`": `)
}

// writeEscapedString renders s as an ASCII-only JSON string. Runes outside
// the printable ASCII range become \uXXXX escapes (surrogate pairs beyond the
// BMP), which is what the reference serializer produced.
func writeEscapedString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			switch {
			case r < 0x20 || (r > 0x7f && r <= 0xffff):
				fmt.Fprintf(b, `\u%04x`, r)
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(b, `\u%04x\u%04x`, hi, lo)
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
