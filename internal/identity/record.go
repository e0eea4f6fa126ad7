// Package identity holds the identity record extracted from a document image
// and its deterministic hashing. Records are transient: they live for one
// request and only their hash ever leaves the process.
package identity

// Record is the identity extracted by the vision model. Every field is
// optional; the model returns null for anything it cannot read.
type Record struct {
	Country            *string `json:"country"`
	IDNumber           *string `json:"id_number"`
	FullName           *string `json:"name"`
	DateOfBirth        *int64  `json:"date_of_birth"`
	DocumentExpiration *int64  `json:"document_expiration"`
}

// Empty returns a record with all fields present but blank. Returned to
// callers on transport failures so they never have to nil-check the record.
func Empty() *Record {
	var (
		s string
		n int64
	)
	return &Record{
		Country:            &s,
		IDNumber:           &s,
		FullName:           &s,
		DateOfBirth:        &n,
		DocumentExpiration: &n,
	}
}
