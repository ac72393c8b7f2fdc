package service

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// CodeGenerator produces a candidate order code for the given instant.
type CodeGenerator func(now time.Time) string

const (
	codeTimeLayout = "060102150405"
	codeSuffixLen  = 6
)

// NewOrderCode returns a human-readable code: the UTC timestamp to the second
// followed by six Crockford base32 characters of fresh randomness, e.g.
// "251018143005K7QW2M".
func NewOrderCode(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	s := id.String()
	return now.UTC().Format(codeTimeLayout) + s[len(s)-codeSuffixLen:]
}
