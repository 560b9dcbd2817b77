package datastore

import (
	"strconv"

	"github.com/kalambet/annex/internal/fault"
)

// Revision is a parsed revision token: either "latest" or an explicit
// positive revision number.
type Revision struct {
	latest bool
	n      int
}

// Latest resolves to the highest revision of a series.
var Latest = Revision{latest: true}

// Explicit refers to exactly revision n of a series.
func Explicit(n int) Revision {
	return Revision{n: n}
}

// ParseRevision parses a request token. The empty string means
// "latest", matching the origin API where the parameter is optional.
func ParseRevision(s string) (Revision, error) {
	if s == "" || s == "latest" {
		return Latest, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return Revision{}, fault.Invalid("invalid revision %q: expected \"latest\" or a positive integer", s)
	}
	return Explicit(n), nil
}

func (r Revision) IsLatest() bool { return r.latest }

func (r Revision) String() string {
	if r.latest {
		return "latest"
	}
	return strconv.Itoa(r.n)
}
