// Package probe holds the error vocabulary shared by the data sources a
// check reads from (database, drush, filesystem).
package probe

import "github.com/cockroachdb/errors"

// ErrUnavailable marks errors where a probe could not determine state,
// e.g. the database is unreachable or drush exited non-zero. Checks that
// return such an error are scored FAIL instead of aborting the run.
var ErrUnavailable = errors.New("probe unavailable")

// Unavailable marks err as ErrUnavailable while keeping its message and chain.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrUnavailable)
}

// IsUnavailable reports whether err was marked by Unavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
