package datasvc

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by Single when no row matches.
var ErrNotFound = errors.New("datasvc: no rows")

// Error is a failed call to the data service. Status is the HTTP-equivalent
// status reported by the service, or 0 when the service could not be reached.
type Error struct {
	Op      string
	Table   string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status == 0 {
		return fmt.Sprintf("datasvc %s %s: %s", e.Op, e.Table, msg)
	}
	return fmt.Sprintf("datasvc %s %s: status %d: %s", e.Op, e.Table, e.Status, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConflict reports whether err is a uniqueness or reference violation.
func IsConflict(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Status == http.StatusConflict
}
