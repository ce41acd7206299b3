// Package errkind carries the four error kinds of the error handling design
// as wrapped sentinels rather than a class hierarchy, matching the
// fmt.Errorf("...: %w", err)-style wrapping used throughout the persistence
// and gates packages.
package errkind

import "errors"

var (
	// TransientIO covers DB connection refusals and vendor timeouts. The
	// caller logs and continues the current loop iteration.
	TransientIO = errors.New("transient_io")

	// BadInput covers an unknown indicator reference or a YAML validation
	// failure. Recorded per-condition/per-pattern and scored 0.0; loader
	// errors surface at load time.
	BadInput = errors.New("bad_input")

	// DataQuality covers a bar failing its shape invariant. The bar is
	// still stored with an attenuated quality score.
	DataQuality = errors.New("data_quality")

	// Fatal covers an inability to acquire the DB pool at startup.
	Fatal = errors.New("fatal")
)

// Is reports whether err was wrapped from kind via fmt.Errorf("%w", kind).
func Is(err error, kind error) bool {
	return errors.Is(err, kind)
}
