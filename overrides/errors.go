package overrides

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAmbiguousName is returned when two existing records share a name,
	// which makes name-based matching unsafe.
	ErrAmbiguousName = errors.New("existing overrides share a name")

	// ErrDuplicateID is returned when two existing records share an id.
	ErrDuplicateID = errors.New("existing overrides share an id")
)

// AmbiguousError lists the colliding keys of an existing-record list.
type AmbiguousError struct {
	IDs   []string
	Names []string
}

func (e *AmbiguousError) Error() string {
	var parts []string
	if len(e.IDs) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate ids %q", e.IDs))
	}
	if len(e.Names) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate names %q", e.Names))
	}
	return "ambiguous existing overrides: " + strings.Join(parts, ", ")
}

func (e *AmbiguousError) Unwrap() []error {
	var errs []error
	if len(e.IDs) > 0 {
		errs = append(errs, ErrDuplicateID)
	}
	if len(e.Names) > 0 {
		errs = append(errs, ErrAmbiguousName)
	}
	return errs
}

// CheckExisting rejects existing-record lists that Plan would have to
// resolve by last-write-wins.
func CheckExisting(existing []Record) error {
	ids, names := NewDriftIndex(existing).Ambiguous()
	if len(ids) == 0 && len(names) == 0 {
		return nil
	}
	return &AmbiguousError{IDs: ids, Names: names}
}
