package overrides

import "fmt"

// =============================================================================
// OPERATIONS - closed set: Create, Update, Delete
// =============================================================================

// Kind ranks operations for execution. Lower runs first.
type Kind int

const (
	KindDelete Kind = iota
	KindUpdate
	KindCreate
)

func (k Kind) String() string {
	switch k {
	case KindDelete:
		return "delete"
	case KindUpdate:
		return "update"
	case KindCreate:
		return "create"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Operation is one write against the store. The only implementations are
// Create, Update and Delete.
type Operation interface {
	Kind() Kind
	String() string
	operation()
}

// Create adds a new override. Record.ID, when set, is the caller's identity
// hint for the store and was not matched against any existing record.
type Create struct {
	Record Record
}

// Update replaces an existing override in full. Record.ID is always set.
type Update struct {
	Record Record
}

// Delete removes the existing override with ID.
type Delete struct {
	ID string
}

func (Create) Kind() Kind { return KindCreate }
func (Update) Kind() Kind { return KindUpdate }
func (Delete) Kind() Kind { return KindDelete }

func (Create) operation() {}
func (Update) operation() {}
func (Delete) operation() {}

// IDHint is the id the caller asked the store to assign, or "".
func (c Create) IDHint() string { return c.Record.ID }

func (c Create) String() string { return fmt.Sprintf("create %q", c.Record.Name) }
func (u Update) String() string { return fmt.Sprintf("update %s (%q)", u.Record.ID, u.Record.Name) }
func (d Delete) String() string { return fmt.Sprintf("delete %s", d.ID) }

// Summary counts operations by kind.
type Summary struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
}

func (s Summary) Total() int { return s.Creates + s.Updates + s.Deletes }

func Summarize(ops []Operation) Summary {
	var s Summary
	for _, op := range ops {
		switch op.(type) {
		case Create:
			s.Creates++
		case Update:
			s.Updates++
		case Delete:
			s.Deletes++
		}
	}
	return s
}
