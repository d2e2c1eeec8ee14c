package generator

// EventKind distinguishes streamed notifications from an in-flight generation
// call.
type EventKind string

const (
	// EventText is a fragment of assistant narrative text.
	EventText EventKind = "text"
	// EventWrite is a structured notification that a file was written in the
	// execution environment.
	EventWrite EventKind = "write"
)

// Event is a single streamed notification. Events are pushed onto a
// per-attempt channel owned by the Runner and drained only after the
// attempt's terminal outcome is known.
type Event struct {
	Kind    EventKind
	Text    string
	Path    string
	Content string
}
