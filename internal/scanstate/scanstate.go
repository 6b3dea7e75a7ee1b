// Package scanstate holds the per-port state table and the dispatch
// message protocol shared between the receiver and the driver.
package scanstate

import "github.com/xqb64/tsunami/internal/portset"

// Status is the tagged state of a single port. NotInspected is the zero
// value so a freshly constructed Table starts every entry there.
type Status int

const (
	NotInspected Status = iota
	Open
	Closed
	Filtered
)

func (s Status) String() string {
	switch s {
	case NotInspected:
		return "not inspected"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Filtered:
		return "filtered"
	default:
		return "unknown"
	}
}

// Info is the per-port record the receiver maintains.
type Info struct {
	Status  Status
	Retried int
}

// Table maps a port to its Info. The receiver is the sole owner and sole
// mutator; it is not safe for concurrent use from multiple goroutines.
type Table struct {
	entries map[portset.Port]*Info
}

// NewTable builds a table with one NotInspected/0 entry per seed port. The
// key set is fixed for the table's lifetime.
func NewTable(seed map[portset.Port]struct{}) *Table {
	t := &Table{entries: make(map[portset.Port]*Info, len(seed))}
	for p := range seed {
		t.entries[p] = &Info{Status: NotInspected, Retried: 0}
	}
	return t
}

// Get returns the info for a port and whether it is tracked by the table.
func (t *Table) Get(p portset.Port) (Info, bool) {
	info, ok := t.entries[p]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// Len returns the number of ports the table tracks.
func (t *Table) Len() int { return len(t.entries) }

// MarkOpenIfUndecided sets a NotInspected port to Open. It is a no-op if
// the port is unknown or already decided, making duplicate SYN|ACKs
// idempotent.
func (t *Table) MarkOpenIfUndecided(p portset.Port) bool {
	info, ok := t.entries[p]
	if !ok || info.Status != NotInspected {
		return false
	}
	info.Status = Open
	return true
}

// MarkClosedIfUndecided sets a NotInspected port to Closed, mirroring
// MarkOpenIfUndecided.
func (t *Table) MarkClosedIfUndecided(p portset.Port) bool {
	info, ok := t.entries[p]
	if !ok || info.Status != NotInspected {
		return false
	}
	info.Status = Closed
	return true
}

// IncrementRetriedAll bumps Retried by one for every tracked port,
// unconditionally. Used once at startup to match the initial dispatch.
func (t *Table) IncrementRetriedAll() {
	for _, info := range t.entries {
		info.Retried++
	}
}

// Pending returns every port still NotInspected with retry budget left.
func (t *Table) Pending(maxRetries int) []portset.Port {
	var pending []portset.Port
	for p, info := range t.entries {
		if info.Status == NotInspected && info.Retried < maxRetries {
			pending = append(pending, p)
		}
	}
	return pending
}

// IncrementRetried bumps Retried for the given ports by one, never past
// maxRetries.
func (t *Table) IncrementRetried(ports []portset.Port, maxRetries int) {
	for _, p := range ports {
		info, ok := t.entries[p]
		if !ok {
			continue
		}
		if info.Retried < maxRetries {
			info.Retried++
		}
	}
}

// FinalizeFiltered turns every still-NotInspected port whose Retried has
// reached maxRetries into Filtered. Called once after the receive loop
// exits.
func (t *Table) FinalizeFiltered(maxRetries int) {
	for _, info := range t.entries {
		if info.Status == NotInspected && info.Retried >= maxRetries {
			info.Status = Filtered
		}
	}
}

// Counts tallies the final per-status counters the receiver reports.
type Counts struct {
	Closed              int
	Filtered            int
	RetriedMoreThanOnce int
}

// Count computes the Counts struct for the final report.
func (t *Table) Count() Counts {
	var c Counts
	for _, info := range t.entries {
		switch info.Status {
		case Closed:
			c.Closed++
		case Filtered:
			c.Filtered++
		}
		if info.Retried > 1 {
			c.RetriedMoreThanOnce++
		}
	}
	return c
}

// Message is the tagged union the receiver sends to the driver.
type Message struct {
	// Payload holds the ports to probe for a dispatch message.
	Payload []portset.Port
	// Break set to true is the terminal signal; Payload is then unused.
	Break bool
}
