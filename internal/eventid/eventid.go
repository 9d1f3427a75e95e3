// Package eventid implements WarpGraph's causal event identifier and its
// total order.
//
// An EventID is the tuple (lamport, writer, seq). Comparison is lamport
// ascending, then writer lexicographically, then seq ascending — this is
// the only ordering the reducer ever consults (§3, §4.3 of the spec this
// package implements).
package eventid

import (
	"fmt"

	"github.com/orneryd/warpgraph/internal/writerid"
)

// EventID totally orders operations across every writer's chain.
type EventID struct {
	Lamport uint64
	Writer  writerid.ID
	Seq     uint32
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than
// b, using the total order: lamport, then writer, then seq.
func Compare(a, b EventID) int {
	if a.Lamport != b.Lamport {
		if a.Lamport < b.Lamport {
			return -1
		}
		return 1
	}
	if a.Writer != b.Writer {
		if a.Writer < b.Writer {
			return -1
		}
		return 1
	}
	if a.Seq != b.Seq {
		if a.Seq < b.Seq {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether a sorts before b.
func Less(a, b EventID) bool { return Compare(a, b) < 0 }

// Max returns the greater of a and b.
func Max(a, b EventID) EventID {
	if Compare(a, b) >= 0 {
		return a
	}
	return b
}

// Zero is the identity element for Max: every real EventID exceeds it
// because Lamport starts at 1 (see NextLamport).
var Zero = EventID{}

// String renders an EventID for logs and error messages.
func (e EventID) String() string {
	return fmt.Sprintf("(%d,%s,%d)", e.Lamport, e.Writer, e.Seq)
}

// NextLamport computes the writer's next logical clock value: one greater
// than the larger of its own local clock and the highest lamport value it
// has observed from any patch (its own or another writer's).
func NextLamport(local, maxObserved uint64) uint64 {
	if maxObserved > local {
		local = maxObserved
	}
	return local + 1
}
