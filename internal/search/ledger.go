package search

import (
	"context"

	"github.com/san-kum/zoosearch/internal/fly"
)

// Entry is one classified candidate as kept by a Ledger.
type Entry struct {
	Index    int
	Triple   Triple
	Behavior fly.Behavior
	Box      fly.Box
	Steps    int
	Fault    string
}

// Ledger remembers classified candidates so an interrupted search can
// resume without flying them again.
type Ledger interface {
	Lookup(ctx context.Context, t Triple) (Entry, bool, error)
	Record(ctx context.Context, e Entry) error
}

func entryFromOutcome(o Outcome) Entry {
	e := Entry{
		Index:    o.Index,
		Triple:   o.Triple,
		Behavior: o.Result.Behavior,
		Box:      o.Result.Box,
		Steps:    o.Result.Steps,
	}
	if o.Result.Err != nil {
		e.Fault = o.Result.Err.Error()
	}
	return e
}
