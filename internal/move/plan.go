package move

import (
	"net/url"

	"github.com/dgallion1/pagekeep/internal/document"
)

// Status is the state of one plan entry.
type Status string

const (
	StatusStaged      Status = "staged"
	StatusWritten     Status = "written"
	StatusMoved       Status = "moved"
	StatusWriteFailed Status = "write_failed"
	StatusMarkFailed  Status = "mark_failed"
)

// Entry is one page of a move: where it is, where it goes, and the
// document to write there.
type Entry struct {
	Origin *url.URL
	Dest   *url.URL
	Doc    *document.Document
	Status Status
	Err    error
}

// Plan is the set of staged moves keyed by origin path, in staging order.
type Plan struct {
	order   []string
	entries map[string]*Entry
}

func NewPlan() *Plan {
	return &Plan{entries: make(map[string]*Entry)}
}

func (p *Plan) Len() int { return len(p.order) }

// Contains reports whether the page at origin path is already staged.
func (p *Plan) Contains(path string) bool {
	_, ok := p.entries[path]
	return ok
}

// Get returns the entry staged for the origin path.
func (p *Plan) Get(path string) (*Entry, bool) {
	e, ok := p.entries[path]
	return e, ok
}

// Entries returns the entries in staging order.
func (p *Plan) Entries() []*Entry {
	out := make([]*Entry, 0, len(p.order))
	for _, k := range p.order {
		out = append(out, p.entries[k])
	}
	return out
}

func (p *Plan) add(e *Entry) {
	p.order = append(p.order, e.Origin.Path)
	p.entries[e.Origin.Path] = e
}
