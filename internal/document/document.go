// Package document is the typed accessor layer over the JSON document
// embedded in every page.
//
// All reads and writes of page metadata, breadcrumbs and subsections go
// through this package so that schema drift is caught in one place.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
)

// SystemVersion is written into documents created from the plain template.
const SystemVersion = "0.0.4"

// RootID is the id of the structural root subsection.
const RootID ID = 0

var (
	// ErrAlreadyMoved is returned when moved_to is already set.
	ErrAlreadyMoved = errors.New("page already moved")

	// ErrNoParent is returned when a subsection is added under a missing parent.
	ErrNoParent = errors.New("parent subsection not found")

	// ErrIDInUse is returned when the allocator hands out an id that is taken.
	ErrIDInUse = errors.New("subsection id already in use")
)

// Document is the structured payload embedded in a page.
//
// mayChanged is set by every mutating accessor, not by actual content
// change. It means "may have changed", never "has changed".
type Document struct {
	System System `json:"system"`
	Data   Data   `json:"data"`

	mayChanged bool
}

// System holds format metadata.
type System struct {
	Version string `json:"version"`
}

// Data is the body of the document.
type Data struct {
	Page       PageMeta    `json:"page"`
	Navi       []NaviEntry `json:"navi"`
	Subsection Subsections `json:"subsection"`
}

// PageMeta describes the page itself.
type PageMeta struct {
	Title          string   `json:"title"`
	Rev            Revision `json:"rev"`
	RevSpeculation Revision `json:"rev_speculation"`
	GroupTop       bool     `json:"group_top"`
	MovedTo        string   `json:"moved_to"`
}

// Subsections is the subsection arena plus its id allocator.
type Subsections struct {
	ID   IDAllocator   `json:"id"`
	Data SubsectionMap `json:"data"`
}

// IDAllocator hands out subsection ids. Next only ever grows.
type IDAllocator struct {
	Next     ID   `json:"id_next"`
	NotInUse []ID `json:"id_notinuse"`
}

// Plain returns the empty document template: revision 1, no breadcrumb,
// and only the root subsection.
func Plain() *Document {
	d := &Document{
		System: System{Version: SystemVersion},
		Data: Data{
			Page: PageMeta{Rev: 1},
			Navi: []NaviEntry{},
			Subsection: Subsections{
				ID: IDAllocator{Next: 1, NotInUse: []ID{}},
			},
		},
	}
	d.Data.Subsection.Data.put(&Subsection{
		Parent:  RootID,
		ID:      RootID,
		Content: []Content{},
		Child:   []ID{},
	})
	return d
}

// Parse decodes a document from its JSON form.
func Parse(b []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if d.Data.Navi == nil {
		d.Data.Navi = []NaviEntry{}
	}
	if d.Data.Subsection.ID.NotInUse == nil {
		d.Data.Subsection.ID.NotInUse = []ID{}
	}
	return &d, nil
}

// Marshal encodes the document as a single JSON object.
func (d *Document) Marshal() ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// Clone returns a deep copy. The copy starts with a clear may-changed flag.
func (d *Document) Clone() *Document {
	c := &Document{
		System: d.System,
		Data: Data{
			Page: d.Data.Page,
			Navi: append([]NaviEntry{}, d.Data.Navi...),
			Subsection: Subsections{
				ID: IDAllocator{
					Next:     d.Data.Subsection.ID.Next,
					NotInUse: append([]ID{}, d.Data.Subsection.ID.NotInUse...),
				},
			},
		},
	}
	for s := range d.Subsections() {
		c.Data.Subsection.Data.put(s.clone())
	}
	return c
}

// MayChanged reports whether a mutating accessor has been used since the
// document was loaded or the flag was cleared.
func (d *Document) MayChanged() bool { return d.mayChanged }

// ClearMayChanged resets the may-changed flag, typically after a save.
func (d *Document) ClearMayChanged() { d.mayChanged = false }

// Touch marks the document as possibly changed.
func (d *Document) Touch() { d.mayChanged = true }

func (d *Document) Title() string { return d.Data.Page.Title }

func (d *Document) SetTitle(title string) {
	d.Touch()
	d.Data.Page.Title = title
}

// Revision returns the stored revision counter.
func (d *Document) Revision() uint64 { return uint64(d.Data.Page.Rev) }

// SetRevision overwrites the revision counter.
func (d *Document) SetRevision(rev uint64) {
	d.Touch()
	d.Data.Page.Rev = Revision(rev)
}

// MovedTo returns the destination of a moved page, or "" when not moved.
func (d *Document) MovedTo() string { return d.Data.Page.MovedTo }

// MarkMoved records that the page was relocated to destination.
// The transition is one-way.
func (d *Document) MarkMoved(destination string) error {
	if d.Data.Page.MovedTo != "" {
		return fmt.Errorf("%w: to %s", ErrAlreadyMoved, d.Data.Page.MovedTo)
	}
	d.Touch()
	d.Data.Page.MovedTo = destination
	return nil
}

// Navi returns the breadcrumb from the site root down to this page.
func (d *Document) Navi() []NaviEntry { return d.Data.Navi }

func (d *Document) SetNavi(navi []NaviEntry) {
	d.Touch()
	if navi == nil {
		navi = []NaviEntry{}
	}
	d.Data.Navi = navi
}

func (d *Document) AppendNavi(title, href string) {
	d.Touch()
	d.Data.Navi = append(d.Data.Navi, NaviEntry{Title: title, Href: href})
}

// Subsection returns the subsection with the given id.
func (d *Document) Subsection(id ID) (*Subsection, bool) {
	return d.Data.Subsection.Data.get(id)
}

// SubsectionMut is Subsection for callers that intend to modify it.
func (d *Document) SubsectionMut(id ID) (*Subsection, bool) {
	d.Touch()
	return d.Data.Subsection.Data.get(id)
}

// SubsectionByHref returns the first subsection, in document order, whose
// href equals href.
func (d *Document) SubsectionByHref(href string) (*Subsection, bool) {
	for s := range d.Subsections() {
		if s.Href == href {
			return s, true
		}
	}
	return nil, false
}

// Subsections iterates over the subsections in document order.
func (d *Document) Subsections() iter.Seq[*Subsection] {
	return d.Data.Subsection.Data.All()
}

// NewSubsection allocates the next id and inserts an empty subsection under
// parentID. The allocator advances even when the insert fails so that an id
// is never handed out twice.
func (d *Document) NewSubsection(parentID ID) (*Subsection, error) {
	d.Touch()
	subs := &d.Data.Subsection
	parent, ok := subs.Data.get(parentID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoParent, parentID)
	}

	id := subs.ID.Next
	subs.ID.Next++
	if _, taken := subs.Data.get(id); taken {
		return nil, fmt.Errorf("%w: %d", ErrIDInUse, id)
	}

	s := &Subsection{
		Parent:  parentID,
		ID:      id,
		Content: []Content{},
		Child:   []ID{},
	}
	subs.Data.put(s)
	parent.addChild(id)
	return s, nil
}

// HasRealContent reports whether the document holds any subsection besides
// the structural root.
func (d *Document) HasRealContent() bool {
	return d.Data.Subsection.Data.Len() > 1
}

// Validate checks the arena invariants: every child id references an
// existing subsection and the root is its own parent.
func (d *Document) Validate() error {
	subs := &d.Data.Subsection.Data
	if root, ok := subs.get(RootID); ok && root.Parent != RootID {
		return fmt.Errorf("root subsection has parent %d", root.Parent)
	}
	for s := range subs.All() {
		for _, c := range s.Child {
			if _, ok := subs.get(c); !ok {
				return fmt.Errorf("subsection %d: child %d does not exist", s.ID, c)
			}
		}
	}
	return nil
}

// key renders an id the way it appears as a JSON object key.
func key(id ID) string { return strconv.FormatUint(uint64(id), 10) }
