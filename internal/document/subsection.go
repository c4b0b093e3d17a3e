package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"strconv"
)

// Subsection is a node in a page's content tree. Relationships are ids
// resolved through the owning SubsectionMap, never pointers.
type Subsection struct {
	Parent  ID        `json:"parent"`
	ID      ID        `json:"id"`
	Title   string    `json:"title"`
	Href    string    `json:"href"`
	Content []Content `json:"content"`
	Child   []ID      `json:"child"`
}

// Content is one free-text entry of a subsection.
type Content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (s *Subsection) MarshalJSON() ([]byte, error) {
	type plain Subsection
	p := plain(*s)
	if p.Content == nil {
		p.Content = []Content{}
	}
	if p.Child == nil {
		p.Child = []ID{}
	}
	return json.Marshal(p)
}

func (s *Subsection) addChild(id ID) {
	if !slices.Contains(s.Child, id) {
		s.Child = append(s.Child, id)
	}
}

func (s *Subsection) clone() *Subsection {
	c := *s
	c.Content = append([]Content{}, s.Content...)
	c.Child = append([]ID{}, s.Child...)
	return &c
}

// SubsectionMap is an insertion-ordered arena of subsections keyed by id.
// The JSON object order is preserved on decode and reproduced on encode.
type SubsectionMap struct {
	order []ID
	items map[ID]*Subsection
}

func (m *SubsectionMap) Len() int { return len(m.order) }

func (m *SubsectionMap) get(id ID) (*Subsection, bool) {
	s, ok := m.items[id]
	return s, ok
}

func (m *SubsectionMap) put(s *Subsection) {
	if m.items == nil {
		m.items = make(map[ID]*Subsection)
	}
	if _, ok := m.items[s.ID]; !ok {
		m.order = append(m.order, s.ID)
	}
	m.items[s.ID] = s
}

// All iterates in insertion order.
func (m *SubsectionMap) All() iter.Seq[*Subsection] {
	return func(yield func(*Subsection) bool) {
		for _, id := range m.order {
			if !yield(m.items[id]) {
				return
			}
		}
	}
}

func (m SubsectionMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range m.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key(id))
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(m.items[id])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *SubsectionMap) UnmarshalJSON(b []byte) error {
	*m = SubsectionMap{}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("subsection data: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		k, _ := tok.(string)
		n, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return fmt.Errorf("subsection data: invalid id key %q", k)
		}
		var s Subsection
		if err := dec.Decode(&s); err != nil {
			return fmt.Errorf("subsection %s: %w", k, err)
		}
		// The object key is authoritative over the id field.
		s.ID = ID(n)
		if s.Content == nil {
			s.Content = []Content{}
		}
		if s.Child == nil {
			s.Child = []ID{}
		}
		m.put(&s)
	}
	_, err = dec.Token()
	return err
}

// NaviEntry is one breadcrumb element, encoded as a [title, href] pair.
type NaviEntry struct {
	Title string
	Href  string
}

func (n NaviEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{n.Title, n.Href})
}

func (n *NaviEntry) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("navi entry: %w", err)
	}
	*n = NaviEntry{}
	if len(pair) > 0 {
		n.Title = looseString(pair[0])
	}
	if len(pair) > 1 {
		n.Href = looseString(pair[1])
	}
	return nil
}

// looseString returns the string value of raw, or "" for any other JSON type.
func looseString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
