// Package page is the page entity: a storage path plus lazily populated
// caches of the page bytes, their DOM and the embedded document.
package page

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"regexp"

	"github.com/dgallion1/pagekeep/internal/document"
	"github.com/dgallion1/pagekeep/internal/parser"
	"golang.org/x/net/html"
)

// Storage is the file capability a Site needs. Paths are page paths that
// begin with "/". ReadFile must report a missing file with fs.ErrNotExist.
type Storage interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Exists(path string) (bool, error)
	MkdirAll(path string) error
}

// Site opens pages stored under one storage root.
type Site struct {
	store Storage
	log   *slog.Logger
}

func NewSite(store Storage, log *slog.Logger) *Site {
	return &Site{store: store, log: log}
}

// Open returns a handle for path. Nothing is read until the page is used,
// and the handle is valid for paths that do not exist yet.
func (s *Site) Open(path string) *Page {
	return &Page{site: s, path: path}
}

// OpenURL is Open for the path of u, remembering u as the page location
// used to resolve relative links.
func (s *Site) OpenURL(u *url.URL) *Page {
	loc := *u
	loc.Fragment = ""
	loc.RawFragment = ""
	loc.RawQuery = ""
	return &Page{site: s, path: u.Path, url: &loc}
}

type cacheState int

const (
	unfetched cacheState = iota
	missing
	present
)

// cached is one lazily filled cache slot. err explains a missing value.
type cached[T any] struct {
	state cacheState
	val   T
	err   error
}

// Page is a handle on one stored page. It is not safe for concurrent use.
type Page struct {
	site *Site
	path string
	url  *url.URL

	source cached[[]byte]
	dom    cached[*html.Node]
	doc    cached[*document.Document]
}

func (p *Page) Path() string { return p.path }

// URL returns the page location. Pages opened by path alone get a
// host-less URL holding just the path.
func (p *Page) URL() *url.URL {
	if p.url == nil {
		return &url.URL{Path: p.path}
	}
	u := *p.url
	return &u
}

var backupSuffix = regexp.MustCompile(`\.\d+$`)

// IsBackupPath reports whether the path names a revision backup file.
func (p *Page) IsBackupPath() bool {
	return backupSuffix.MatchString(p.path)
}

// Source returns the page bytes, reading them from storage on first use.
func (p *Page) Source() ([]byte, error) {
	if p.source.state == unfetched {
		b, err := p.site.store.ReadFile(p.path)
		switch {
		case err == nil:
			p.source = cached[[]byte]{state: present, val: b}
		case errors.Is(err, fs.ErrNotExist):
			p.source = cached[[]byte]{state: missing, err: fmt.Errorf("%w: %s", ErrNotFound, p.path)}
		default:
			// Not cached: the next call retries the read.
			return nil, fmt.Errorf("%w: read %s: %w", ErrNotFound, p.path, err)
		}
	}
	if p.source.state == missing {
		return nil, p.source.err
	}
	return p.source.val, nil
}

// Exists reports whether the page file is present in storage.
func (p *Page) Exists() bool {
	_, err := p.Source()
	return err == nil
}

// SetSource replaces the page bytes. The DOM and document caches are
// dropped with them.
func (p *Page) SetSource(b []byte) {
	p.source = cached[[]byte]{state: present, val: b}
	p.dom = cached[*html.Node]{}
	p.doc = cached[*document.Document]{}
}

// DOM returns the parsed page, parsing the bytes on first use.
func (p *Page) DOM() (*html.Node, error) {
	if p.dom.state == unfetched {
		src, err := p.Source()
		if err != nil {
			return nil, err
		}
		n, err := parser.ParseHTML(src)
		if err != nil {
			p.dom = cached[*html.Node]{state: missing, err: fmt.Errorf("%w: %s: %w", ErrCorrupt, p.path, err)}
		} else {
			p.dom = cached[*html.Node]{state: present, val: n}
		}
	}
	if p.dom.state == missing {
		return nil, p.dom.err
	}
	return p.dom.val, nil
}

// Document returns the embedded document, extracting it on first use.
func (p *Page) Document() (*document.Document, error) {
	if p.doc.state == unfetched {
		dom, err := p.DOM()
		if err != nil {
			return nil, err
		}
		d, err := parser.ExtractDocument(dom)
		if err != nil {
			p.doc = cached[*document.Document]{state: missing, err: fmt.Errorf("%w: %s: %w", ErrCorrupt, p.path, err)}
		} else {
			p.doc = cached[*document.Document]{state: present, val: d}
		}
	}
	if p.doc.state == missing {
		return nil, p.doc.err
	}
	return p.doc.val, nil
}

// DocumentMut is Document for callers that intend to modify it; the
// document's may-changed flag is set.
func (p *Page) DocumentMut() (*document.Document, error) {
	d, err := p.Document()
	if err != nil {
		return nil, err
	}
	d.Touch()
	return d, nil
}

// Revision returns the revision of the embedded document.
func (p *Page) Revision() (uint64, error) {
	d, err := p.Document()
	if err != nil {
		return 0, err
	}
	return d.Revision(), nil
}
