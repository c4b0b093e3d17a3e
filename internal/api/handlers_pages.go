package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgallion1/pagekeep/internal/document"
	"github.com/dgallion1/pagekeep/internal/move"
	"github.com/dgallion1/pagekeep/internal/page"
	"github.com/dgallion1/pagekeep/internal/storage"
)

// wcRequestHeader selects the operation of a POST to a page path.
const wcRequestHeader = "wc-request"

const (
	opGet      = "get"
	opJSONSave = "json_save"
	opPageNew  = "page_new"
	opHref     = "href"
	opPageMove = "page_move"
)

// postHandler runs one page operation and returns the status and body of
// a successful response.
type postHandler func(r *http.Request, p *page.Page) (int, any, error)

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	p := s.site.OpenURL(requestURL(r))
	b, err := p.Source()
	s.stats.Record(opGet, time.Since(start), err != nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(b)
}

func (s *Server) handlePostPage(w http.ResponseWriter, r *http.Request) {
	op := r.Header.Get(wcRequestHeader)
	var h postHandler
	switch op {
	case opJSONSave:
		h = s.saveDocument
	case opPageNew:
		h = s.createChild
	case opHref:
		h = s.resolveHref
	case opPageMove:
		h = s.movePage
	case "":
		jsonError(w, "missing "+wcRequestHeader+" header", http.StatusBadRequest)
		return
	default:
		jsonError(w, "unknown "+wcRequestHeader+": "+op, http.StatusBadRequest)
		return
	}

	p := s.site.OpenURL(requestURL(r))
	if p.IsBackupPath() {
		jsonError(w, "backup pages are read-only", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	start := time.Now()
	status, body, err := h(r, p)
	s.stats.Record(op, time.Since(start), err != nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// saveDocument replaces the page document with the posted one.
func (s *Server) saveDocument(r *http.Request, p *page.Page) (int, any, error) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return 0, nil, bodyError(err)
	}
	d, err := document.Parse(b)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", page.ErrInvalidInput, err)
	}
	rev, err := p.ReplaceDocumentAndSave(d)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]any{"res": "saved", "rev": rev}, nil
}

type pageNewRequest struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

// createChild creates a child page under the page.
func (s *Server) createChild(r *http.Request, p *page.Page) (int, any, error) {
	var req pageNewRequest
	if err := decodeJSON(r, &req); err != nil {
		return 0, nil, err
	}
	child, err := p.CreateChild(req.Title, req.Href)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, map[string]any{"res": "created", "path": child.Path()}, nil
}

type hrefRequest struct {
	Href string `json:"href"`
}

// resolveHref resolves an href written in the page to the location it
// refers to.
func (s *Server) resolveHref(r *http.Request, p *page.Page) (int, any, error) {
	var req hrefRequest
	if err := decodeJSON(r, &req); err != nil {
		return 0, nil, err
	}
	href := strings.TrimSpace(req.Href)
	if href == "" {
		return 0, nil, fmt.Errorf("%w: empty href", page.ErrInvalidInput)
	}
	u, err := p.URL().Parse(href)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: href %q: %w", page.ErrInvalidInput, href, err)
	}
	return http.StatusOK, map[string]any{"dest": u.String()}, nil
}

type pageMoveRequest struct {
	DestURL   string `json:"dest_url"`
	ParentURL string `json:"parent_url"`
}

// movePage moves the page, and the pages below it, to dest_url. parent_url
// names the page the destination is placed under and may be empty.
func (s *Server) movePage(r *http.Request, p *page.Page) (int, any, error) {
	var req pageMoveRequest
	if err := decodeJSON(r, &req); err != nil {
		return 0, nil, err
	}
	base := p.URL()
	if strings.TrimSpace(req.DestURL) == "" {
		return 0, nil, fmt.Errorf("%w: empty dest_url", page.ErrInvalidInput)
	}
	dest, err := base.Parse(strings.TrimSpace(req.DestURL))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: dest_url: %w", page.ErrInvalidInput, err)
	}
	dest.Fragment, dest.RawFragment, dest.RawQuery = "", "", ""

	var parent *url.URL
	if v := strings.TrimSpace(req.ParentURL); v != "" {
		if parent, err = base.Parse(v); err != nil {
			return 0, nil, fmt.Errorf("%w: parent_url: %w", page.ErrInvalidInput, err)
		}
	}

	run, err := s.mover.Move(r.Context(), base, dest, parent)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]any{"Ok": "ok", "run": run}, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return bodyError(err)
	}
	return nil
}

var errBodyTooLarge = errors.New("request body too large")

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	return fmt.Errorf("%w: request body: %w", page.ErrInvalidInput, err)
}

// requestURL is the location of the requested page as the client sees it.
func requestURL(r *http.Request) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if v := r.Header.Get("X-Forwarded-Proto"); v == "http" || v == "https" {
		scheme = v
	}
	return &url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path}
}

// writeError maps err onto a status and a message naming only the kind of
// failure. The full error is logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := classify(err)
	log := s.log.With("path", r.URL.Path, "error", err)
	if code >= 500 {
		log.Error("request failed", "status", code)
	} else {
		log.Info("request rejected", "status", code)
	}
	jsonError(w, msg, code)
}

func classify(err error) (int, string) {
	for _, m := range []struct {
		target error
		code   int
	}{
		{errBodyTooLarge, http.StatusRequestEntityTooLarge},
		{storage.ErrInvalidPath, http.StatusBadRequest},
		{move.ErrDestinationOccupied, http.StatusConflict},
		{move.ErrCycleDetected, http.StatusUnprocessableEntity},
		{document.ErrAlreadyMoved, http.StatusConflict},
		{page.ErrRevisionConflict, http.StatusConflict},
		{page.ErrAlreadyExists, http.StatusConflict},
		{page.ErrNotFound, http.StatusNotFound},
		{page.ErrInvalidInput, http.StatusBadRequest},
		{page.ErrCorrupt, http.StatusBadRequest},
	} {
		if errors.Is(err, m.target) {
			return m.code, m.target.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
