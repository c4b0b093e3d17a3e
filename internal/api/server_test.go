package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/pagekeep/internal/config"
	"github.com/dgallion1/pagekeep/internal/document"
	"github.com/dgallion1/pagekeep/internal/journal"
	"github.com/dgallion1/pagekeep/internal/move"
	"github.com/dgallion1/pagekeep/internal/page"
	"github.com/dgallion1/pagekeep/internal/stats"
	"github.com/dgallion1/pagekeep/internal/storage"
)

type testEnv struct {
	srv  *Server
	site *page.Site
	dir  *storage.Dir
}

func newTestEnv(t *testing.T, withJournal bool) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir, err := storage.NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	site := page.NewSite(dir, log)

	var moves MoveLister
	var rec move.Recorder
	if withJournal {
		j, err := journal.Open(filepath.Join(t.TempDir(), "moves.db"), log)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { j.Close() })
		moves, rec = j, j
	}

	cfg := config.Config{MaxBodyBytes: 1 << 20, StatsWindow: time.Hour}
	srv := NewServer(site, move.NewEngine(site, log, rec), moves, stats.NewRecorder(time.Hour), log, cfg)
	return &testEnv{srv: srv, site: site, dir: dir}
}

func (e *testEnv) writePage(t *testing.T, path, title string, hrefs ...string) {
	t.Helper()
	d := document.Plain()
	d.SetTitle(title)
	d.AppendNavi(title, "")
	for _, h := range hrefs {
		s, err := d.NewSubsection(document.RootID)
		if err != nil {
			t.Fatal(err)
		}
		s.Href = h
	}
	if err := e.site.Open(path).Materialize(d); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) post(t *testing.T, path, op, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if op != "" {
		req.Header.Set(wcRequestHeader, op)
	}
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, false)
	w := e.get(t, "/health")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response: %d %s", w.Code, w.Body)
	}
}

func TestGetPage(t *testing.T) {
	e := newTestEnv(t, false)
	e.writePage(t, "/a/b.html", "B")

	w := e.get(t, "/a/b.html")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "page_json_str") {
		t.Errorf("expected page bytes, got %s", w.Body)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected text/html, got %q", ct)
	}

	if w := e.get(t, "/a/missing.html"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := e.get(t, "/a/b.html.1"); w.Code != http.StatusOK {
		t.Errorf("expected backups to be readable, got %d", w.Code)
	}
}

func TestPost_Dispatch(t *testing.T) {
	e := newTestEnv(t, false)
	e.writePage(t, "/a/b.html", "B")

	if w := e.post(t, "/a/b.html", "", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing header: expected 400, got %d", w.Code)
	}
	if w := e.post(t, "/a/b.html", "bogus", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown op: expected 400, got %d", w.Code)
	}
	if w := e.post(t, "/a/b.html.1", opJSONSave, `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("backup path: expected 400, got %d", w.Code)
	}
}

func TestJSONSave(t *testing.T) {
	e := newTestEnv(t, false)
	e.writePage(t, "/a/b.html", "B")

	cur, err := e.site.Open("/a/b.html").Document()
	if err != nil {
		t.Fatal(err)
	}
	next := cur.Clone()
	next.SetTitle("B2")
	body, err := next.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	w := e.post(t, "/a/b.html", opJSONSave, string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	m := decodeBody(t, w)
	if m["res"] != "saved" || m["rev"] != float64(2) {
		t.Errorf("unexpected response: %v", m)
	}
	if d, _ := e.site.Open("/a/b.html").Document(); d.Title() != "B2" {
		t.Errorf("expected saved title B2, got %q", d.Title())
	}

	// The same body is now one revision behind.
	if w := e.post(t, "/a/b.html", opJSONSave, string(body)); w.Code != http.StatusConflict {
		t.Errorf("stale save: expected 409, got %d", w.Code)
	}
	if w := e.post(t, "/a/b.html", opJSONSave, `{not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad json: expected 400, got %d", w.Code)
	}
	if w := e.post(t, "/a/none.html", opJSONSave, string(body)); w.Code != http.StatusNotFound {
		t.Errorf("missing page: expected 404, got %d", w.Code)
	}
}

func TestJSONSave_BrokenSubsectionTree(t *testing.T) {
	e := newTestEnv(t, false)
	e.writePage(t, "/a/b.html", "B")

	cur, err := e.site.Open("/a/b.html").Document()
	if err != nil {
		t.Fatal(err)
	}
	next := cur.Clone()
	root, _ := next.SubsectionMut(document.RootID)
	root.Parent = 7
	root.Child = append(root.Child, 42)
	body, err := next.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	if w := e.post(t, "/a/b.html", opJSONSave, string(body)); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body)
	}
	if rev, _ := e.site.Open("/a/b.html").Revision(); rev != 1 {
		t.Errorf("expected the page to stay at revision 1, got %d", rev)
	}
}

func TestJSONSave_BodyTooLarge(t *testing.T) {
	e := newTestEnv(t, false)
	e.srv.cfg.MaxBodyBytes = 8
	e.writePage(t, "/a/b.html", "B")
	if w := e.post(t, "/a/b.html", opJSONSave, `{"system":{"version":"0.0.4"}}`); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestPageNew(t *testing.T) {
	e := newTestEnv(t, false)
	e.writePage(t, "/a/b.html", "B")

	w := e.post(t, "/a/b.html", opPageNew, `{"title":"C","href":"b/c.html"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}
	if m := decodeBody(t, w); m["path"] != "/a/b/c.html" {
		t.Errorf("unexpected response: %v", m)
	}
	if ok, _ := e.dir.Exists("/a/b/c.html"); !ok {
		t.Error("expected child page file")
	}

	if w := e.post(t, "/a/b.html", opPageNew, `{"title":"C","href":"b/c.html"}`); w.Code != http.StatusConflict {
		t.Errorf("existing child: expected 409, got %d", w.Code)
	}
	if w := e.post(t, "/a/b.html", opPageNew, `{"title":" ","href":"d.html"}`); w.Code != http.StatusBadRequest {
		t.Errorf("blank title: expected 400, got %d", w.Code)
	}
	w = e.post(t, "/a/b.html", opPageNew, `{"title":"D","href":"#d"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("fragment href: expected 400, got %d", w.Code)
	}
	if m := decodeBody(t, w); m["error"] != page.ErrInvalidInput.Error() {
		t.Errorf("expected error kind only, got %v", m)
	}
}

func TestHref(t *testing.T) {
	e := newTestEnv(t, false)
	e.writePage(t, "/a/b.html", "B")

	w := e.post(t, "/a/b.html", opHref, `{"href":"../c.html#s"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if m := decodeBody(t, w); m["dest"] != "http://example.com/c.html#s" {
		t.Errorf("unexpected dest: %v", m)
	}
	if w := e.post(t, "/a/b.html", opHref, `{"href":""}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty href: expected 400, got %d", w.Code)
	}
}

func TestPageMove(t *testing.T) {
	e := newTestEnv(t, true)
	e.writePage(t, "/a/b.html", "B", "c.html")
	e.writePage(t, "/a/c.html", "C")

	w := e.post(t, "/a/b.html", opPageMove, `{"dest_url":"/x/b.html","parent_url":""}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if m := decodeBody(t, w); m["Ok"] != "ok" {
		t.Errorf("unexpected response: %v", m)
	}
	for _, p := range []string{"/x/b.html", "/x/c.html"} {
		if ok, _ := e.dir.Exists(p); !ok {
			t.Errorf("expected %s to be written", p)
		}
	}
	d, err := e.site.Open("/a/b.html").Document()
	if err != nil {
		t.Fatal(err)
	}
	if d.MovedTo() != "http://example.com/x/b.html" {
		t.Errorf("unexpected moved_to %q", d.MovedTo())
	}

	if w := e.post(t, "/a/b.html", opPageMove, `{"dest_url":"/y/b.html"}`); w.Code != http.StatusConflict {
		t.Errorf("second move: expected 409, got %d", w.Code)
	}
	if w := e.post(t, "/a/c.html", opPageMove, `{"dest_url":""}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty dest: expected 400, got %d", w.Code)
	}

	w = e.get(t, "/api/moves?limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("moves: expected 200, got %d", w.Code)
	}
	var listed struct {
		Moves []journal.Run `json:"moves"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Moves) != 1 || len(listed.Moves[0].Entries) != 2 {
		t.Errorf("expected one journaled run with two pages, got %+v", listed.Moves)
	}
}

func TestPageMove_Cycle(t *testing.T) {
	e := newTestEnv(t, false)
	e.writePage(t, "/a/x.html", "X", "y.html")
	e.writePage(t, "/a/y.html", "Y", "x.html")
	if w := e.post(t, "/a/x.html", opPageMove, `{"dest_url":"/z/x.html"}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}

func TestListMoves_Disabled(t *testing.T) {
	e := newTestEnv(t, false)
	if w := e.get(t, "/api/moves"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestListMoves_BadLimit(t *testing.T) {
	e := newTestEnv(t, true)
	if w := e.get(t, "/api/moves?limit=zero"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestStats(t *testing.T) {
	e := newTestEnv(t, false)
	e.writePage(t, "/a/b.html", "B")
	e.get(t, "/a/b.html")
	e.post(t, "/a/b.html", opHref, `{"href":"c.html"}`)

	w := e.get(t, "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Operations map[string]stats.Snapshot `json:"operations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	for _, op := range []string{opGet, opHref} {
		if body.Operations[op].Count != 1 {
			t.Errorf("expected one %s sample, got %+v", op, body.Operations[op])
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{page.ErrNotFound, http.StatusNotFound},
		{errors.Join(page.ErrNotFound, storage.ErrInvalidPath), http.StatusBadRequest},
		{errors.Join(move.ErrDestinationOccupied, page.ErrCorrupt), http.StatusConflict},
		{page.ErrWriteFailure, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if code, _ := classify(tt.err); code != tt.code {
			t.Errorf("classify(%v) = %d, want %d", tt.err, code, tt.code)
		}
	}
}
