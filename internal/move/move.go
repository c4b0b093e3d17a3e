// Package move relocates a page and the pages below it, rewriting links so
// they keep working from the new location. A move is staged in full before
// anything is written.
package move

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dgallion1/pagekeep/internal/document"
	"github.com/dgallion1/pagekeep/internal/journal"
	"github.com/dgallion1/pagekeep/internal/link"
	"github.com/dgallion1/pagekeep/internal/page"
)

var (
	// ErrDestinationOccupied is returned when the destination page already
	// has content.
	ErrDestinationOccupied = errors.New("destination occupied")

	// ErrCycleDetected is returned when a page is reached twice while
	// staging.
	ErrCycleDetected = errors.New("cycle detected")
)

// ContentTypeMarkdown marks content values holding markdown rather than HTML.
const ContentTypeMarkdown = "markdown"

// Recorder stores the outcome of a move.
type Recorder interface {
	Record(ctx context.Context, run journal.Run) error
}

// Engine stages and commits moves over the pages of one site.
type Engine struct {
	site    *page.Site
	log     *slog.Logger
	journal Recorder
}

// NewEngine returns an Engine. rec may be nil.
func NewEngine(site *page.Site, log *slog.Logger, rec Recorder) *Engine {
	return &Engine{site: site, log: log, journal: rec}
}

// Move stages origin for dest, below destParent when it is not nil, and
// commits the plan. The returned run describes every page touched. An
// error is returned when staging fails, in which case nothing was written,
// or when the origin page itself could not be written at dest.
func (e *Engine) Move(ctx context.Context, origin, dest, destParent *url.URL) (journal.Run, error) {
	started := time.Now()
	log := e.log.With("origin", origin.Path, "dest", dest.String())

	plan := NewPlan()
	if err := e.Stage(plan, origin, dest, destParent); err != nil {
		log.Warn("move rejected", "error", err)
		return journal.Run{}, err
	}
	log.Info("move staged", "pages", plan.Len())

	e.Commit(plan)

	run := journal.Run{
		ID:       journal.NewID(),
		Origin:   origin.Path,
		Dest:     dest.String(),
		Started:  started,
		Finished: time.Now(),
		Entries:  make([]journal.Entry, 0, plan.Len()),
	}
	for _, en := range plan.Entries() {
		je := journal.Entry{Origin: en.Origin.Path, Dest: en.Dest.String(), Status: string(en.Status)}
		if en.Err != nil {
			je.Error = en.Err.Error()
		}
		run.Entries = append(run.Entries, je)
	}
	if e.journal != nil {
		if err := e.journal.Record(ctx, run); err != nil {
			log.Warn("move journal write failed", "run_id", run.ID, "error", err)
		}
	}
	log.Info("move committed", "run_id", run.ID, "duration", time.Since(started))

	if top, ok := plan.Get(origin.Path); ok && top.Status == StatusWriteFailed {
		return run, top.Err
	}
	return run, nil
}

// Stage adds origin and the pages below it to plan. destParent is the page
// the destination is placed under; its breadcrumb leads the destination
// breadcrumb. Nothing is written.
func (e *Engine) Stage(plan *Plan, origin, dest, destParent *url.URL) error {
	od, err := e.site.OpenURL(origin).Document()
	if err != nil {
		return err
	}

	var parentNavi []document.NaviEntry
	if destParent != nil {
		pd, err := e.site.OpenURL(destParent).Document()
		if err != nil {
			e.log.Warn("destination parent unreadable, breadcrumb starts at the page",
				"parent", destParent.Path, "error", err)
		} else {
			parentNavi = pd.Navi()
		}
	}
	return e.stage(plan, origin, od, dest, destParent, parentNavi)
}

func (e *Engine) stage(plan *Plan, origin *url.URL, od *document.Document, dest, destParent *url.URL, parentNavi []document.NaviEntry) error {
	if moved := od.MovedTo(); moved != "" {
		return fmt.Errorf("%w: %s to %s", document.ErrAlreadyMoved, origin.Path, moved)
	}
	if plan.Contains(origin.Path) {
		return fmt.Errorf("%w: %s", ErrCycleDetected, origin.Path)
	}
	if err := e.checkDestination(dest); err != nil {
		return err
	}

	nd, children := buildDestination(od, origin, dest, destParent, parentNavi)
	plan.add(&Entry{Origin: origin, Dest: dest, Doc: nd, Status: StatusStaged})
	e.log.Debug("page staged", "origin", origin.Path, "dest", dest.Path, "children", len(children))

	for _, href := range children {
		childOrigin, err := origin.Parse(href)
		if err != nil {
			e.log.Warn("child href unusable", "origin", origin.Path, "href", href, "error", err)
			continue
		}
		childDest, err := dest.Parse(href)
		if err != nil {
			e.log.Warn("child href unusable", "dest", dest.Path, "href", href, "error", err)
			continue
		}
		cd, err := e.site.OpenURL(childOrigin).Document()
		if errors.Is(err, page.ErrNotFound) || errors.Is(err, page.ErrCorrupt) {
			e.log.Warn("child page skipped", "child", childOrigin.Path, "error", err)
			continue
		}
		if err != nil {
			return err
		}
		if err := e.stage(plan, childOrigin, cd, childDest, dest, nd.Navi()); err != nil {
			return err
		}
	}
	return nil
}

// checkDestination fails when the destination holds content. A destination
// that cannot be read as a page counts as occupied.
func (e *Engine) checkDestination(dest *url.URL) error {
	dd, err := e.site.OpenURL(dest).Document()
	switch {
	case err == nil:
		if dd.HasRealContent() {
			return fmt.Errorf("%w: %s", ErrDestinationOccupied, dest.Path)
		}
		return nil
	case errors.Is(err, page.ErrCorrupt):
		return fmt.Errorf("%w: %s: %w", ErrDestinationOccupied, dest.Path, err)
	case errors.Is(err, page.ErrNotFound):
		return nil
	default:
		return err
	}
}

// buildDestination derives the document written at dest from the origin
// document od. It also returns the descendant hrefs to stage, one per
// target page.
func buildDestination(od *document.Document, origin, dest, destParent *url.URL, parentNavi []document.NaviEntry) (*document.Document, []string) {
	nd := od.Clone()
	nd.Touch()

	navi := []document.NaviEntry{}
	if destParent != nil {
		navi = link.RebaseNavi(parentNavi, destParent, dest)
	}
	nd.SetNavi(navi)
	nd.AppendNavi(od.Title(), "")

	var children []string
	seen := make(map[string]bool)
	for s := range nd.Subsections() {
		if res, ok := link.Resolve(origin, s.Href, dest); ok {
			s.Href = res.Href
			if res.Descendant {
				if u, err := origin.Parse(res.Href); err == nil && !seen[u.Path] {
					seen[u.Path] = true
					children = append(children, res.Href)
				}
			}
		}
		for i, c := range s.Content {
			v := link.RewriteContent(c.Value, origin, dest)
			if c.Type == ContentTypeMarkdown {
				v = link.RewriteMarkdown(v, origin, dest)
			}
			s.Content[i].Value = v
		}
	}
	return nd, children
}

// Commit writes a staged plan. Every destination is written first; then
// each origin whose destination was written is marked as moved. Failures
// are logged and recorded on the entry; they do not stop the other pages.
func (e *Engine) Commit(plan *Plan) {
	for _, en := range plan.Entries() {
		if err := e.site.OpenURL(en.Dest).Materialize(en.Doc); err != nil {
			e.log.Error("destination write failed", "origin", en.Origin.Path, "dest", en.Dest.Path, "error", err)
			en.Status, en.Err = StatusWriteFailed, err
			continue
		}
		en.Status = StatusWritten
	}

	for _, en := range plan.Entries() {
		if en.Status != StatusWritten {
			continue
		}
		if err := e.markMoved(en); err != nil {
			e.log.Error("origin not marked moved", "origin", en.Origin.Path, "dest", en.Dest.Path, "error", err)
			en.Status, en.Err = StatusMarkFailed, err
			continue
		}
		en.Status = StatusMoved
	}
}

// markMoved rereads the origin so edits made since staging are kept, and
// saves it pointing at the destination.
func (e *Engine) markMoved(en *Entry) error {
	p := e.site.OpenURL(en.Origin)
	cur, err := p.Document()
	if err != nil {
		return err
	}
	next := cur.Clone()
	dest := en.Dest.String()
	marker := fmt.Sprintf("Moved(%s) to %s", cur.Title(), dest)

	navi := append([]document.NaviEntry{}, next.Navi()...)
	if len(navi) == 0 {
		navi = append(navi, document.NaviEntry{Title: marker})
	} else {
		navi[len(navi)-1].Title = marker
	}
	next.SetNavi(navi)
	if err := next.MarkMoved(dest); err != nil {
		return err
	}
	_, err = p.ReplaceDocumentAndSave(next)
	return err
}
