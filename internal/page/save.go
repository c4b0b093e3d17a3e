package page

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dgallion1/pagekeep/internal/document"
	"github.com/dgallion1/pagekeep/internal/parser"
)

// Save writes the current bytes to the page path.
func (p *Page) Save() error {
	if p.source.state != present {
		return fmt.Errorf("%w: %s: nothing to save", ErrWriteFailure, p.path)
	}
	if err := p.site.store.WriteFile(p.path, p.source.val); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailure, p.path, err)
	}
	p.site.log.Info("page saved", "path", p.path, "bytes", len(p.source.val))
	return nil
}

// SaveWithBackup saves the page and then writes a copy to
// <path>.<revision>. An existing backup for the revision is left as it is,
// and a failed backup does not fail the save.
func (p *Page) SaveWithBackup() error {
	if err := p.Save(); err != nil {
		return err
	}
	p.backup()
	return nil
}

// BackupPath returns the backup file path for revision rev.
func (p *Page) BackupPath(rev uint64) string {
	return p.path + "." + strconv.FormatUint(rev, 10)
}

// backup writes the current bytes to the backup path of the current
// revision. Failures are logged.
func (p *Page) backup() {
	log := p.site.log.With("path", p.path)
	rev, err := p.Revision()
	if err != nil {
		log.Warn("backup skipped", "error", err)
		return
	}
	bp := p.BackupPath(rev)
	exists, err := p.site.store.Exists(bp)
	if err != nil {
		log.Warn("backup check failed", "backup", bp, "error", err)
		return
	}
	if exists {
		return
	}
	if err := p.site.store.WriteFile(bp, p.source.val); err != nil {
		log.Warn("backup write failed", "backup", bp, "error", err)
		return
	}
	log.Debug("backup written", "backup", bp)
}

// ReplaceDocumentAndSave saves next as the page document. next must carry
// the page's current revision; the saved document gets the revision after
// it, which is returned. The current bytes are backed up first. next is
// not modified. A document whose subsection tree is broken is rejected
// with ErrInvalidInput.
func (p *Page) ReplaceDocumentAndSave(next *document.Document) (uint64, error) {
	if err := next.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidInput, p.path, err)
	}
	cur, err := p.Document()
	if err != nil {
		return 0, err
	}
	if next.Revision() != cur.Revision() {
		return 0, fmt.Errorf("%w: %s is at revision %d, got %d",
			ErrRevisionConflict, p.path, cur.Revision(), next.Revision())
	}
	if moved := cur.MovedTo(); moved != "" && next.MovedTo() != moved {
		return 0, fmt.Errorf("%w: %s to %s", document.ErrAlreadyMoved, p.path, moved)
	}
	if cur.Revision() == math.MaxUint64 {
		return 0, fmt.Errorf("%w: %s: revision overflow", ErrCorrupt, p.path)
	}

	p.backup()

	rev := cur.Revision() + 1
	doc := next.Clone()
	doc.SetRevision(rev)
	b, err := parser.Render(doc)
	if err != nil {
		return 0, fmt.Errorf("%w: render %s: %w", ErrWriteFailure, p.path, err)
	}
	p.SetSource(b)
	if err := p.SaveWithBackup(); err != nil {
		return 0, err
	}
	return rev, nil
}

// Materialize writes d as the content of the page, creating missing
// directories, and saves it with a backup.
func (p *Page) Materialize(d *document.Document) error {
	b, err := parser.Render(d)
	if err != nil {
		return fmt.Errorf("%w: render %s: %w", ErrWriteFailure, p.path, err)
	}
	if err := p.site.store.MkdirAll(p.path); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %w", ErrWriteFailure, p.path, err)
	}
	p.SetSource(b)
	return p.SaveWithBackup()
}
