package page

import (
	"fmt"
	"strings"

	"github.com/dgallion1/pagekeep/internal/document"
	"github.com/dgallion1/pagekeep/internal/link"
)

// CreateChild creates a new page at href, resolved against this page, with
// the given title. The child's breadcrumb is this page's breadcrumb
// followed by the child itself.
func (p *Page) CreateChild(title, href string) (*Page, error) {
	title = strings.TrimSpace(title)
	href = strings.TrimSpace(href)
	if title == "" {
		return nil, fmt.Errorf("%w: empty title", ErrInvalidInput)
	}
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, fmt.Errorf("%w: child href %q", ErrInvalidInput, href)
	}

	parent, err := p.Document()
	if err != nil {
		return nil, err
	}

	base := p.URL()
	u, err := base.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("%w: child href %q: %w", ErrInvalidInput, href, err)
	}
	if u.Scheme != base.Scheme || u.Host != base.Host || u.Opaque != "" {
		return nil, fmt.Errorf("%w: child href %q is on another site", ErrInvalidInput, href)
	}

	child := p.site.OpenURL(u)
	if child.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, child.path)
	}

	d := document.Plain()
	d.SetTitle(title)
	d.SetNavi(link.RebaseNavi(parent.Navi(), base, child.URL()))
	d.AppendNavi(title, "")
	if err := child.Materialize(d); err != nil {
		return nil, err
	}
	p.site.log.Info("child page created", "parent", p.path, "child", child.path)
	return child, nil
}
