// Package link rewrites hrefs so that they stay valid when a page moves.
package link

import (
	"net/url"
	"strings"

	"github.com/dgallion1/pagekeep/internal/document"
)

// Result is a rewritten href. Descendant reports that the href points into
// the origin page's directory and was kept relative, so the target moves
// along with the page.
type Result struct {
	Href       string
	Descendant bool
}

// Resolve rewrites href, written in the page at origin, for use in the page
// at dest. The classification is, in order:
//
//   - another site: the absolute URL, unchanged
//   - the origin page itself: "#fragment", or no result without a fragment
//   - inside the origin directory: relative to it, Descendant set
//   - anything else: the absolute path
//
// ok is false when the href cannot be joined to origin.
func Resolve(origin *url.URL, href string, dest *url.URL) (Result, bool) {
	target, err := origin.Parse(href)
	if err != nil {
		return Result{}, false
	}

	if target.Scheme != origin.Scheme || target.Host != origin.Host || target.Opaque != "" {
		return Result{Href: target.String()}, true
	}

	if target.Path == origin.Path {
		if target.Fragment == "" {
			return Result{}, false
		}
		return Result{Href: "#" + target.EscapedFragment()}, true
	}

	dir := dirOf(origin.EscapedPath())
	p := target.EscapedPath()
	if rel, found := strings.CutPrefix(p, dir); found {
		return Result{Href: withSuffix(noScheme(rel), target), Descendant: true}, true
	}

	return Result{Href: withSuffix(p, target)}, true
}

// MakeRelative returns target as a reference relative to base. Targets on
// another site come back absolute. A target naming base itself becomes ""
// plus any query and fragment.
func MakeRelative(base, target *url.URL) string {
	if target.Scheme != base.Scheme || target.Host != base.Host || target.Opaque != "" {
		return target.String()
	}

	baseDir, baseFile := splitPath(base.EscapedPath())
	targetDir, targetFile := splitPath(target.EscapedPath())

	common := 0
	for common < len(baseDir) && common < len(targetDir) && baseDir[common] == targetDir[common] {
		common++
	}

	var b strings.Builder
	for range len(baseDir) - common {
		b.WriteString("../")
	}
	for _, seg := range targetDir[common:] {
		b.WriteString(seg)
		b.WriteByte('/')
	}
	if b.Len() > 0 || targetFile != baseFile {
		b.WriteString(targetFile)
	}
	rel := b.String()
	if rel == "" && targetFile != baseFile {
		rel = "./"
	}
	return withSuffix(noScheme(rel), target)
}

// RebaseNavi rewrites breadcrumb hrefs written in the page at from so they
// work in the page at to. Entries whose href cannot be joined get "".
func RebaseNavi(navi []document.NaviEntry, from, to *url.URL) []document.NaviEntry {
	out := make([]document.NaviEntry, 0, len(navi))
	for _, n := range navi {
		href := ""
		if u, err := from.Parse(n.Href); err == nil {
			href = MakeRelative(to, u)
		}
		out = append(out, document.NaviEntry{Title: n.Title, Href: href})
	}
	return out
}

// dirOf returns p up to and including its last "/".
func dirOf(p string) string {
	return p[:strings.LastIndexByte(p, '/')+1]
}

// splitPath splits an absolute path into its directory segments and the
// final segment, which is "" for paths ending in "/".
func splitPath(p string) ([]string, string) {
	segs := strings.Split(strings.TrimPrefix(p, "/"), "/")
	return segs[:len(segs)-1], segs[len(segs)-1]
}

// noScheme prefixes "./" to a relative path whose first segment holds a
// colon, which would otherwise parse as a scheme.
func noScheme(rel string) string {
	seg, _, _ := strings.Cut(rel, "/")
	if strings.Contains(seg, ":") {
		return "./" + rel
	}
	return rel
}

func withSuffix(s string, u *url.URL) string {
	if u.RawQuery != "" {
		s += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		s += "#" + u.EscapedFragment()
	}
	return s
}
