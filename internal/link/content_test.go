package link

import "testing"

func TestRewriteContent(t *testing.T) {
	origin := mustURL(t, "/a/b.html")
	dest := mustURL(t, "/x/b.html")

	tests := []struct {
		name, in, want string
	}{
		{"absolute to relative", `<a href="/a/z">z</a>`, `<a href="z">z</a>`},
		{"escaped tag", `\<a href="/a/z">z</a>`, `\<a href="/a/z">z</a>`},
		{"escaped backslash", `\\<a href="/a/z">z</a>`, `\\<a href="z">z</a>`},
		{"single quotes and spacing", `<A class="x" HREF = '/a/y.html#t'>y</A>`, `<A class="x" HREF = 'y.html#t'>y</A>`},
		{"element without href", `<a name="n">x</a> <a href="/a/z">z</a>`, `<a name="n">x</a> <a href="z">z</a>`},
		{"unterminated value", `<a href="/a/z`, `<a href="/a/z`},
		{"other element", `<abbr href="/a/z">z</abbr>`, `<abbr href="/a/z">z</abbr>`},
		{"cross site", `<a href="https://other.example/z">z</a>`, `<a href="https://other.example/z">z</a>`},
		{"parent dir", `<a href="../up.html">up</a>`, `<a href="/up.html">up</a>`},
		{"two links", `<a href="/a/1">1</a><a href="/a/2">2</a>`, `<a href="1">1</a><a href="2">2</a>`},
		{"plain text", `no links here`, `no links here`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RewriteContent(tt.in, origin, dest); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIndexUnescaped(t *testing.T) {
	tests := []struct {
		s    string
		want int
	}{
		{`"x`, 0},
		{`\"x"`, 3},
		{`\\"x`, 2},
		{`\\\"`, -1},
	}
	for _, tt := range tests {
		if got := indexUnescaped(tt.s, 0, `"`); got != tt.want {
			t.Errorf("indexUnescaped(%q) = %d, want %d", tt.s, got, tt.want)
		}
	}
}

func TestRewriteMarkdown(t *testing.T) {
	origin := mustURL(t, "/a/b.html")
	dest := mustURL(t, "/x/b.html")

	in := "See [c](/a/c.html) and ![i](/a/img.png \"pic\") or [q](/q/r.html).\n"
	want := "See [c](c.html) and ![i](img.png \"pic\") or [q](/q/r.html).\n"
	if got := RewriteMarkdown(in, origin, dest); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRewriteMarkdown_LeavesCodeAlone(t *testing.T) {
	origin := mustURL(t, "/a/b.html")
	dest := mustURL(t, "/x/b.html")

	in := "[c](/a/c.html) and literal `[c](/a/c.html)`\n\n    [c](/a/c.html)\n"
	want := "[c](c.html) and literal `[c](/a/c.html)`\n\n    [c](/a/c.html)\n"
	if got := RewriteMarkdown(in, origin, dest); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRewriteMarkdown_DestinationForms(t *testing.T) {
	origin := mustURL(t, "/a/b.html")
	dest := mustURL(t, "/x/b.html")

	tests := []struct{ in, want string }{
		{`[e](/a/e\_f.html)`, "[e](e_f.html)"},
		{"[d](</a/d.html> \"t\")", "[d](<d.html> \"t\")"},
		{"[u](https://other.example/z)", "[u](https://other.example/z)"},
	}
	for _, tt := range tests {
		if got := RewriteMarkdown(tt.in, origin, dest); got != tt.want {
			t.Errorf("RewriteMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
