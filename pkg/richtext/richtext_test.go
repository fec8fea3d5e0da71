package richtext

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "keeps formatting",
			input: `<p>Sleep <b>well</b> and <em>often</em></p>`,
			want:  `<p>Sleep <b>well</b> and <em>often</em></p>`,
		},
		{
			name:  "drops script with content",
			input: `<p>hi</p><script>alert("x")</script>`,
			want:  `<p>hi</p>`,
		},
		{
			name:  "drops style and iframe",
			input: `<style>p{color:red}</style><iframe src="https://evil.example"></iframe><div>ok</div>`,
			want:  `<div>ok</div>`,
		},
		{
			name:  "strips event handlers and styles",
			input: `<p onclick="steal()" style="color:red" class="x">text</p>`,
			want:  `<p>text</p>`,
		},
		{
			name:  "keeps safe links",
			input: `<a href="https://ditti.example/help" onmouseover="x()">help</a>`,
			want:  `<a href="https://ditti.example/help" rel="noopener noreferrer">help</a>`,
		},
		{
			name:  "unwraps unknown tags",
			input: `<font color="red">red</font> <img src=x onerror=alert(1)>`,
			want:  `red `,
		},
		{
			name:  "escapes text",
			input: `1 &lt; 2 &amp; 3 > 2`,
			want:  `1 &lt; 2 &amp; 3 &gt; 2`,
		},
		{
			name:  "closes unbalanced tags",
			input: `<ul><li>one<li>two`,
			want:  `<ul><li>one</li><li>two</li></ul>`,
		},
		{
			name:  "ignores stray end tags",
			input: `</div><p>a</p></span>`,
			want:  `<p>a</p>`,
		},
		{
			name:  "nested svg removed",
			input: `<svg><g><svg><text>x</text></svg></g></svg>after`,
			want:  `after`,
		},
		{
			name:  "void elements",
			input: `line<br/>next<hr>`,
			want:  `line<br/>next<hr/>`,
		},
		{
			name:  "table spans",
			input: `<table><tr><td colspan="2" width="9">a</td><td rowspan="x">b</td></tr></table>`,
			want:  `<table><tbody><tr><td colspan="2">a</td><td>b</td></tr></tbody></table>`,
		},
		{
			name:  "replaces link rel",
			input: `<a href="mailto:team@example.org" rel="opener" target="_blank" title="Team">mail</a>`,
			want:  `<a href="mailto:team@example.org" title="Team" rel="noopener noreferrer">mail</a>`,
		},
		{
			name:  "comments dropped",
			input: `<!-- secret --><p>shown</p>`,
			want:  `<p>shown</p>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeDropsUnsafeLinks(t *testing.T) {
	for _, in := range []string{
		`<a href="JavaScript:alert(1)">click</a>`,
		`<a href=" javascript:alert(1)">click</a>`,
		`<a href="data:text/html;base64,PHNjcmlwdD4=">click</a>`,
		`<a href="/admin/account">click</a>`,
	} {
		got := Sanitize(in)
		if !strings.Contains(got, "click") {
			t.Errorf("Sanitize(%q) = %q, lost link text", in, got)
		}
		if lower := strings.ToLower(got); strings.Contains(lower, "javascript") || strings.Contains(lower, "data:") || strings.Contains(lower, "href") {
			t.Errorf("Sanitize(%q) = %q, kept unsafe target", in, got)
		}
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		`<p>Sleep <b>well</b></p><script>x</script>`,
		`<ol><li><a href="mailto:team@example.org">mail</a></ol>`,
		`<h2>About</h2><blockquote>quote &amp; more</blockquote>`,
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestMarkdown(t *testing.T) {
	got, err := Markdown(`<h2>About sleep</h2><p>Tap <strong>twice</strong> when you wake.</p><script>alert(1)</script>`)
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	for _, want := range []string{"## About sleep", "**twice**"} {
		if !strings.Contains(got, want) {
			t.Errorf("Markdown() = %q, missing %q", got, want)
		}
	}
	if strings.Contains(got, "alert") {
		t.Errorf("Markdown() leaked script: %q", got)
	}
}
