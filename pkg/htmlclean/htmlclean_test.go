// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package htmlclean_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/crawlgate/pkg/htmlclean"
)

/*
TestSanitize covers the element and attribute rules.
*/
func TestSanitize(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		contains    []string
		notContains []string
	}{
		{
			name:     "keeps_formatting",
			in:       "<p>Line one<br>Line <em>two</em></p>",
			contains: []string{"<p>", "<br/>", "<em>two</em>"},
		},
		{
			name:        "drops_script_with_body",
			in:          "<p>Hello</p><script>alert(1)</script>",
			contains:    []string{"<p>Hello</p>"},
			notContains: []string{"script", "alert"},
		},
		{
			name:        "drops_leading_style",
			in:          "<style>p{display:none}</style><p>Visible</p>",
			contains:    []string{"<p>Visible</p>"},
			notContains: []string{"display"},
		},
		{
			name:        "drops_event_handlers",
			in:          `<p onclick="steal()" class="para">Text</p>`,
			contains:    []string{`class="para"`, "Text"},
			notContains: []string{"onclick", "steal"},
		},
		{
			name:        "drops_javascript_links",
			in:          `<a href=" javascript:alert(1)">x</a><a href="https://example.com/b/1">ok</a>`,
			contains:    []string{`href="https://example.com/b/1"`},
			notContains: []string{"javascript"},
		},
		{
			name:     "plain_text",
			in:       "第一章 天才少年",
			contains: []string{"第一章 天才少年"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := htmlclean.Sanitize(tt.in)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.notContains {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestSanitize_Empty(t *testing.T) {
	assert.Equal(t, "", htmlclean.Sanitize("   "))
}
