// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package htmlclean strips active content from crawled chapter bodies.

Chapter HTML is rendered verbatim by the reading site, so anything that can
execute (scripts, frames, event handlers, javascript: links) is removed
before the body is stored. Formatting markup such as <p>, <br>, <em> and
<strong> is kept as is.
*/
package htmlclean

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockedElements are removed together with their content.
const blockedElements = "script, style, iframe, frame, frameset, object, embed, applet, form, input, button, textarea, select, link, meta, base, noscript, template"

// urlAttributes may carry a javascript: or data: payload.
var urlAttributes = []string{"href", "src", "action", "formaction", "xlink:href"}

// Sanitize returns the cleaned body of an HTML fragment.
//
// Input that cannot be parsed is returned with all markup escaped by the
// parser's recovery rules, never with active content intact.
func Sanitize(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	document, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	document.Find(blockedElements).Remove()

	body := document.Find("body")
	body.Find("*").Each(func(_ int, element *goquery.Selection) {
		for _, node := range element.Nodes {
			var unsafe []string
			for _, attribute := range node.Attr {
				if isUnsafeAttribute(attribute.Key, attribute.Val) {
					unsafe = append(unsafe, attribute.Key)
				}
			}
			for _, key := range unsafe {
				element.RemoveAttr(key)
			}
		}
	})

	cleaned, err := body.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cleaned)
}

func isUnsafeAttribute(key, value string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "on") || key == "style" || key == "srcdoc" {
		return true
	}

	for _, candidate := range urlAttributes {
		if key != candidate {
			continue
		}
		scheme := strings.ToLower(strings.Join(strings.Fields(value), ""))
		return strings.HasPrefix(scheme, "javascript:") ||
			strings.HasPrefix(scheme, "vbscript:") ||
			strings.HasPrefix(scheme, "data:text/html")
	}
	return false
}
