// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package slug generates ASCII URL slugs from arbitrary Unicode strings.
//
// # Usage
//
// Story slugs are derived from the crawled title on first ingestion
// (e.g., "Đấu Phá Thương Khung" → "dau-pha-thuong-khung").
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxLength bounds slugs generated from very long titles.
const maxLength = 120

var (
	// nonAlphanumeric matches any sequence of characters outside [a-z0-9].
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

	// foldings covers letters that NFD does not decompose into base + mark.
	foldings = strings.NewReplacer("đ", "d", "Đ", "d", "ß", "ss", "æ", "ae", "ø", "o", "ł", "l")
)

// From converts an arbitrary Unicode string into a URL-safe ASCII slug.
//
// # Transformation Pipeline
//
// 1. Folds letters without a decomposition (đ → d).
// 2. Normalizes to NFD and removes combining marks (accents).
// 3. Lowercases and joins alphanumeric runs with single hyphens.
// 4. Truncates to maxLength on a hyphen boundary when possible.
//
// Titles with no Latin content (e.g. pure CJK) produce an empty string.
func From(s string) string {
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(chain, foldings.Replace(s))

	result = strings.ToLower(result)
	result = nonAlphanumeric.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if len(result) > maxLength {
		result = result[:maxLength]
		if cut := strings.LastIndexByte(result, '-'); cut > maxLength/2 {
			result = result[:cut]
		}
		result = strings.Trim(result, "-")
	}

	return result
}

// FromOr behaves like [From] but returns fallback when the result is empty.
func FromOr(s, fallback string) string {
	if result := From(s); result != "" {
		return result
	}
	return fallback
}
