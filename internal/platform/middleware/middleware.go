// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package middleware holds the HTTP chain that wraps every crawler request.

Layers, outermost first:

  - Trace: request IDs and one structured access log line per request.
  - Guard: per-crawler rate limiting, body size caps and CORS.
  - Safe: panic recovery.
  - Access: crawler credential checks (see apikey.go).

Domain handlers never see a request that skipped these steps.
*/
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/taibuivan/crawlgate/internal/platform/constants"
)

// # Middleware Helpers

// RealIP extracts the client address, preferring proxy headers.
func RealIP(request *http.Request) string {
	if ip := strings.TrimSpace(request.Header.Get(constants.HeaderXRealIP)); ip != "" {
		return ip
	}

	if forwarded := request.Header.Get(constants.HeaderXForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}
	return host
}

// writeError is used by layers that run before the respond package is reachable.
func writeError(writer http.ResponseWriter, status int, code, message string) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(map[string]string{
		constants.FieldCode:  code,
		constants.FieldError: message,
	})
}
