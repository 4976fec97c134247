// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/taibuivan/crawlgate/internal/platform/constants"
)

// corsAllowHeaders lists what a browser-based crawler dashboard may send.
var corsAllowHeaders = strings.Join([]string{
	"Accept",
	"Content-Type",
	constants.HeaderAuthorization,
	constants.HeaderAPIKey,
	constants.HeaderXRequestID,
}, ", ")

// AppConfig is the slice of configuration CORS needs.
type AppConfig interface {
	IsDevelopment() bool
	AllowedOrigins() []string
}

// CORS admits browser callers from the configured origins, or any origin in
// development. The crawler API only reads and writes JSON over GET and POST.
func CORS(cfg AppConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			origin := request.Header.Get(constants.HeaderOrigin)
			if origin == "" {
				next.ServeHTTP(writer, request)
				return
			}

			header := writer.Header()
			header.Add("Vary", constants.HeaderOrigin)

			if cfg.IsDevelopment() || slices.Contains(cfg.AllowedOrigins(), origin) {
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				header.Set("Access-Control-Expose-Headers", constants.HeaderXRequestID+", Retry-After")
				header.Set("Access-Control-Max-Age", "600")
			}

			if request.Method == http.MethodOptions && request.Header.Get("Access-Control-Request-Method") != "" {
				writer.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
