// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/taibuivan/crawlgate/internal/platform/apperr"
	"github.com/taibuivan/crawlgate/internal/platform/constants"
	"github.com/taibuivan/crawlgate/internal/platform/ctxutil"
	"github.com/taibuivan/crawlgate/internal/platform/respond"
	"github.com/taibuivan/crawlgate/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify bearer tokens in middleware.
//
// Defining it here decouples the middleware from [sec.TokenService] so tests
// can inject fakes.
type TokenVerifier interface {
	VerifyToken(tokenString string) (*sec.CrawlerClaims, error)
}

// RequireCrawler blocks requests that do not carry a valid crawler credential.
//
// # Flow
//  1. Read the key from the X-API-Key header, else the api_key query parameter.
//  2. If no key is present, fall back to 'Authorization: Bearer <token>' when tokens are enabled.
//  3. Nothing presented: 401. Something presented but invalid: 403.
//  4. Inject the [*sec.Caller] into the request context.
//
// Either argument may be nil to disable that credential type.
func RequireCrawler(keys sec.CredentialVerifier, tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. API Key ────────────────────────────────────────────────────
			apiKey := request.Header.Get(constants.HeaderAPIKey)
			if apiKey == "" {
				apiKey = request.URL.Query().Get(constants.QueryParamAPIKey)
			}

			if apiKey != "" {
				if keys == nil || !keys.Verify(apiKey) {
					respond.Error(writer, request, apperr.Forbidden("Invalid API key"))
					return
				}
				serveAs(next, writer, request, &sec.Caller{Method: sec.MethodAPIKey, Subject: "api_key"})
				return
			}

			// ── 2. Bearer Token ───────────────────────────────────────────────
			authHeader := request.Header.Get(constants.HeaderAuthorization)
			if authHeader == "" || tokens == nil {
				respond.Error(writer, request, apperr.Unauthorized("API key required. Provide X-API-Key header or api_key parameter."))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			claims, err := tokens.VerifyToken(parts[1])
			if err != nil {
				respond.Error(writer, request, apperr.Forbidden("Invalid or expired token"))
				return
			}

			serveAs(next, writer, request, &sec.Caller{Method: sec.MethodToken, Subject: claims.Subject})
		})
	}
}

// serveAs records the caller and continues down the chain.
func serveAs(next http.Handler, writer http.ResponseWriter, request *http.Request, caller *sec.Caller) {
	if holder := callerHolderFrom(request.Context()); holder != nil {
		holder.caller = caller
	}
	ctx := ctxutil.WithCaller(request.Context(), caller)
	next.ServeHTTP(writer, request.WithContext(ctx))
}

// # Caller Propagation

// callerHolder lets the access logger, which runs outside the auth
// middleware, see who the request was authenticated as.
type callerHolder struct {
	caller *sec.Caller
}

type holderKey struct{}

func withCallerHolder(ctx context.Context, holder *callerHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, holder)
}

func callerHolderFrom(ctx context.Context) *callerHolder {
	holder, _ := ctx.Value(holderKey{}).(*callerHolder)
	return holder
}
