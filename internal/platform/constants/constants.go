// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: Credential headers and token issuer.
  - Cache Taxonomy: Redis key prefixes and the purge channel.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "crawlgate"
	AppVersion = "0.3.0"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	// Bulk uploads carry full chapter bodies, so this is longer than usual.
	DefaultReadTimeout = 30 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 120 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 90 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second

	// MaxRequestBodyBytes caps inbound JSON bodies (bulk batches included).
	MaxRequestBodyBytes = 32 << 20
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per crawler.
	DefaultRateLimitRPS = 50.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 100

	// RateLimitCleanupInterval is how often idle buckets are swept.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a bucket may sit idle before it is swept.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// TokenIssuer is the 'iss' claim expected on crawler bearer tokens.
	TokenIssuer = "crawlgate"

	// TokenAudience is the 'aud' claim expected on crawler bearer tokens.
	TokenAudience = "crawler"

	// QueryParamAPIKey is the fallback query parameter carrying the API key.
	QueryParamAPIKey = "api_key"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderAPIKey        = "X-API-Key"
	HeaderAuthorization = "Authorization"
	HeaderSignature     = "X-Signature-256"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldTotal   = "total"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # Database Schemas

const (
	SchemaIngest = "ingest"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	// RedisPrefixChapterIndex caches the per-story chapter index behind the status queries.
	RedisPrefixChapterIndex = "ingest:chapter_index:"

	// RedisChannelInvalidate carries purge events for downstream renderers.
	RedisChannelInvalidate = "ingest:invalidate"
)
