// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It hides the router's parameter extraction and the common body decoding
patterns so handlers get typed values or a ready-made validation error.
*/
package requestutil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/crawlgate/internal/platform/apperr"
	"github.com/taibuivan/crawlgate/internal/platform/ctxutil"
	"github.com/taibuivan/crawlgate/internal/platform/sec"
	"github.com/taibuivan/crawlgate/internal/platform/validate"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: any (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target any) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
PathID parses a named URL parameter as a positive int64 identifier.

Returns:
  - int64: The parsed identifier
  - error: apperr.ValidationError if the parameter is missing or not a positive integer
*/
func PathID(request *http.Request, name string) (int64, error) {
	return parseID(name, chi.URLParam(request, name))
}

/*
QueryID parses a named query parameter as a positive int64 identifier.
*/
func QueryID(request *http.Request, name string) (int64, error) {
	return parseID(name, request.URL.Query().Get(name))
}

/*
QueryOptionalInt parses a named query parameter as an integer.

An absent or empty parameter yields (nil, nil).
*/
func QueryOptionalInt(request *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(request.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperr.ValidationError(name+": Must be an integer", apperr.FieldError{
			Field:   name,
			Message: "Must be an integer",
		})
	}
	return &value, nil
}

/*
Caller returns the authenticated crawler identity, or nil on public routes.
*/
func Caller(request *http.Request) *sec.Caller {
	return ctxutil.GetCaller(request.Context())
}

func parseID(name, raw string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value <= 0 {
		return 0, apperr.ValidationError(name+": Must be a positive integer", apperr.FieldError{
			Field:   name,
			Message: "Must be a positive integer",
		})
	}
	return value, nil
}
