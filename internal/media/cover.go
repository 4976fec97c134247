// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package media attaches cover images to stories.

A cover is downloaded from the URL the crawler found, checked to be an image
of bounded size, and re-hosted through an [Uploader] (S3-compatible object
storage). Without an uploader the remote URL is kept as is.

Cover failures never fail an ingestion; the caller logs and moves on.
*/
package media

import (
	"bytes"
	stdctx "context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/taibuivan/crawlgate/internal/platform/constants"
)

const (
	// downloadTimeout bounds a single cover fetch.
	downloadTimeout = 20 * time.Second

	// dialTimeout bounds connecting to the cover host.
	dialTimeout = 10 * time.Second

	// maxRedirects caps redirect chains on cover downloads.
	maxRedirects = 5
)

var (
	// ErrNotImage is returned when the downloaded body is not an image.
	ErrNotImage = errors.New("media: cover is not an image")

	// ErrTooLarge is returned when the cover exceeds the configured size.
	ErrTooLarge = errors.New("media: cover exceeds size limit")

	// ErrUnsafeURL is returned for non-HTTP schemes and for hosts that
	// resolve to loopback, private or link-local addresses.
	ErrUnsafeURL = errors.New("media: cover URL is not allowed")
)

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598).
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// extensions maps the image types we re-host to object key suffixes.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/avif": ".avif",
}

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(context stdctx.Context, key, contentType string, body []byte) (string, error)
}

// Attacher downloads covers and re-hosts them.
//
// Downloads only reach public addresses: every dial, redirects included, is
// checked after DNS resolution.
type Attacher struct {
	client       *http.Client
	uploader     Uploader
	maxBytes     int64
	allowAddress func(netip.Addr) bool
	logger       *slog.Logger
}

// NewAttacher builds an attacher. A nil uploader keeps remote URLs.
func NewAttacher(uploader Uploader, maxBytes int64, logger *slog.Logger) *Attacher {
	attacher := &Attacher{
		uploader:     uploader,
		maxBytes:     maxBytes,
		allowAddress: isPublicAddress,
		logger:       logger,
	}

	dialer := &net.Dialer{Timeout: dialTimeout, Control: attacher.checkDial}
	attacher.client = &http.Client{
		Timeout: downloadTimeout,
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   dialTimeout,
			ResponseHeaderTimeout: downloadTimeout,
		},
		CheckRedirect: func(request *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("media: stopped after %d redirects", maxRedirects)
			}
			return checkScheme(request.URL)
		},
	}
	return attacher
}

/*
AttachCover fetches sourceURL and returns the URL the story should reference.

Parameters:
  - context: context.Context
  - storyID: int64 (Owner story, used in the object key)
  - sourceURL: string (Remote image found by the crawler)

Returns:
  - string: Public URL of the stored cover, or sourceURL in passthrough mode
  - error: Download, validation or upload failures
*/
func (attacher *Attacher) AttachCover(context stdctx.Context, storyID int64, sourceURL string) (string, error) {
	if attacher.uploader == nil {
		return sourceURL, nil
	}

	body, contentType, err := attacher.download(context, sourceURL)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256(body)
	key := fmt.Sprintf("covers/%d/%s%s", storyID, hex.EncodeToString(digest[:8]), extensions[contentType])

	publicURL, err := attacher.uploader.Upload(context, key, contentType, body)
	if err != nil {
		return "", fmt.Errorf("media: failed to upload cover: %w", err)
	}

	attacher.logger.InfoContext(context, "cover_uploaded",
		slog.Int64("story_id", storyID),
		slog.String("key", key),
		slog.Int("bytes", len(body)),
	)
	return publicURL, nil
}

func (attacher *Attacher) download(context stdctx.Context, sourceURL string) ([]byte, string, error) {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return nil, "", fmt.Errorf("media: invalid cover URL: %w", err)
	}
	if err := checkScheme(parsed); err != nil {
		return nil, "", err
	}

	request, err := http.NewRequestWithContext(context, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("media: invalid cover URL: %w", err)
	}
	request.Header.Set("User-Agent", constants.AppName+"/"+constants.AppVersion)

	response, err := attacher.client.Do(request)
	if err != nil {
		return nil, "", fmt.Errorf("media: failed to download cover: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media: cover download returned status %d", response.StatusCode)
	}

	if response.ContentLength > attacher.maxBytes {
		return nil, "", ErrTooLarge
	}

	var buffer bytes.Buffer
	written, err := io.Copy(&buffer, io.LimitReader(response.Body, attacher.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("media: failed to read cover: %w", err)
	}
	if written > attacher.maxBytes {
		return nil, "", ErrTooLarge
	}

	body := buffer.Bytes()
	contentType := detectImageType(response.Header.Get("Content-Type"), body)
	if contentType == "" {
		return nil, "", ErrNotImage
	}
	return body, contentType, nil
}

// detectImageType trusts the sniffed type over the declared header, and
// falls back to the header only for formats the sniffer does not know.
func detectImageType(declared string, body []byte) string {
	sniffed := http.DetectContentType(body)
	if _, ok := extensions[sniffed]; ok {
		return sniffed
	}

	declared = strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	if _, ok := extensions[declared]; ok && sniffed == "application/octet-stream" {
		return declared
	}
	return ""
}

// # Address Guard

// checkDial runs on every resolved address before the connection is made.
func (attacher *Attacher) checkDial(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsafeURL, address)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || !attacher.allowAddress(addr.Unmap()) {
		return fmt.Errorf("%w: %s", ErrUnsafeURL, host)
	}
	return nil
}

func checkScheme(target *url.URL) error {
	if (target.Scheme != "http" && target.Scheme != "https") || target.Hostname() == "" {
		return fmt.Errorf("%w: %s", ErrUnsafeURL, target.Redacted())
	}
	return nil
}

// isPublicAddress reports whether addr is routable on the public internet.
func isPublicAddress(addr netip.Addr) bool {
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		sharedAddressSpace.Contains(addr):
		return false
	}
	return true
}
