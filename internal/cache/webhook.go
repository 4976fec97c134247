// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache

import (
	"bytes"
	stdctx "context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/taibuivan/crawlgate/internal/platform/constants"
)

// webhookTimeout bounds one purge request, independent of the ingest request.
const webhookTimeout = 10 * time.Second

// Webhook notifies a front-end cache over HTTP.
//
// Purge returns immediately; delivery happens on a background goroutine so
// a slow front-end never delays the crawler. Call [Webhook.Wait] on shutdown
// to drain in-flight deliveries.
type Webhook struct {
	client *http.Client
	url    string
	secret string
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewWebhook creates a purge webhook. An empty secret disables signing.
func NewWebhook(url, secret string, logger *slog.Logger) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: webhookTimeout},
		url:    url,
		secret: secret,
		logger: logger,
	}
}

// Name implements [Sink].
func (webhook *Webhook) Name() string { return "webhook" }

// Purge implements [Sink]. The returned error only covers payload encoding.
func (webhook *Webhook) Purge(context stdctx.Context, ref Ref) error {
	body, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("webhook: failed to encode payload: %w", err)
	}

	detached := stdctx.WithoutCancel(context)

	webhook.wg.Add(1)
	go func() {
		defer webhook.wg.Done()

		sendCtx, cancel := stdctx.WithTimeout(detached, webhookTimeout)
		defer cancel()

		if err := webhook.send(sendCtx, body); err != nil {
			webhook.logger.WarnContext(sendCtx, "purge_webhook_failed",
				slog.String("ref", ref.String()),
				slog.Any("error", err),
			)
		}
	}()
	return nil
}

// Wait blocks until every in-flight delivery has finished.
func (webhook *Webhook) Wait() {
	webhook.wg.Wait()
}

func (webhook *Webhook) send(context stdctx.Context, body []byte) error {
	request, err := http.NewRequestWithContext(context, http.MethodPost, webhook.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", constants.AppName+"/"+constants.AppVersion)

	if webhook.secret != "" {
		request.Header.Set(constants.HeaderSignature, "sha256="+Sign(webhook.secret, body))
	}

	response, err := webhook.client.Do(request)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", response.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body, as sent in X-Signature-256.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
