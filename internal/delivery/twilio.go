// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ManuGH/petwatch/internal/compose"
	"github.com/ManuGH/petwatch/internal/domain/watch"
	plog "github.com/ManuGH/petwatch/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// Twilio sends one message per recipient through the keyed REST API.
type Twilio struct {
	cfg         TwilioConfig
	client      *http.Client
	prefix      string
	concurrency int
	limiter     *rate.Limiter
	logger      zerolog.Logger
}

// apiError is the error document returned by the API.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// NewTwilio builds the backend. perSecond <= 0 disables pacing.
func NewTwilio(cfg TwilioConfig, client *http.Client, countryPrefix string, concurrency int, perSecond float64) *Twilio {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwilioBaseURL
	}
	if concurrency < 1 {
		concurrency = 1
	}
	t := &Twilio{
		cfg:         cfg,
		client:      client,
		prefix:      countryPrefix,
		concurrency: concurrency,
		logger:      plog.WithComponent("delivery.twilio"),
	}
	if perSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), concurrency)
	}
	return t
}

func (t *Twilio) Name() watch.Backend { return watch.BackendTwilio }

// Send attempts every recipient independently.
func (t *Twilio) Send(ctx context.Context, recipients []watch.Recipient, template string) Outcome {
	ok := make([]bool, len(recipients))

	var g errgroup.Group
	g.SetLimit(t.concurrency)
	for i, r := range recipients {
		g.Go(func() error {
			if t.limiter != nil {
				if err := t.limiter.Wait(ctx); err != nil {
					t.logFailure(r, err)
					return nil
				}
			}
			if err := t.sendOne(ctx, r, template); err != nil {
				t.logFailure(r, err)
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var sent []string
	for i, r := range recipients {
		if ok[i] {
			sent = append(sent, r.Phone)
		}
	}
	return Outcome{SentTo: sent}
}

func (t *Twilio) sendOne(ctx context.Context, r watch.Recipient, template string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(t.cfg.BaseURL, "/"), url.PathEscape(t.cfg.AccountSID))
	form := url.Values{
		"From": {t.cfg.FromNumber},
		"To":   {NormalizePhone(r.Phone, t.prefix)},
		"Body": {compose.ForRecipient(template, r.Name)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	var apiErr apiError
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("HTTP %d: code %d: %s", resp.StatusCode, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

func (t *Twilio) logFailure(r watch.Recipient, err error) {
	t.logger.Warn().
		Err(err).
		Str(plog.FieldEvent, "delivery.recipient_failed").
		Str(plog.FieldPhone, plog.MaskPhone(r.Phone)).
		Msg("sms to recipient failed")
}
