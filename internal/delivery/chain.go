// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package delivery sends the emergency SMS through the first configured
// backend: a keyed per-recipient API, a batch relay service, or a simulated
// send when nothing is configured.
package delivery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	plog "github.com/ManuGH/petwatch/internal/log"
	"github.com/ManuGH/petwatch/internal/metrics"
	"github.com/ManuGH/petwatch/internal/platform/httpx"
	"github.com/ManuGH/petwatch/internal/telemetry"
	"github.com/rs/zerolog"
)

const (
	msgNoContacts = "No emergency contacts to notify"
	tracerName    = "github.com/ManuGH/petwatch/internal/delivery"
)

// TwilioConfig holds the keyed SMS API credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

// Configured reports whether all credentials are present.
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// Config selects and tunes the backends.
type Config struct {
	Twilio        TwilioConfig
	BackendURL    string
	CountryPrefix string
	Timeout       time.Duration
	Concurrency   int
	RatePerSecond float64
}

// Outcome is what a backend reports. Phones are the original recipient
// strings; the chain derives FailedTo from the recipients not in SentTo.
type Outcome struct {
	SentTo  []string
	Message string
}

// Backend delivers one templated message to a list of recipients.
type Backend interface {
	Name() watch.Backend
	Send(ctx context.Context, recipients []watch.Recipient, template string) Outcome
}

// Option customises a Chain.
type Option func(*Chain)

// WithHTTPClient overrides the outbound client of the HTTP backends.
func WithHTTPClient(c *http.Client) Option { return func(ch *Chain) { ch.client = c } }

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(ch *Chain) { ch.now = now } }

// WithBackend bypasses configuration-based selection.
func WithBackend(b Backend) Option { return func(ch *Chain) { ch.backend = b } }

// Chain dispatches alerts through the selected backend.
type Chain struct {
	backend Backend
	client  *http.Client
	now     func() time.Time
	logger  zerolog.Logger
}

// NewChain selects the backend by configuration presence only. A configured
// channel that fails never falls through to the next one.
func NewChain(cfg Config, opts ...Option) *Chain {
	c := &Chain{
		now:    time.Now,
		logger: plog.WithComponent("delivery"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backend != nil {
		return c
	}
	if c.client == nil {
		c.client = httpx.NewTracedClient(cfg.Timeout, "sms")
	}

	switch {
	case cfg.Twilio.Configured():
		c.backend = NewTwilio(cfg.Twilio, c.client, cfg.CountryPrefix, cfg.Concurrency, cfg.RatePerSecond)
	case cfg.BackendURL != "":
		c.backend = NewBatch(cfg.BackendURL, c.client, cfg.CountryPrefix)
	default:
		c.backend = Simulated{}
	}
	c.logger.Info().
		Str(plog.FieldEvent, "delivery.backend_selected").
		Str(plog.FieldBackend, string(c.backend.Name())).
		Msg("delivery backend selected")
	return c
}

// Backend names the selected backend.
func (c *Chain) Backend() watch.Backend { return c.backend.Name() }

// Dispatch sends template to recipients. Failure is reported in the result,
// never as an error.
func (c *Chain) Dispatch(ctx context.Context, recipients []watch.Recipient, template string) watch.DeliveryResult {
	if len(recipients) == 0 {
		return watch.DeliveryResult{
			SentTo:    []string{},
			FailedTo:  []string{},
			Message:   msgNoContacts,
			Timestamp: c.now(),
			Backend:   watch.BackendNone,
			Attempts:  1,
		}
	}

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "delivery.dispatch")
	defer span.End()

	start := time.Now()
	out := c.backend.Send(ctx, recipients, template)
	res := partition(recipients, out.SentTo)
	res.Backend = c.backend.Name()
	res.Timestamp = c.now()
	res.Attempts = 1
	res.Message = out.Message
	if res.Message == "" {
		res.Message = fmt.Sprintf("SMS sent to %d of %d contacts", len(res.SentTo), len(recipients))
	}

	span.SetAttributes(telemetry.DeliveryAttributes(string(res.Backend), len(recipients), len(res.SentTo), len(res.FailedTo))...)
	metrics.RecordDispatch(string(res.Backend), string(res.Reach()), len(res.SentTo), len(res.FailedTo), time.Since(start).Seconds())

	logger := plog.WithContext(ctx, c.logger)
	logger.Info().
		Str(plog.FieldEvent, "delivery.completed").
		Str(plog.FieldBackend, string(res.Backend)).
		Int(plog.FieldRecipients, len(recipients)).
		Int(plog.FieldSent, len(res.SentTo)).
		Int(plog.FieldFailed, len(res.FailedTo)).
		Msg(res.Message)
	return res
}

// partition splits recipient phones by membership in sent, preserving
// recipient order, so SentTo and FailedTo always partition the input.
func partition(recipients []watch.Recipient, sent []string) watch.DeliveryResult {
	ok := make(map[string]struct{}, len(sent))
	for _, p := range sent {
		ok[p] = struct{}{}
	}
	res := watch.DeliveryResult{SentTo: []string{}, FailedTo: []string{}}
	for _, r := range recipients {
		if _, hit := ok[r.Phone]; hit {
			res.SentTo = append(res.SentTo, r.Phone)
		} else {
			res.FailedTo = append(res.FailedTo, r.Phone)
		}
	}
	res.Sent = len(res.SentTo) > 0
	return res
}
