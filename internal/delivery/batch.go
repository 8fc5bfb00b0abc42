// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	plog "github.com/ManuGH/petwatch/internal/log"
	"github.com/rs/zerolog"
)

// Batch hands the whole recipient list to a relay service in one request.
// The service substitutes the contact name into the template itself.
type Batch struct {
	url    string
	client *http.Client
	prefix string
	logger zerolog.Logger
}

type batchContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type batchRequest struct {
	Contacts []batchContact `json:"contacts"`
	Message  string         `json:"message"`
}

type batchResponse struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	SentTo   []string `json:"sentTo"`
	FailedTo []string `json:"failedTo"`
}

// NewBatch builds the backend for the service rooted at baseURL.
func NewBatch(baseURL string, client *http.Client, countryPrefix string) *Batch {
	return &Batch{
		url:    strings.TrimRight(baseURL, "/") + "/send-sms",
		client: client,
		prefix: countryPrefix,
		logger: plog.WithComponent("delivery.batch"),
	}
}

func (b *Batch) Name() watch.Backend { return watch.BackendBatch }

// Send posts one request. Any transport, status or decode failure marks
// every recipient failed. On success the response lists are matched to
// recipients by normalized phone; unmentioned recipients count as failed.
func (b *Batch) Send(ctx context.Context, recipients []watch.Recipient, template string) Outcome {
	resp, err := b.post(ctx, recipients, template)
	if err != nil {
		b.logger.Warn().
			Err(err).
			Str(plog.FieldEvent, "delivery.batch_failed").
			Int(plog.FieldRecipients, len(recipients)).
			Msg("batch sms service failed")
		return Outcome{Message: "Backend SMS service error: " + err.Error()}
	}

	sent := make(map[string]struct{}, len(resp.SentTo))
	for _, p := range resp.SentTo {
		sent[NormalizePhone(p, b.prefix)] = struct{}{}
	}
	var out []string
	for _, r := range recipients {
		if _, ok := sent[NormalizePhone(r.Phone, b.prefix)]; ok {
			out = append(out, r.Phone)
		}
	}
	return Outcome{SentTo: out, Message: resp.Message}
}

func (b *Batch) post(ctx context.Context, recipients []watch.Recipient, template string) (*batchResponse, error) {
	body := batchRequest{Message: template, Contacts: make([]batchContact, 0, len(recipients))}
	for _, r := range recipients {
		body.Contacts = append(body.Contacts, batchContact{Name: r.Name, Phone: NormalizePhone(r.Phone, b.prefix)})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var out batchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
