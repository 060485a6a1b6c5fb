package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Sink delivers alert events to an operator-facing channel
type Sink interface {
	Send(ctx context.Context, event *Event) error
}

// StdoutSink prints events to standard output, the default channel for
// CLI runs.
type StdoutSink struct {
	// Out defaults to os.Stdout
	Out io.Writer
}

func (s *StdoutSink) Send(_ context.Context, event *Event) error {
	out := s.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := fmt.Fprintf(out, "[%s] %s - %s\n", event.Kind, event.Title, event.Body)
	return err
}

// WebhookSink POSTs events as JSON to a configured URL
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

// NewWebhookSink creates a webhook sink with retrying transport
func NewWebhookSink(url string) *WebhookSink {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 3 * time.Second
	retryClient.Logger = nil
	return &WebhookSink{
		url:        url,
		httpClient: retryClient.StandardClient(),
	}
}

func (s *WebhookSink) Send(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode alert event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error posting alert webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("alert webhook returned %d: %s", resp.StatusCode, string(body))
	}
	logrus.WithFields(logrus.Fields{
		"kind": event.Kind,
		"url":  s.url,
	}).Debug("Alert delivered to webhook")
	return nil
}

// Dispatch sends every event to every sink, logging failures instead of
// aborting: alert delivery must not fail a scan.
func Dispatch(ctx context.Context, sinks []Sink, events []Event) {
	for i := range events {
		for _, sink := range sinks {
			if err := sink.Send(ctx, &events[i]); err != nil {
				logrus.WithError(err).WithField("title", events[i].Title).Warn("Alert delivery failed")
			}
		}
	}
}
