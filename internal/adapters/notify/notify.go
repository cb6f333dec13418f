// Package notify delivers capture notices: to the structured log, to an ntfy
// topic over HTTP, or to several sinks at once.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"http-inspector/internal/domain"
	"http-inspector/internal/usecase"
)

// Message renders the notice body for tx: "<METHOD> <path> -> <status>".
func Message(tx domain.Transaction, total int) string {
	return fmt.Sprintf("%s -> %s (%d captured)", tx.DisplayTitle(), tx.StatusDescription(), total)
}

// Log writes one info line per captured transaction.
type Log struct {
	logger *zerolog.Logger
	title  string
}

func NewLog(logger *zerolog.Logger, title string) *Log {
	return &Log{logger: logger, title: title}
}

func (l *Log) Notify(_ context.Context, tx domain.Transaction, total int) error {
	ev := l.logger.Info().Str("title", l.title).Str("id", tx.ID).Str("method", tx.Request.Method).Str("url", tx.Request.URL).Int("total", total)
	if tx.Response != nil {
		ev = ev.Int("status", tx.Response.StatusCode)
	}
	if tx.Error != nil {
		ev = ev.Int("error_code", tx.Error.Code).Str("error", tx.Error.Message)
	}
	ev.Msg(Message(tx, total))
	return nil
}

// NTFY posts notices to an ntfy-compatible endpoint as plain text.
type NTFY struct {
	client   *http.Client
	endpoint string
	title    string
}

// NewNTFY returns a notifier for endpoint. The client must not be one that
// routes through the capture tap.
func NewNTFY(client *http.Client, endpoint, title string) *NTFY {
	if client == nil {
		client = http.DefaultClient
	}
	return &NTFY{client: client, endpoint: endpoint, title: title}
}

func (n *NTFY) Notify(ctx context.Context, tx domain.Transaction, total int) error {
	return Send(ctx, n.client, n.endpoint, n.title, Message(tx, total))
}

// Send posts message to endpoint. A non-2xx answer is an error.
func Send(ctx context.Context, client *http.Client, endpoint, title, message string) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}

// Multi fans a notice out to every notifier and joins their errors.
type Multi []usecase.Notifier

func (m Multi) Notify(ctx context.Context, tx domain.Transaction, total int) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, tx, total); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ usecase.Notifier = (*Log)(nil)
	_ usecase.Notifier = (*NTFY)(nil)
	_ usecase.Notifier = Multi(nil)
)
