// Package client reads captured transactions from a running inspector's API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client { return &Client{BaseURL: baseURL, HTTP: http.DefaultClient} }

type Request struct {
	Method   string            `json:"method"`
	URL      string            `json:"url"`
	Headers  map[string]string `json:"headers"`
	BodyText *string           `json:"bodyText,omitempty"`
}

type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	BodyText   *string           `json:"bodyText,omitempty"`
	MimeType   *string           `json:"mimeType,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Domain  string `json:"domain"`
}

type Transaction struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	State     string    `json:"state"`
	Request   Request   `json:"request"`
	Response  *Response `json:"response,omitempty"`
	Error     *Error    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Duration  *float64  `json:"duration,omitempty"`
}

type Stats struct {
	Count      int `json:"count"`
	ErrorCount int `json:"errorCount"`
	Success    int `json:"success"`
	Pending    int `json:"pending"`
	Capacity   int `json:"capacity"`
}

// Query selects transactions; zero fields are not sent.
type Query struct {
	Q          string
	URL        string
	Method     string
	ErrorsOnly bool
	Limit      int
	Offset     int
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.URL != "" {
		v.Set("url", q.URL)
	}
	if q.Method != "" {
		v.Set("method", q.Method)
	}
	if q.ErrorsOnly {
		v.Set("errors", "1")
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

func (c *Client) ListTransactions(ctx context.Context, q Query) ([]Transaction, int, error) {
	target := c.BaseURL + "/api/transactions"
	if enc := q.values().Encode(); enc != "" {
		target += "?" + enc
	}
	var out struct {
		Items []Transaction `json:"items"`
		Total int           `json:"total"`
	}
	if err := c.getJSON(ctx, target, &out); err != nil {
		return nil, 0, err
	}
	return out.Items, out.Total, nil
}

func (c *Client) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	var tx Transaction
	err := c.getJSON(ctx, c.BaseURL+"/api/transactions/"+url.PathEscape(id), &tx)
	return tx, err
}

// ShareText returns the plain-text summary of one transaction.
func (c *Client) ShareText(ctx context.Context, id string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, c.BaseURL+"/api/transactions/"+url.PathEscape(id)+"/share")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.getJSON(ctx, c.BaseURL+"/api/stats", &s)
	return s, err
}

func (c *Client) Clear(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, c.BaseURL+"/api/transactions")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) getJSON(ctx context.Context, target string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, target)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// do sends the request and turns a non-2xx answer into an error.
func (c *Client) do(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var body struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("%s %s: status=%d code=%s: %s", method, target, resp.StatusCode, body.Error.Code, body.Error.Message)
	}
	return resp, nil
}
