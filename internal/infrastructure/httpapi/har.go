package httpapi

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"http-inspector/internal/domain"
	obs "http-inspector/internal/infrastructure/observability"
)

// Minimal HAR 1.2 structs for export
type harLog struct {
	Version string     `json:"version"`
	Creator harName    `json:"creator"`
	Entries []harEntry `json:"entries"`
}

type harName struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type harEntry struct {
	StartedDateTime time.Time   `json:"startedDateTime"`
	Time            float64     `json:"time"`
	Request         harRequest  `json:"request"`
	Response        harResponse `json:"response"`
	Timings         harTimings  `json:"timings"`
	Comment         string      `json:"comment,omitempty"`
}

type harPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type harRequest struct {
	Method      string       `json:"method"`
	URL         string       `json:"url"`
	HTTPVersion string       `json:"httpVersion"`
	Headers     []harPair    `json:"headers"`
	QueryString []harPair    `json:"queryString"`
	Cookies     []harPair    `json:"cookies"`
	PostData    *harPostData `json:"postData,omitempty"`
	HeadersSize int          `json:"headersSize"`
	BodySize    int          `json:"bodySize"`
}

type harPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type harResponse struct {
	Status      int        `json:"status"`
	StatusText  string     `json:"statusText"`
	HTTPVersion string     `json:"httpVersion"`
	Headers     []harPair  `json:"headers"`
	Cookies     []harPair  `json:"cookies"`
	Content     harContent `json:"content"`
	RedirectURL string     `json:"redirectURL"`
	HeadersSize int        `json:"headersSize"`
	BodySize    int        `json:"bodySize"`
}

type harContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
}

type harTimings struct {
	DNS     int64   `json:"dns"`
	Connect int64   `json:"connect"`
	SSL     int64   `json:"ssl"`
	Send    int64   `json:"send"`
	Wait    float64 `json:"wait"`
	Receive int64   `json:"receive"`
}

func (d *Deps) handleExportHAR(w http.ResponseWriter, _ *http.Request) {
	txs := d.Inspector.GetAllTransactions()
	entries := make([]harEntry, 0, len(txs))
	// HAR readers expect chronological order
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].IsPending() {
			continue
		}
		entries = append(entries, harEntryOf(txs[i]))
	}
	har := struct {
		Log harLog `json:"log"`
	}{Log: harLog{Version: "1.2", Creator: harName{Name: "http-inspector", Version: obs.Version}, Entries: entries}}
	w.Header().Set("Content-Disposition", "attachment; filename=transactions_"+strconv.FormatInt(time.Now().Unix(), 10)+".har")
	writeJSON(w, http.StatusOK, har)
}

func harEntryOf(tx domain.Transaction) harEntry {
	e := harEntry{
		StartedDateTime: tx.Timestamp,
		Request: harRequest{
			Method:      tx.Request.Method,
			URL:         tx.Request.URL,
			HTTPVersion: "HTTP/1.1",
			Headers:     harPairs(tx.Request.Headers),
			QueryString: harQuery(tx.Request.URL),
			Cookies:     []harPair{},
			HeadersSize: -1,
			BodySize:    len(tx.Request.Body),
		},
		Response: harResponse{
			HTTPVersion: "HTTP/1.1",
			Headers:     []harPair{},
			Cookies:     []harPair{},
			HeadersSize: -1,
			BodySize:    -1,
		},
		Timings: harTimings{Send: 0, Receive: 0, Wait: -1, DNS: -1, Connect: -1, SSL: -1},
	}
	if tx.Request.BodyText != nil {
		e.Request.PostData = &harPostData{MimeType: getFold(tx.Request.Headers, "Content-Type"), Text: *tx.Request.BodyText}
	}
	if tx.Duration != nil {
		e.Time = *tx.Duration * 1000
		e.Timings.Wait = e.Time
	}
	if t := tx.Timings; t != nil {
		e.Timings.DNS, e.Timings.Connect, e.Timings.SSL = t.DNS, t.Connect, t.TLS
	}
	if r := tx.Response; r != nil {
		e.Response.Status = r.StatusCode
		e.Response.StatusText = http.StatusText(r.StatusCode)
		e.Response.Headers = harPairs(r.Headers)
		e.Response.BodySize = len(r.Body)
		e.Response.Content = harContent{Size: len(r.Body)}
		if r.MimeType != nil {
			e.Response.Content.MimeType = *r.MimeType
		}
		if r.BodyText != nil {
			e.Response.Content.Text = *r.BodyText
		}
		e.Response.RedirectURL = getFold(r.Headers, "Location")
	}
	if tx.Error != nil {
		// HAR has no error field
		e.Comment = tx.Error.Error()
	}
	return e
}

func harPairs(h map[string]string) []harPair {
	out := make([]harPair, 0, len(h))
	for k, v := range h {
		out = append(out, harPair{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func harQuery(raw string) []harPair {
	out := []harPair{}
	u, err := url.Parse(raw)
	if err != nil {
		return out
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			out = append(out, harPair{Name: k, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
