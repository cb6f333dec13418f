package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"http-inspector/interfaces/go/client"
	"http-inspector/internal/domain"
	"http-inspector/internal/infrastructure/config"
	httpapi "http-inspector/internal/infrastructure/httpapi"
	obs "http-inspector/internal/infrastructure/observability"
	"http-inspector/internal/inspector"
)

type monitorEvent struct {
	Type        string              `json:"type"`
	ID          string              `json:"id"`
	Total       int                 `json:"total"`
	Transaction *domain.Transaction `json:"transaction"`
}

type stack struct {
	ins *inspector.Inspector
	api *httptest.Server
	cli *client.Client
}

func startStack(t *testing.T, mut func(*config.Config)) *stack {
	t.Helper()
	logger := zerolog.New(io.Discard)
	cfg := config.Default()
	cfg.ShowNotifications = false
	if mut != nil {
		mut(&cfg)
	}
	metrics := obs.NewMetrics()
	monitor := httpapi.NewMonitorHub(cfg.CORSAllowOrigin)
	ins := inspector.New(
		inspector.WithLogger(&logger),
		inspector.WithMetrics(metrics),
		inspector.WithOverlay(monitor),
		inspector.WithPassThrough(http.DefaultTransport),
	)
	if err := ins.Configure(cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	ins.Subscribe(monitor.TransactionCaptured)
	ins.Start()

	api := httptest.NewServer(httpapi.NewRouter(&httpapi.Deps{Cfg: cfg, Logger: &logger, Metrics: metrics, Inspector: ins, Monitor: monitor}))
	t.Cleanup(func() {
		api.Close()
		_ = ins.Shutdown(context.Background())
	})
	return &stack{ins: ins, api: api, cli: client.New(api.URL)}
}

func startUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Set-Cookie", "session=s3cr3t")
		_, _ = io.WriteString(w, `[{"id":1}]`)
	})
	mux.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fetch(t *testing.T, c *http.Client, target string, hdr map[string]string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, target, nil)
	for k, v := range hdr {
		req.Header[k] = []string{v}
	}
	resp, err := c.Do(req)
	if err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func TestCaptureThroughAPI(t *testing.T) {
	up := startUpstream(t)
	s := startStack(t, nil)
	ctx := context.Background()

	fetch(t, s.ins.Client(), up.URL+"/users", map[string]string{"authorization": "Bearer abc"})
	fetch(t, s.ins.Client(), up.URL+"/boom", nil)

	items, total, err := s.cli.ListTransactions(ctx, client.Query{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || items[0].Title != "GET /boom" || items[1].Title != "GET /users" {
		t.Fatalf("list: total=%d items=%+v", total, items)
	}
	users := items[1]
	if users.Request.Headers["authorization"] != "***" {
		t.Fatalf("authorization stored unmasked: %v", users.Request.Headers)
	}
	if users.Response == nil || users.Response.Headers["Set-Cookie"] != "***" {
		t.Fatalf("set-cookie stored unmasked: %+v", users.Response)
	}
	if users.Response.BodyText == nil || *users.Response.BodyText != `[{"id":1}]` {
		t.Fatalf("body: %+v", users.Response)
	}
	// a 500 is a response, not a transport error
	if items[0].Error != nil || items[0].Status != "500" {
		t.Fatalf("boom: %+v", items[0])
	}

	text, err := s.cli.ShareText(ctx, users.ID)
	if err != nil || !strings.Contains(text, "Status: 200") {
		t.Fatalf("share: %v %q", err, text)
	}
	if _, err := s.cli.GetTransaction(ctx, "nope"); err == nil || !strings.Contains(err.Error(), "TRANSACTION_NOT_FOUND") {
		t.Fatalf("missing transaction: %v", err)
	}

	st, err := s.cli.Stats(ctx)
	if err != nil || st.Count != 2 || st.ErrorCount != 0 {
		t.Fatalf("stats: %+v %v", st, err)
	}
	if err := s.cli.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if st, _ := s.cli.Stats(ctx); st.Count != 0 {
		t.Fatalf("stats after clear: %+v", st)
	}
}

func TestNetworkErrorIsStored(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	s := startStack(t, nil)
	fetch(t, s.ins.Client(), deadURL+"/x", nil)

	items, total, err := s.cli.ListTransactions(context.Background(), client.Query{ErrorsOnly: true})
	if err != nil || total != 1 {
		t.Fatalf("errors only: total=%d err=%v", total, err)
	}
	if items[0].Response != nil || items[0].Error == nil || items[0].Error.Code != domain.CodeCannotConnect {
		t.Fatalf("error transaction: %+v", items[0])
	}
}

func TestMonitorStreamsCaptures(t *testing.T) {
	up := startUpstream(t)
	s := startStack(t, nil)

	wsURL := "ws" + strings.TrimPrefix(s.api.URL, "http") + "/api/monitor/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial monitor: %v", err)
	}
	defer conn.Close()

	// the hub greets with the current badge; wait for it so the client is registered
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev monitorEvent
	if err := conn.ReadJSON(&ev); err != nil || ev.Type != "badge" {
		t.Fatalf("greeting: %+v %v", ev, err)
	}

	fetch(t, s.ins.Client(), up.URL+"/users", nil)

	var captured []monitorEvent
	for len(captured) < 2 {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev monitorEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Type == "transaction_captured" {
			captured = append(captured, ev)
		}
	}
	if captured[0].ID != captured[1].ID {
		t.Fatalf("pending and terminal ids differ: %s %s", captured[0].ID, captured[1].ID)
	}
	if captured[0].Transaction.Response != nil || captured[1].Transaction.Response == nil {
		t.Fatalf("want pending then terminal: %+v", captured)
	}
	if captured[1].Total != 1 {
		t.Fatalf("replacement changed the total: %d", captured[1].Total)
	}
}

func TestConcurrentCaptureRespectsCapacity(t *testing.T) {
	up := startUpstream(t)
	const n, capacity = 150, 100
	s := startStack(t, func(c *config.Config) { c.MaxTransactions = capacity })

	hc := s.ins.Client()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fetch(t, hc, fmt.Sprintf("%s/users?i=%d", up.URL, i), nil)
		}(i)
	}
	wg.Wait()

	all := s.ins.GetAllTransactions()
	if len(all) != capacity {
		t.Fatalf("stored %d, want %d", len(all), capacity)
	}
	seen := map[string]bool{}
	for i, tx := range all {
		if seen[tx.ID] {
			t.Fatalf("duplicate id %s", tx.ID)
		}
		seen[tx.ID] = true
		if i > 0 && tx.Timestamp.After(all[i-1].Timestamp) {
			t.Fatalf("snapshot not newest first at %d", i)
		}
	}

	resp, err := http.Get(s.api.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "inspector_evictions_total") {
		t.Fatalf("metrics missing evictions counter")
	}
}

func TestSettingsDescribeInterceptors(t *testing.T) {
	s := startStack(t, func(c *config.Config) { c.AllowHosts = []string{"api.example.com"} })
	resp, err := http.Get(s.api.URL + "/api/settings")
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Running      bool `json:"running"`
		Interceptors []struct {
			Name     string `json:"name"`
			Matching string `json:"matching"`
		} `json:"interceptors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Running || len(out.Interceptors) != 3 {
		t.Fatalf("settings: %+v", out)
	}
	for _, ic := range out.Interceptors {
		if !strings.Contains(ic.Matching, "api.example.com") {
			t.Fatalf("%s matcher not described: %q", ic.Name, ic.Matching)
		}
	}
}

func TestStalledMonitorClientDoesNotDelayCapture(t *testing.T) {
	big := strings.Repeat("b", 512<<10)
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, big)
	}))
	defer up.Close()
	s := startStack(t, nil)

	wsURL := "ws" + strings.TrimPrefix(s.api.URL, "http") + "/api/monitor/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial monitor: %v", err)
	}
	defer conn.Close() // never read from

	hc := s.ins.Client()
	for i := 0; i < 12; i++ {
		start := time.Now()
		fetch(t, hc, up.URL, nil)
		if took := time.Since(start); took > time.Second {
			t.Fatalf("request %d took %s behind a stalled monitor client", i, took)
		}
	}
	if n := len(s.ins.GetAllTransactions()); n != 12 {
		t.Fatalf("stored %d, want 12", n)
	}
}
