// Command inspect-fetch sends requests through the capture tap and prints the
// transactions the inspector recorded for them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	cfgpkg "http-inspector/internal/infrastructure/config"
	obs "http-inspector/internal/infrastructure/observability"
	"http-inspector/internal/inspector"
)

type headerFlags []string

func (h *headerFlags) String() string     { return strings.Join(*h, ", ") }
func (h *headerFlags) Set(v string) error { *h = append(*h, v); return nil }

func main() {
	var headers headerFlags
	method := flag.String("X", http.MethodGet, "request method")
	data := flag.String("d", "", "request body")
	asJSON := flag.Bool("json", false, "print transactions as JSON")
	timeout := flag.Duration("timeout", 30*time.Second, "per-request timeout")
	configPath := flag.String("config", os.Getenv("INSPECTOR_CONFIG"), "YAML config file")
	flag.Var(&headers, "H", "request header \"Name: value\" (repeatable)")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: inspect-fetch [flags] URL...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	cfg.ShowNotifications = false
	logger := obs.NewLoggerTo(os.Stderr, cfg.LogLevel)

	ins := inspector.New(inspector.WithLogger(logger))
	if err := ins.Configure(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	ins.Start()
	hc := ins.Client()
	hc.Timeout = *timeout

	exit := 0
	for _, target := range flag.Args() {
		if err := fetch(hc, *method, target, *data, headers); err != nil {
			logger.Warn().Err(err).Str("url", target).Msg("request failed")
			exit = 1
		}
	}
	_ = ins.Shutdown(context.Background())

	all := ins.GetAllTransactions()
	// oldest first reads naturally on a terminal
	for i := len(all) - 1; i >= 0; i-- {
		tx := all[i]
		if *asJSON {
			b, _ := json.Marshal(tx)
			fmt.Println(string(b))
			continue
		}
		fmt.Println(tx.ShareText())
	}
	os.Exit(exit)
}

func fetch(hc *http.Client, method, target, data string, headers []string) error {
	var body io.Reader
	if data != "" {
		body = strings.NewReader(data)
	}
	req, err := http.NewRequest(strings.ToUpper(method), target, body)
	if err != nil {
		return err
	}
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("bad header %q", h)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(io.Discard, resp.Body)
	return err
}
