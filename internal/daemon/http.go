package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serveHTTP runs the daemon's HTTP API on addr.
// Endpoints:
//   - GET /health: health check
//   - GET /metrics: Prometheus metrics
//   - GET /v1/events: live activity stream (SSE)
//   - GET /v1/history: recent recorded exchanges for an account
//   - GET /v1/status: per-account counters
func (d *Daemon) serveHTTP(ctx context.Context, addr string) {
	srv := &http.Server{Addr: addr, Handler: d.handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	slog.Info("API listening", "addr", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		slog.Warn("API server error", "error", err)
	}
}

// serveSocket exposes the same API on a Unix socket for local tooling.
// A stale socket file from an earlier run is replaced.
func (d *Daemon) serveSocket(ctx context.Context, path string) {
	if _, err := os.Stat(path); err == nil {
		os.Remove(path)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		slog.Warn("API socket failed", "path", path, "error", err)
		return
	}
	os.Chmod(path, 0o660)

	srv := &http.Server{Handler: d.handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		srv.Close()
		os.Remove(path)
	}()

	slog.Info("API listening", "socket", path)
	if err := srv.Serve(ln); err != http.ErrServerClosed {
		slog.Warn("API socket error", "error", err)
	}
}

func (d *Daemon) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", d.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /v1/events", d.events)
	mux.HandleFunc("GET /v1/history", d.handleHistory)
	mux.HandleFunc("GET /v1/status", d.handleStatus)
	return mux
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if d.healthy.Load() {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","uptime":"%s"}`, time.Since(d.startedAt).Round(time.Second))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprint(w, `{"status":"starting"}`)
}

// historyResponse is the JSON response for /v1/history.
type historyResponse struct {
	Account   string          `json:"account"`
	Count     int             `json:"count"`
	Exchanges []historyRecord `json:"exchanges"`
}

type historyRecord struct {
	MessageID   string `json:"message_id,omitempty"`
	Author      string `json:"author"`
	Content     string `json:"content"`
	BotResponse string `json:"bot_response,omitempty"`
	Topic       string `json:"topic,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// handleHistory serves recorded exchanges, oldest first.
// Query params:
//   - account: account name (required)
//   - limit: max results (default 20, at most 100)
func (d *Daemon) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	acct := r.URL.Query().Get("account")
	if acct == "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"missing required parameter: account"}`)
		return
	}
	if !d.hasAccount(acct) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error":"unknown account %q"}`, acct)
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	hist, err := d.store.RecentHistory(r.Context(), acct, limit)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `{"error":%q}`, err.Error())
		return
	}

	result := historyResponse{Account: acct, Count: len(hist), Exchanges: make([]historyRecord, 0, len(hist))}
	for _, e := range hist {
		result.Exchanges = append(result.Exchanges, historyRecord{
			MessageID:   e.MessageID,
			Author:      e.Author,
			Content:     e.Content,
			BotResponse: e.BotResponse,
			Topic:       e.Topic,
			Timestamp:   e.Timestamp.Format(time.RFC3339),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		slog.Warn("failed to encode history response", "error", err)
	}
}

type statusResponse struct {
	Uptime       string          `json:"uptime"`
	Models       int             `json:"models"`
	Cooling      int             `json:"cooling"`
	ActiveQueues int             `json:"active_queues"`
	Subscribers  int             `json:"subscribers"`
	Accounts     []accountStatus `json:"accounts"`
}

type accountStatus struct {
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Answered int    `json:"answered_today"`
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	result := statusResponse{
		Uptime:       time.Since(d.startedAt).Round(time.Second).String(),
		Models:       d.pool.Size(),
		Cooling:      d.pool.CoolingCount(),
		ActiveQueues: d.sched.Channels(),
		Subscribers:  d.events.SubscriberCount(),
	}
	for _, a := range d.accounts {
		result.Accounts = append(result.Accounts, accountStatus{
			Name:     a.name,
			Platform: a.client.Name(),
			Answered: a.orch.Answered(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Warn("failed to encode status response", "error", err)
	}
}

func (d *Daemon) hasAccount(name string) bool {
	for _, a := range d.accounts {
		if a.name == name {
			return true
		}
	}
	return false
}
