package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.io/infrasutra/bankfeed/internal/auth"
	"github.io/infrasutra/bankfeed/internal/config"
	"github.io/infrasutra/bankfeed/internal/ingest"
	"github.io/infrasutra/bankfeed/internal/mail"
	"github.io/infrasutra/bankfeed/internal/pagination"
	"github.io/infrasutra/bankfeed/internal/sse"
	"github.io/infrasutra/bankfeed/internal/store"
	webassets "github.io/infrasutra/bankfeed/web"
)

type Server struct {
	cfg      config.Config
	store    *store.Store
	auth     *auth.Manager
	hub      *sse.Hub
	ingestor *ingest.Ingestor
	logger   *slog.Logger
	mux      *http.ServeMux
	staticFS fs.FS
	staticOK bool
}

func NewServer(cfg config.Config, store *store.Store, authManager *auth.Manager, hub *sse.Hub, ingestor *ingest.Ingestor, logger *slog.Logger) *Server {
	staticFS, err := webassets.Dist()
	staticOK := err == nil
	if err != nil {
		logger.Warn("ui assets not embedded", "error", err)
	}
	server := &Server{
		cfg:      cfg,
		store:    store,
		auth:     authManager,
		hub:      hub,
		ingestor: ingestor,
		logger:   logger,
		staticFS: staticFS,
		staticOK: staticOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", server.handleLogin)
	mux.HandleFunc("/api/logout", server.handleLogout)
	mux.HandleFunc("/api/me", server.handleMe)
	mux.HandleFunc("/api/process", server.handleProcess)
	mux.HandleFunc("/api/process/local", server.handleProcessLocal)
	mux.HandleFunc("/api/transactions", server.handleTransactions)
	mux.HandleFunc("/api/transactions/stats", server.handleStats)
	mux.HandleFunc("/api/stream", server.handleStream)
	server.mux = mux
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	urlPath := r.URL.Path
	if strings.HasPrefix(urlPath, "/api/") {
		s.mux.ServeHTTP(w, r)
		return
	}
	if urlPath == "/health" {
		s.respondText(w, http.StatusOK, "ok")
		return
	}
	if urlPath == "/ready" {
		s.respondText(w, http.StatusOK, "ready")
		return
	}

	s.serveStatic(w, r)
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if !s.staticOK {
		s.respondText(w, http.StatusNotFound, "UI assets missing from build.")
		return
	}

	cleaned := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if cleaned == "" {
		cleaned = "index.html"
	}

	if s.serveEmbeddedFile(w, r, cleaned) {
		return
	}
	if s.serveEmbeddedFile(w, r, "index.html") {
		return
	}
	s.respondText(w, http.StatusNotFound, "UI assets missing from build.")
}

func (s *Server) serveEmbeddedFile(w http.ResponseWriter, r *http.Request, name string) bool {
	file, err := s.staticFS.Open(name)
	if err != nil {
		return false
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	if seeker, ok := file.(io.ReadSeeker); ok {
		http.ServeContent(w, r, info.Name(), info.ModTime(), seeker)
		return true
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), bytes.NewReader(data))
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	email, err := auth.NormalizeEmail(payload.Email)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	now := time.Now()
	if err := s.store.UpsertUser(r.Context(), email, now); err != nil {
		http.Error(w, "unable to save user", http.StatusInternalServerError)
		return
	}
	token, err := s.auth.Issue(email, now)
	if err != nil {
		http.Error(w, "unable to create session", http.StatusInternalServerError)
		return
	}
	s.setSessionCookie(w, token, now)
	s.respondJSON(w, http.StatusOK, map[string]string{"email": email})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.auth.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	email, err := s.sessionEmail(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"email": email})
}

// handleProcess runs one ingestion pass against the caller's Gmail account
// using the opaque access token supplied in the request body.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	email, err := s.sessionEmail(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		http.Error(w, "access token is required", http.StatusBadRequest)
		return
	}

	provider, err := mail.NewGmailProvider(r.Context(), payload.AccessToken, s.cfg.BankDomain, s.cfg.FetchWindowDays, s.logger)
	if err != nil {
		s.logger.Error("init mail provider", "error", err)
		http.Error(w, "unable to process emails", http.StatusInternalServerError)
		return
	}
	s.runPass(w, r, provider, email)
}

// handleProcessLocal runs one ingestion pass over mail captured by the SMTP
// gateway for the signed-in user.
func (s *Server) handleProcessLocal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	email, err := s.sessionEmail(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.runPass(w, r, mail.NewLocalProvider(s.store, email, s.logger), email)
}

func (s *Server) runPass(w http.ResponseWriter, r *http.Request, provider mail.Provider, email string) {
	result, err := s.ingestor.ProcessInbox(r.Context(), provider, email)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("ingestion pass failed", "user", email, "error", err)
		http.Error(w, "unable to process emails", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusOK, struct {
		Success   bool `json:"success"`
		Processed int  `json:"processed"`
		Total     int  `json:"total"`
	}{true, result.Processed, result.Total})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	email, err := s.sessionEmail(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	params := pagination.FromQuery(r.URL.Query())
	transactions, total, err := s.store.ListTransactions(r.Context(), email, params.Sort, params.Offset, params.Limit)
	if err != nil {
		http.Error(w, "unable to list transactions", http.StatusInternalServerError)
		return
	}

	response := struct {
		Transactions []transactionView `json:"transactions"`
		Total        int32             `json:"total"`
		Page         int32             `json:"page"`
		HasMore      bool              `json:"hasMore"`
	}{
		Transactions: make([]transactionView, 0, len(transactions)),
		Total:        total,
		Page:         params.Page,
		HasMore:      pagination.HasNext(params.Offset, params.Limit, total),
	}
	for _, txn := range transactions {
		response.Transactions = append(response.Transactions, toView(txn))
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	email, err := s.sessionEmail(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	stats, err := s.store.Stats(r.Context(), email)
	if err != nil {
		http.Error(w, "unable to load stats", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusOK, struct {
		Count    int64  `json:"count"`
		Received string `json:"received"`
		Sent     string `json:"sent"`
		Net      string `json:"net"`
	}{stats.Count, stats.Received.StringFixed(2), stats.Sent.StringFixed(2), stats.Net.StringFixed(2)})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	email, err := s.sessionEmail(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.hub.Subscribe(email)
	defer unsubscribe()

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(payload)
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		}
	}
}

func (s *Server) sessionEmail(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.auth.CookieName())
	if err != nil {
		return "", errors.New("missing session")
	}
	return s.auth.Parse(cookie.Value, time.Now())
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string, now time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.auth.CookieName(),
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.auth.MaxAge().Seconds()),
		Expires:  now.Add(s.auth.MaxAge()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) respondText(w http.ResponseWriter, status int, payload string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprint(w, payload)
}

type transactionView struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Sender      string `json:"sender,omitempty"`
	Recipient   string `json:"recipient,omitempty"`
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference"`
}

func toView(txn store.Transaction) transactionView {
	return transactionView{
		ID:          txn.ID,
		Date:        txn.Date,
		Time:        txn.Time,
		Amount:      txn.Amount.StringFixed(2),
		Type:        txn.Type,
		Sender:      txn.Sender,
		Recipient:   txn.Recipient,
		Description: txn.Description,
		Reference:   txn.Reference,
	}
}
