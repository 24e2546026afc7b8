// Package smtpgateway runs a local SMTP endpoint that captures bank
// notification mail into the store's inbox buffer. The gateway never parses
// transactions; extraction stays with the on-demand ingestion pass, which
// consumes the buffer through the local mail provider.
package smtpgateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.io/infrasutra/bankfeed/internal/sse"
	"github.io/infrasutra/bankfeed/internal/store"
)

const defaultDomain = "bankfeed"

type AuthConfig struct {
	Enabled  bool
	Username string
	Password string
}

type Server struct {
	smtp   *smtp.Server
	logger *slog.Logger
}

func New(store *store.Store, hub *sse.Hub, logger *slog.Logger, addr string, authCfg AuthConfig) *Server {
	backend := &backend{
		store:        store,
		hub:          hub,
		logger:       logger,
		authEnabled:  authCfg.Enabled,
		authUsername: authCfg.Username,
		authPassword: authCfg.Password,
	}
	server := smtp.NewServer(backend)
	server.Addr = addr
	server.Domain = defaultDomain
	server.AllowInsecureAuth = true
	server.ReadTimeout = 15 * time.Second
	server.WriteTimeout = 15 * time.Second
	server.MaxRecipients = 20
	server.MaxMessageBytes = 5 << 20

	return &Server{smtp: server, logger: logger}
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("smtp gateway listening", "addr", s.smtp.Addr)
	return s.smtp.ListenAndServe()
}

func (s *Server) Close() error {
	return s.smtp.Close()
}

type backend struct {
	store        *store.Store
	hub          *sse.Hub
	logger       *slog.Logger
	authEnabled  bool
	authUsername string
	authPassword string
}

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{backend: b}, nil
}

type session struct {
	backend       *backend
	from          string
	to            []string
	authenticated bool
}

func (s *session) AuthMechanisms() []string {
	if s.backend.authEnabled {
		return []string{sasl.Plain}
	}
	return nil
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	if !s.backend.authEnabled {
		return nil, errors.New("authentication not enabled")
	}
	if mech != sasl.Plain {
		return nil, errors.New("unsupported authentication mechanism")
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username == s.backend.authUsername && password == s.backend.authPassword {
			s.authenticated = true
			return nil
		}
		return errors.New("invalid credentials")
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.backend.authEnabled && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	s.from = normalizeEmail(from)
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.backend.authEnabled && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	s.to = append(s.to, normalizeEmail(to))
	return nil
}

// Data buffers the raw message once per recipient; each recipient address
// is a user mailbox.
func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	from, subject := envelopeSummary(s.from, raw)
	ctx := context.Background()
	now := time.Now()

	for _, recipient := range dedupe(s.to) {
		message := store.InboxMessage{
			ID:        uuid.NewString(),
			UserEmail: recipient,
			From:      from,
			Subject:   subject,
			Raw:       raw,
			CreatedAt: now,
		}
		if err := s.backend.store.InsertInboxMessage(ctx, message); err != nil {
			s.backend.logger.Error("buffer captured message", "recipient", recipient, "error", err)
			return err
		}
		s.backend.hub.Publish(recipient, "captured", map[string]any{
			"id":      message.ID,
			"from":    from,
			"subject": subject,
		})
	}
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}

// envelopeSummary reads From and Subject from the message headers, falling
// back to the envelope sender when the headers are absent or unparseable.
func envelopeSummary(envelopeFrom string, raw []byte) (string, string) {
	from := envelopeFrom
	subject := ""
	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return from, subject
	}
	if value, err := reader.Header.Subject(); err == nil {
		subject = value
	}
	if list, err := reader.Header.AddressList("From"); err == nil && len(list) > 0 {
		from = normalizeEmail(list[0].Address)
	}
	return from, subject
}

func dedupe(emails []string) []string {
	seen := map[string]struct{}{}
	result := make([]string, 0, len(emails))
	for _, email := range emails {
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		result = append(result, email)
	}
	return result
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
