package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const fetchConcurrency = 4

// GmailProvider fetches bank-notification candidates from the caller's Gmail
// account using an opaque OAuth access token.
type GmailProvider struct {
	svc        *gmail.Service
	domain     string
	windowDays int
	logger     *slog.Logger
}

func NewGmailProvider(ctx context.Context, accessToken, domain string, windowDays int, logger *slog.Logger, opts ...option.ClientOption) (*GmailProvider, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("access token is required")
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	clientOpts := append([]option.ClientOption{option.WithTokenSource(source)}, opts...)
	svc, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("init gmail client: %w", err)
	}
	return &GmailProvider{svc: svc, domain: domain, windowDays: windowDays, logger: logger}, nil
}

// Fetch lists messages matching the configured sender domain within the
// recency window, then pulls each message in full. Full-message fetches run
// concurrently; any single failure fails the whole fetch.
func (p *GmailProvider) Fetch(ctx context.Context) ([]RawEmail, error) {
	query := fmt.Sprintf("from:%s newer_than:%dd", p.domain, p.windowDays)
	list, err := p.svc.Users.Messages.List("me").Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if len(list.Messages) == 0 {
		return nil, nil
	}

	emails := make([]RawEmail, len(list.Messages))
	errs := make([]error, len(list.Messages))
	sem := make(chan struct{}, fetchConcurrency)
	var wg sync.WaitGroup
	for i, stub := range list.Messages {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			message, err := p.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
			if err != nil {
				errs[i] = fmt.Errorf("get message %s: %w", id, err)
				return
			}
			emails[i] = fromGmailMessage(message)
		}(i, stub.Id)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	p.logger.Debug("fetched candidate emails", "count", len(emails), "query", query)
	return emails, nil
}

func fromGmailMessage(message *gmail.Message) RawEmail {
	email := RawEmail{ID: message.Id}
	if message.Payload == nil {
		return email
	}
	for _, h := range message.Payload.Headers {
		email.Headers = append(email.Headers, Header{Name: h.Name, Value: h.Value})
	}
	if len(message.Payload.Parts) > 0 {
		for _, part := range message.Payload.Parts {
			data := ""
			if part.Body != nil {
				data = part.Body.Data
			}
			email.Parts = append(email.Parts, BodyPart{MimeType: part.MimeType, Data: data})
		}
		return email
	}
	if message.Payload.Body != nil {
		email.Body = message.Payload.Body.Data
	}
	return email
}
