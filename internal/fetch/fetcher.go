package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/consorcioops/boleto-batch/internal/models"
)

// TransportError reports a non-2xx HTTP status from the document endpoint.
// It is distinct from a business-error body, which arrives with status 200
// and is the classifier's concern.
type TransportError struct {
	StatusCode int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch: document endpoint returned HTTP %d", e.StatusCode)
}

// Poster is the POST capability the fetcher needs. The authenticated session
// (cookies, credentials) is owned by whoever implements it.
type Poster interface {
	PostForm(ctx context.Context, targetURL string, form url.Values) (int, []byte, error)
}

// Fetcher issues the replicated form submission and returns the raw result.
// Retry policy belongs to the orchestrator; this component does one POST.
type Fetcher struct {
	poster Poster
	logger *logrus.Logger
}

// New creates a new document fetcher
func New(poster Poster, logger *logrus.Logger) *Fetcher {
	return &Fetcher{poster: poster, logger: logger}
}

// FetchDocument POSTs the form payload to targetURL and returns the raw
// bytes. Fails with TransportError on non-2xx status.
func (f *Fetcher) FetchDocument(ctx context.Context, targetURL string, payload url.Values) (*models.FetchResult, error) {
	start := time.Now()
	status, body, err := f.poster.PostForm(ctx, targetURL, payload)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("fetch: post form: %w", err)
	}

	f.logger.WithFields(logrus.Fields{
		"url":     targetURL,
		"status":  status,
		"bytes":   len(body),
		"elapsed": elapsed,
	}).Debug("Document POST completed")

	if status < 200 || status > 299 {
		return nil, &TransportError{StatusCode: status}
	}

	return &models.FetchResult{
		Body:       body,
		StatusCode: status,
		Elapsed:    elapsed,
	}, nil
}

// SessionPoster posts through an HTTP client seeded with the browser
// session's cookies, so the replicated request carries the same
// authentication the in-page submission would.
type SessionPoster struct {
	client *resty.Client
}

// NewSessionPoster creates a poster carrying the given session cookies
func NewSessionPoster(cookies []*http.Cookie) *SessionPoster {
	client := resty.New()
	client.SetCookies(cookies)
	client.SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36")
	return &SessionPoster{client: client}
}

// PostForm implements Poster
func (p *SessionPoster) PostForm(ctx context.Context, targetURL string, form url.Values) (int, []byte, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormDataFromValues(form).
		Post(targetURL)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), resp.Body(), nil
}
