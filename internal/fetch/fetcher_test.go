package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPoster struct {
	status int
	body   []byte
	err    error

	gotURL  string
	gotForm url.Values
}

func (s *stubPoster) PostForm(_ context.Context, targetURL string, form url.Values) (int, []byte, error) {
	s.gotURL = targetURL
	s.gotForm = form
	return s.status, s.body, s.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestFetchDocumentSuccess(t *testing.T) {
	poster := &stubPoster{status: 200, body: []byte("%PDF-1.4")}
	fetcher := New(poster, quietLogger())

	form := url.Values{"codigo_grupo": {"G1"}}
	result, err := fetcher.FetchDocument(context.Background(), "https://portal/Slip/Slip.asp", form)
	require.NoError(t, err)
	assert.Equal(t, 200, result.StatusCode)
	assert.Equal(t, []byte("%PDF-1.4"), result.Body)
	assert.Equal(t, "https://portal/Slip/Slip.asp", poster.gotURL)
	assert.Equal(t, "G1", poster.gotForm.Get("codigo_grupo"))
}

func TestFetchDocumentTransportError(t *testing.T) {
	fetcher := New(&stubPoster{status: 500, body: []byte("boom")}, quietLogger())

	_, err := fetcher.FetchDocument(context.Background(), "https://portal/Slip/Slip.asp", nil)
	var transport *TransportError
	require.True(t, errors.As(err, &transport))
	assert.Equal(t, 500, transport.StatusCode)
}

func TestFetchDocumentPosterError(t *testing.T) {
	fetcher := New(&stubPoster{err: errors.New("connection refused")}, quietLogger())

	_, err := fetcher.FetchDocument(context.Background(), "https://portal/Slip/Slip.asp", nil)
	require.Error(t, err)
	var transport *TransportError
	assert.False(t, errors.As(err, &transport))
}

func TestSessionPosterSendsCookiesAndForm(t *testing.T) {
	var gotCookie, gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("ASPSESSIONID"); err == nil {
			gotCookie = c.Value
		}
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotBody = r.PostForm.Get("valor_total")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	poster := NewSessionPoster([]*http.Cookie{{Name: "ASPSESSIONID", Value: "abc123"}})
	status, _, err := poster.PostForm(context.Background(), server.URL, url.Values{"valor_total": {"1.234.56"}})
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, "abc123", gotCookie)
	assert.Contains(t, gotContentType, "application/x-www-form-urlencoded")
	assert.Equal(t, "1.234.56", gotBody)
}
