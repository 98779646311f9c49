package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jmehdipour/reminder/internal/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name  string
	ready bool
	err   error
	calls atomic.Int32
}

func (p *stubProvider) Name() string { return p.name }
func (p *stubProvider) Ready() bool  { return p.ready }
func (p *stubProvider) Send(context.Context, mail.Message) error {
	p.calls.Add(1)
	return p.err
}

func TestDispatcherRoundRobin(t *testing.T) {
	a := &stubProvider{name: "a", ready: true}
	b := &stubProvider{name: "b", ready: true}
	d := NewDispatcher([]Provider{a, b}, 1)

	for i := 0; i < 4; i++ {
		require.NoError(t, d.Send(context.Background(), mail.Message{To: "x@example.com"}))
	}
	assert.EqualValues(t, 2, a.calls.Load())
	assert.EqualValues(t, 2, b.calls.Load())
}

func TestDispatcherRetriesAndSkipsUnready(t *testing.T) {
	down := &stubProvider{name: "down", ready: false}
	flaky := &stubProvider{name: "flaky", ready: true, err: errors.New("503")}
	d := NewDispatcher([]Provider{down, flaky}, 3)

	err := d.Send(context.Background(), mail.Message{To: "x@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.EqualValues(t, 3, flaky.calls.Load())
	assert.EqualValues(t, 0, down.calls.Load())

	none := NewDispatcher([]Provider{down}, 2)
	err = none.Send(context.Background(), mail.Message{To: "x@example.com"})
	assert.True(t, errors.Is(err, ErrNoHealthy))
}

func TestHTTPProviderPostsAndTripsBreaker(t *testing.T) {
	var fail atomic.Bool
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "Bearer k3y", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/send", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewHTTPProvider("mailapi", srv.URL+"/", "/v1/send", "k3y", "noreply@example.com", 1000, 2, 60000)
	ctx := context.Background()

	require.NoError(t, p.Send(ctx, mail.Message{To: "ana@example.com", Subject: "Hi", Body: "hello"}))
	assert.Equal(t, map[string]string{
		"from":    "noreply@example.com",
		"to":      "ana@example.com",
		"subject": "Hi",
		"text":    "hello",
	}, got)

	fail.Store(true)
	assert.Error(t, p.Send(ctx, mail.Message{To: "ana@example.com"}))
	assert.True(t, p.Ready())
	assert.Error(t, p.Send(ctx, mail.Message{To: "ana@example.com"}))
	assert.False(t, p.Ready(), "two consecutive failures open the breaker")
}

func TestRFC822(t *testing.T) {
	raw := string(rfc822("noreply@example.com", mail.Message{To: "ana@example.com", Subject: "Hi", Body: "line1\nline2"}))
	assert.Contains(t, raw, "To: ana@example.com\r\n")
	assert.Contains(t, raw, "Subject: Hi\r\n")
	assert.Contains(t, raw, "\r\n\r\nline1\r\nline2\r\n")
}
