package whatsapp_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/checkmate/checkmate/internal/errors"
	"github.com/checkmate/checkmate/internal/resilience"
	"github.com/checkmate/checkmate/internal/whatsapp"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

type graphServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func newGraphServer(t *testing.T, handler http.HandlerFunc) *graphServer {
	t.Helper()
	gs := &graphServer{}
	gs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
		gs.mu.Lock()
		gs.requests = append(gs.requests, rec)
		gs.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(gs.Close)
	return gs
}

func newClient(t *testing.T, baseURL string) *whatsapp.Client {
	t.Helper()
	c, err := whatsapp.New(whatsapp.Config{
		BaseURL:            baseURL,
		Token:              "secret-token",
		PhoneNumberID:      "12345",
		BreakerMaxFailures: 100,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestSendText(t *testing.T) {
	t.Parallel()
	gs := newGraphServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.out"}]}`))
	})
	c := newClient(t, gs.URL)

	require.NoError(t, c.SendText(context.Background(), "+111", "hello", "wamid.1"))

	require.Len(t, gs.requests, 1)
	req := gs.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/12345/messages", req.Path)
	assert.Equal(t, "Bearer secret-token", req.Auth)
	assert.Equal(t, "whatsapp", req.Body["messaging_product"])
	assert.Equal(t, "+111", req.Body["to"])
	assert.Equal(t, "text", req.Body["type"])
	assert.Equal(t, map[string]any{"body": "hello"}, req.Body["text"])
	assert.Equal(t, map[string]any{"message_id": "wamid.1"}, req.Body["context"])
}

func TestSendText_NoReplyContext(t *testing.T) {
	t.Parallel()
	gs := newGraphServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	c := newClient(t, gs.URL)

	require.NoError(t, c.SendText(context.Background(), "+111", "hello", ""))
	require.Len(t, gs.requests, 1)
	assert.NotContains(t, gs.requests[0].Body, "context")
}

func TestMarkRead(t *testing.T) {
	t.Parallel()
	gs := newGraphServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	c := newClient(t, gs.URL)

	require.NoError(t, c.MarkRead(context.Background(), "wamid.1"))
	require.Len(t, gs.requests, 1)
	assert.Equal(t, map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        "wamid.1",
	}, gs.requests[0].Body)
}

func TestDownloadMedia(t *testing.T) {
	t.Parallel()
	var gs *graphServer
	gs = newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/media-1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":        "media-1",
				"url":       gs.URL + "/cdn/media-1",
				"mime_type": "image/jpeg",
			})
		case "/cdn/media-1":
			_, _ = w.Write([]byte("jpeg-bytes"))
		default:
			http.NotFound(w, r)
		}
	})
	c := newClient(t, gs.URL)

	data, err := c.DownloadMedia(context.Background(), "media-1", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	require.Len(t, gs.requests, 2)
	assert.Equal(t, "Bearer secret-token", gs.requests[1].Auth, "CDN download needs the token")
}

func TestDownloadMedia_TooLarge(t *testing.T) {
	t.Parallel()
	var gs *graphServer
	gs = newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/m" {
			_ = json.NewEncoder(w).Encode(map[string]any{"url": gs.URL + "/cdn"})
			return
		}
		_, _ = w.Write(make([]byte, 32))
	})
	c, err := whatsapp.New(whatsapp.Config{
		BaseURL: gs.URL, Token: "t", PhoneNumberID: "1", MaxMediaBytes: 16,
	}, nil)
	require.NoError(t, err)

	_, err = c.DownloadMedia(context.Background(), "m", "image/png")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeAPI))
}

func TestAPIError(t *testing.T) {
	t.Parallel()
	gs := newGraphServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","type":"OAuthException","code":100,"fbtrace_id":"abc"}}`))
	})
	c := newClient(t, gs.URL)

	err := c.SendText(context.Background(), "+111", "hello", "")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeAPI))

	var apiErr *whatsapp.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, 100, apiErr.Code)
	assert.Equal(t, "Invalid parameter", apiErr.Message)
}

func TestClientErrorsDoNotOpenCircuit(t *testing.T) {
	t.Parallel()
	gs := newGraphServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	c, err := whatsapp.New(whatsapp.Config{
		BaseURL: gs.URL, Token: "t", PhoneNumberID: "1", BreakerMaxFailures: 1,
	}, nil)
	require.NoError(t, err)

	for range 3 {
		assert.Error(t, c.MarkRead(context.Background(), "wamid.1"))
	}
	assert.Len(t, gs.requests, 3, "4xx responses must keep reaching the API")
}

func TestServerErrorsOpenCircuit(t *testing.T) {
	t.Parallel()
	gs := newGraphServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c, err := whatsapp.New(whatsapp.Config{
		BaseURL: gs.URL, Token: "t", PhoneNumberID: "1", BreakerMaxFailures: 2,
	}, nil)
	require.NoError(t, err)

	for range 4 {
		assert.Error(t, c.MarkRead(context.Background(), "wamid.1"))
	}
	assert.Len(t, gs.requests, 2)
}

func TestOpenCircuitSkipsRateLimiter(t *testing.T) {
	t.Parallel()
	gs := newGraphServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c, err := whatsapp.New(whatsapp.Config{
		BaseURL: gs.URL, Token: "t", PhoneNumberID: "1",
		BreakerMaxFailures: 1, RequestsPerSecond: 0.001, Burst: 1,
	}, nil)
	require.NoError(t, err)

	require.Error(t, c.MarkRead(context.Background(), "wamid.1"))

	// The only token is spent; waiting for the next one would outlive ctx.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = c.MarkRead(ctx, "wamid.2")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Len(t, gs.requests, 1)
}

func TestNew_RequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := whatsapp.New(whatsapp.Config{PhoneNumberID: "1"}, nil)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfig))

	_, err = whatsapp.New(whatsapp.Config{Token: "t"}, nil)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfig))
}
