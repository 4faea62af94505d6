package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tileproxy/gateway"
	"tileproxy/upstream"
)

// MockReporter для проверки отчетов о запросах
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) ReportSuccess(result *upstream.Result) {
	m.Called(result)
}

func (m *MockReporter) ReportFailure(result *upstream.Result) {
	m.Called(result)
}

// recordingArchiver запоминает захваченные тела
type recordingArchiver struct {
	contentType string
	captured    bytes.Buffer
}

func (a *recordingArchiver) Capture(req *gateway.TileRequest, contentType string, body io.ReadCloser) io.ReadCloser {
	a.contentType = contentType
	return struct {
		io.Reader
		io.Closer
	}{io.TeeReader(body, &a.captured), body}
}

func testRequest() *gateway.TileRequest {
	return &gateway.TileRequest{
		Provider:  gateway.OSM,
		Tile:      maptile.New(1, 2, 3),
		Ext:       "png",
		RequestID: "test-request",
		Context:   context.Background(),
	}
}

func testConfig(timeout time.Duration) *Config {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	cfg.UserAgent = "tileproxy-test/1.0"
	return cfg
}

func readAndClose(t *testing.T, resp *gateway.TileResponse) []byte {
	t.Helper()
	require.NotNil(t, resp.Body)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return data
}

func TestFetchTile_Success(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0xff}
	var userAgent atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Set-Cookie", "tracking=1")
		w.Write(payload)
	}))
	defer server.Close()

	reporter := &MockReporter{}
	reporter.On("ReportSuccess", mock.MatchedBy(func(r *upstream.Result) bool {
		return r.UpstreamID == "osm" && r.StatusCode == http.StatusOK && r.BytesRead == int64(len(payload))
	})).Once()

	fetcher := NewFetcher(testConfig(time.Second), reporter, nil)
	resp := fetcher.FetchTile(context.Background(), testRequest(), server.URL+"/3/1/2.png")

	require.NoError(t, resp.Error)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, payload, readAndClose(t, resp))

	assert.Equal(t, "image/jpeg", resp.Headers.Get("Content-Type"))
	assert.Equal(t, gateway.CacheControlValue, resp.Headers.Get("Cache-Control"))
	assert.Equal(t, "*", resp.Headers.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Headers.Get("Set-Cookie"))
	assert.Equal(t, "tileproxy-test/1.0", userAgent.Load())

	reporter.AssertExpectations(t)
	reporter.AssertNotCalled(t, "ReportFailure", mock.Anything)
}

func TestFetchTile_DefaultContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Пустой Content-Type подавляет автоопределение в net/http
		w.Header()["Content-Type"] = nil
		w.Write([]byte("tile"))
	}))
	defer server.Close()

	resp := NewFetcher(testConfig(time.Second), nil, nil).
		FetchTile(context.Background(), testRequest(), server.URL)

	require.NoError(t, resp.Error)
	assert.Equal(t, gateway.DefaultContentType, resp.Headers.Get("Content-Type"))
	assert.Equal(t, []byte("tile"), readAndClose(t, resp))
}

func TestFetchTile_UpstreamStatusMirrored(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
				w.Write([]byte("upstream secret error body"))
			}))
			defer server.Close()

			reporter := &MockReporter{}
			reporter.On("ReportFailure", mock.MatchedBy(func(r *upstream.Result) bool {
				return r.StatusCode == code
			})).Once()

			resp := NewFetcher(testConfig(time.Second), reporter, nil).
				FetchTile(context.Background(), testRequest(), server.URL)

			assert.Equal(t, code, resp.StatusCode)
			require.Error(t, resp.Error)
			assert.Nil(t, resp.Body)

			var statusErr *StatusError
			require.True(t, errors.As(resp.Error, &statusErr))
			assert.Equal(t, code, statusErr.HTTPStatusCode())

			var gwErr *gateway.Error
			require.True(t, errors.As(resp.Error, &gwErr))
			assert.NotContains(t, gwErr.Message, "secret")
			reporter.AssertExpectations(t)
		})
	}
}

func TestFetchTile_RedirectWithoutLocationIsBadGateway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMultipleChoices)
	}))
	defer server.Close()

	resp := NewFetcher(testConfig(time.Second), nil, nil).
		FetchTile(context.Background(), testRequest(), server.URL)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Error(t, resp.Error)
}

func TestFetchTile_RedirectIsNotFollowed(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/tile.png" {
			w.Write([]byte("tile"))
			return
		}
		http.Redirect(w, r, "/tile.png", http.StatusFound)
	}))
	defer server.Close()

	reporter := &MockReporter{}
	reporter.On("ReportFailure", mock.MatchedBy(func(r *upstream.Result) bool {
		return r.StatusCode == http.StatusFound
	})).Once()

	resp := NewFetcher(testConfig(time.Second), reporter, nil).
		FetchTile(context.Background(), testRequest(), server.URL+"/3/1/2.png")

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Nil(t, resp.Body)
	assert.Equal(t, int32(1), calls.Load())
	reporter.AssertExpectations(t)
}

func TestFetchTile_NonOKSuccessIsBadGateway(t *testing.T) {
	for _, code := range []int{http.StatusNoContent, http.StatusPartialContent} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))
			defer server.Close()

			resp := NewFetcher(testConfig(time.Second), nil, nil).
				FetchTile(context.Background(), testRequest(), server.URL)

			assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
			assert.Nil(t, resp.Body)
			assert.Empty(t, resp.Headers.Get("Cache-Control"))
		})
	}
}

func TestFetchTile_TransportErrorIsBadGateway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	reporter := &MockReporter{}
	reporter.On("ReportFailure", mock.MatchedBy(func(r *upstream.Result) bool {
		return r.StatusCode == 0 && r.Err != nil
	})).Once()

	resp := NewFetcher(testConfig(time.Second), reporter, nil).
		FetchTile(context.Background(), testRequest(), url)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Error(t, resp.Error)
	reporter.AssertExpectations(t)
}

func TestFetchTile_TimeoutIsGatewayTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	start := time.Now()
	resp := NewFetcher(testConfig(50*time.Millisecond), nil, nil).
		FetchTile(context.Background(), testRequest(), server.URL)

	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Error(t, resp.Error)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchTile_InvalidURLIsInternalError(t *testing.T) {
	resp := NewFetcher(nil, nil, nil).
		FetchTile(context.Background(), testRequest(), "http://[::1")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var gwErr *gateway.Error
	require.True(t, errors.As(resp.Error, &gwErr))
	assert.Equal(t, "internal server error", gwErr.Message)
}

func TestFetchTile_SingleRequestNoRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	NewFetcher(testConfig(time.Second), nil, nil).
		FetchTile(context.Background(), testRequest(), server.URL)

	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchTile_ArchiverReceivesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	defer server.Close()

	archiver := &recordingArchiver{}
	resp := NewFetcher(testConfig(time.Second), nil, archiver).
		FetchTile(context.Background(), testRequest(), server.URL)

	data := readAndClose(t, resp)
	assert.Len(t, data, 1024)
	assert.Equal(t, data, archiver.captured.Bytes())
	assert.Equal(t, "image/png", archiver.contentType)
}

func TestClassifyTransportError(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, classifyTransportError(context.DeadlineExceeded))
	assert.Equal(t, http.StatusBadGateway, classifyTransportError(errors.New("connection reset")))
}

func TestConfigValidation(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.UserAgent = ""
	assert.Error(t, cfg.Validate())
}
