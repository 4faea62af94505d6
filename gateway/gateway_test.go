package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb/maptile"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockHandler для тестирования шлюза
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) Handle(req *TileRequest) *TileResponse {
	args := m.Called(req)
	resp, _ := args.Get(0).(*TileResponse)
	return resp
}

type panicHandler struct{}

func (panicHandler) Handle(req *TileRequest) *TileResponse {
	panic("boom")
}

func tileResponse(body string) *TileResponse {
	return &TileResponse{
		StatusCode: http.StatusOK,
		Headers:    SuccessHeaders("image/png"),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func serve(gw *Gateway, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, r)
	return rec
}

func TestGateway_ServesTile(t *testing.T) {
	handler := &MockHandler{}
	handler.On("Handle", mock.MatchedBy(func(req *TileRequest) bool {
		return req.Provider == Esri &&
			req.Tile == maptile.New(91, 55, 7) &&
			req.RequestID != "" &&
			req.Context != nil
	})).Return(tileResponse("tile-bytes")).Once()

	gw := New(DefaultConfig(), handler, nil)
	rec := serve(gw, http.MethodGet, "/tiles/esri/7/91/55.png", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tile-bytes", rec.Body.String())
	assert.Equal(t, CacheControlValue, rec.Header().Get("Cache-Control"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	handler.AssertExpectations(t)

	assert.Equal(t, 1.0, testutil.ToFloat64(gw.metrics.RequestsTotal.WithLabelValues("esri", "200")))
}

func TestGateway_RejectsWithoutCallingHandler(t *testing.T) {
	paths := []string{
		"/tiles/bing/1/1/1.png",
		"/tiles/osm/1/1.png",
		"/tiles/osm/1/1/1.gif",
		"/tiles/osm/y/1/1/1.png",
		"/tiles",
		"/tiles/",
	}

	handler := &MockHandler{}
	gw := New(DefaultConfig(), handler, nil)

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec := serve(gw, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		})
	}

	handler.AssertNotCalled(t, "Handle", mock.Anything)
	assert.Equal(t, float64(len(paths)), testutil.ToFloat64(gw.metrics.RequestsTotal.WithLabelValues("invalid", "400")))
}

func TestGateway_PropagatesUpstreamStatus(t *testing.T) {
	handler := &MockHandler{}
	handler.On("Handle", mock.Anything).
		Return(ErrorResponse(http.StatusNotFound, "upstream error 404", nil)).Once()

	gw := New(DefaultConfig(), handler, nil)
	rec := serve(gw, http.MethodGet, "/tiles/osm/1/1/1.png", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "upstream error 404\n", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Length"))
}

func TestGateway_RequestIDFromClient(t *testing.T) {
	handler := &MockHandler{}
	handler.On("Handle", mock.MatchedBy(func(req *TileRequest) bool {
		return req.RequestID == "client-id-42"
	})).Return(tileResponse("x")).Once()

	gw := New(DefaultConfig(), handler, nil)
	rec := serve(gw, http.MethodGet, "/tiles/google/y/1/1/1.jpg", map[string]string{RequestIDHeader: "client-id-42"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-id-42", rec.Header().Get(RequestIDHeader))
	handler.AssertExpectations(t)
}

func TestGateway_UnsafeRequestIDReplaced(t *testing.T) {
	for _, id := range []string{
		"id with spaces",
		"forged\nlevel=error",
		`{"json":"injection"}`,
		strings.Repeat("a", 129),
	} {
		t.Run(id[:min(len(id), 16)], func(t *testing.T) {
			handler := &MockHandler{}
			handler.On("Handle", mock.Anything).Return(tileResponse("x")).Once()

			gw := New(DefaultConfig(), handler, nil)
			rec := serve(gw, http.MethodGet, "/tiles/osm/1/1/1.png", map[string]string{RequestIDHeader: id})

			got := rec.Header().Get(RequestIDHeader)
			assert.NotEqual(t, id, got)
			_, err := uuid.Parse(got)
			assert.NoError(t, err)
			handler.AssertExpectations(t)
		})
	}
}

func TestGateway_PanicIsOpaque500(t *testing.T) {
	gw := New(DefaultConfig(), panicHandler{}, nil)
	rec := serve(gw, http.MethodGet, "/tiles/osm/1/1/1.png", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error\n", rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(gw.metrics.RecoveredPanics))
}

func TestGateway_NilResponse(t *testing.T) {
	handler := &MockHandler{}
	handler.On("Handle", mock.Anything).Return(nil).Once()

	gw := New(DefaultConfig(), handler, nil)
	rec := serve(gw, http.MethodGet, "/tiles/osm/1/1/1.png", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGateway_PreflightAndMethods(t *testing.T) {
	handler := &MockHandler{}
	gw := New(DefaultConfig(), handler, nil)

	rec := serve(gw, http.MethodOptions, "/tiles/osm/1/1/1.png", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(gw, http.MethodPost, "/tiles/osm/1/1/1.png", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = serve(gw, http.MethodGet, "/other", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(gw, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	handler.AssertNotCalled(t, "Handle", mock.Anything)
}
