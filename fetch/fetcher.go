package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"tileproxy/gateway"
	"tileproxy/logger"
	"tileproxy/upstream"
)

// Fetcher реализует интерфейс routing.Fetcher поверх net/http
type Fetcher struct {
	config   Config
	client   *http.Client
	reporter upstream.Reporter
	archiver Archiver
}

// NewFetcher создает новый экземпляр Fetcher. reporter и archiver могут быть nil.
func NewFetcher(cfg *Config, reporter upstream.Reporter, archiver Archiver) *Fetcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost

	return &Fetcher{
		config: *cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			// Редиректы не выполняются: 3xx возвращается как есть и превращается в 502
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		reporter: reporter,
		archiver: archiver,
	}
}

// FetchTile выполняет ровно один GET без повторов и без перехода по редиректам
func (f *Fetcher) FetchTile(ctx context.Context, req *gateway.TileRequest, upstreamURL string) *gateway.TileResponse {
	provider := req.Provider.String()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		logger.Error("Failed to build upstream request for %s: %v", provider, err)
		return gateway.ErrorResponse(http.StatusInternalServerError, "internal server error", err)
	}
	httpReq.Header.Set("User-Agent", f.config.UserAgent)
	httpReq.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		status := classifyTransportError(err)
		logger.Warn("Upstream %s request failed after %v (request %s): %v",
			provider, time.Since(start), req.RequestID, err)
		f.reportFailure(&upstream.Result{
			UpstreamID: provider,
			Err:        err,
			Duration:   time.Since(start),
		})
		if status == http.StatusGatewayTimeout {
			return gateway.ErrorResponse(status, "upstream timeout", err)
		}
		return gateway.ErrorResponse(status, "upstream unavailable", err)
	}

	// Тайлом считается только 200: 204/206 не должны кешироваться как полный тайл
	if resp.StatusCode != http.StatusOK {
		// Тело ошибки апстрима клиенту не передается
		n, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()

		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: upstreamURL}
		f.reportFailure(&upstream.Result{
			UpstreamID: provider,
			StatusCode: resp.StatusCode,
			Err:        statusErr,
			Duration:   time.Since(start),
			BytesRead:  n,
		})

		status := resp.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		logger.Debug("Upstream %s answered %d, returning %d (request %s)",
			provider, resp.StatusCode, status, req.RequestID)
		return gateway.ErrorResponse(status, fmt.Sprintf("upstream error %d", resp.StatusCode), statusErr)
	}

	contentType := resp.Header.Get("Content-Type")
	headers := gateway.SuccessHeaders(contentType)
	if resp.ContentLength >= 0 {
		headers.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}

	var body io.ReadCloser = &bytesCountingReader{
		reader: resp.Body,
		onClose: func(totalRead int64, readErr error) {
			result := &upstream.Result{
				UpstreamID: provider,
				StatusCode: resp.StatusCode,
				Duration:   time.Since(start),
				BytesRead:  totalRead,
			}
			if readErr != nil {
				result.Err = readErr
				f.reportFailure(result)
				return
			}
			f.reportSuccess(result)
		},
	}
	if f.archiver != nil {
		body = f.archiver.Capture(req, headers.Get("Content-Type"), body)
	}

	return &gateway.TileResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       body,
	}
}

func (f *Fetcher) reportSuccess(result *upstream.Result) {
	if f.reporter != nil {
		f.reporter.ReportSuccess(result)
	}
}

func (f *Fetcher) reportFailure(result *upstream.Result) {
	if f.reporter != nil {
		f.reporter.ReportFailure(result)
	}
}

// classifyTransportError: таймаут -> 504, прочие сетевые ошибки -> 502
func classifyTransportError(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// bytesCountingReader считает прочитанные байты и сообщает итог при закрытии
type bytesCountingReader struct {
	reader    io.ReadCloser
	totalRead int64
	readErr   error
	onClose   func(totalRead int64, readErr error)
	closed    bool
}

func (b *bytesCountingReader) Read(p []byte) (n int, err error) {
	n, err = b.reader.Read(p)
	b.totalRead += int64(n)
	if err != nil && err != io.EOF {
		b.readErr = err
	}
	return n, err
}

func (b *bytesCountingReader) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.onClose != nil {
		b.onClose(b.totalRead, b.readErr)
	}
	return b.reader.Close()
}
