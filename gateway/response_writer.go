package gateway

import (
	"errors"
	"io"
	"net/http"

	"tileproxy/logger"
)

// ResponseWriter отвечает за формирование HTTP ответов из TileResponse
type ResponseWriter struct{}

// NewResponseWriter создает новый экземпляр writer'а ответов
func NewResponseWriter() *ResponseWriter {
	return &ResponseWriter{}
}

// WriteResponse записывает TileResponse в http.ResponseWriter
func (rw *ResponseWriter) WriteResponse(w http.ResponseWriter, resp *TileResponse) error {
	logger.Debug("Writing response: status=%d, hasBody=%t, hasError=%t",
		resp.StatusCode, resp.Body != nil, resp.Error != nil)

	// Если есть ошибка, формируем текстовый ответ об ошибке
	if resp.Error != nil {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return rw.writeErrorResponse(w, resp.Error)
	}

	// Копируем заголовки
	for key, values := range resp.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	w.WriteHeader(resp.StatusCode)

	if resp.Body != nil {
		defer resp.Body.Close()
		_, err := io.Copy(w, resp.Body)
		if err != nil {
			logger.Debug("Error writing response body: %v", err)
		}
		return err
	}

	return nil
}

// writeErrorResponse записывает короткое текстовое сообщение без деталей
func (rw *ResponseWriter) writeErrorResponse(w http.ResponseWriter, err error) error {
	status, message := mapError(err)
	logger.Debug("Writing error response: status=%d, cause=%v", status, err)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)

	_, writeErr := io.WriteString(w, message+"\n")
	return writeErr
}

// mapError сопоставляет ошибку с HTTP статусом и публичным сообщением
func mapError(err error) (int, string) {
	var gwErr *Error
	switch {
	case errors.As(err, &gwErr):
		status := gwErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, gwErr.Message
	case errors.Is(err, ErrUnknownProvider):
		return http.StatusBadRequest, "unknown tile provider"
	case errors.Is(err, ErrMalformedPath):
		return http.StatusBadRequest, "invalid tile path"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
