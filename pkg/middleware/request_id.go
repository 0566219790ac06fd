package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/autoshots/core/pkg/logger"
)

// RequestIDHeader carries the correlation id in and out
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with an id, echoes it in the response and puts
// a logger carrying it into the request context.
func RequestID(log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := log.WithRequestID(id).ToContext(r.Context())
		next(w, r.WithContext(ctx))
	}
}
