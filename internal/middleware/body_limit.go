package middleware

import "net/http"

const defaultMaxBodyBytes int64 = 1 << 20

type BodyLimitMiddleware struct {
	maxBytes int64
}

// NewBodyLimitMiddleware caps request bodies at maxBytes. Zero or negative
// selects a 1 MiB cap.
func NewBodyLimitMiddleware(maxBytes int64) *BodyLimitMiddleware {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	return &BodyLimitMiddleware{maxBytes: maxBytes}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > m.maxBytes {
			writeError(w, http.StatusBadRequest, invalidRequestMessage)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, m.maxBytes)
		next.ServeHTTP(w, r)
	})
}
