package middleware

import (
	"net/http"
	"strings"
)

// IsSecure reports whether the request arrived over TLS. X-Forwarded-Proto
// is honoured only when the server sits behind a trusted proxy.
func IsSecure(r *http.Request, trustProxy bool) bool {
	if r.TLS != nil {
		return true
	}
	if !trustProxy {
		return false
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i >= 0 {
		proto = proto[:i]
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

type SecureTransportMiddleware struct {
	trustProxy bool
}

func NewSecureTransportMiddleware(trustProxy bool) *SecureTransportMiddleware {
	return &SecureTransportMiddleware{trustProxy: trustProxy}
}

func (m *SecureTransportMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsSecure(r, m.trustProxy) {
			writeError(w, http.StatusBadRequest, invalidRequestMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}
