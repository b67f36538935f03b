package middleware

import (
	"net/http"

	"github.com/PhilTenno/filesyncgo/internal/httputil"
)

const invalidRequestMessage = "Invalid request."

func writeError(w http.ResponseWriter, status int, message string) {
	httputil.WriteError(w, status, message)
}
