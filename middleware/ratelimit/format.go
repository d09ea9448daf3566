package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

const tooManyRequestsBody = `{"error":"Too Many Requests"}`

type errorBody struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if status == http.StatusTooManyRequests {
		_, _ = w.Write([]byte(tooManyRequestsBody))
		return
	}
	_ = json.NewEncoder(w).Encode(errorBody{Error: http.StatusText(status)})
}

// retryAfterSeconds arredonda para cima, mínimo 1.
func retryAfterSeconds(d time.Duration) string {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return strconv.Itoa(s)
}
