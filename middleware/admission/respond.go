package admission

import (
	"encoding/json"
	"net/http"
	"time"

	"admission-gateway/middleware/admission/domain"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// WriteError escreve a resposta de erro estruturada {code, message, timestamp}
// (timestamp em epoch-millis). Se a serialização falhar, degrada para corpo
// vazio com o mesmo status em vez de derrubar o pipeline.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(errorBody{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		w.WriteHeader(status)
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeRejection(w http.ResponseWriter, rej *domain.Rejection) {
	if rej.Status == http.StatusTooManyRequests {
		w.Header().Set("X-RateLimit-Retry-After", "1")
	}
	WriteError(w, rej.Status, rej.Code, rej.Message)
}
