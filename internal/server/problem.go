package server

import (
	"encoding/json"
	"net/http"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound           = "https://wolgate.dev/problems/not-found"
	ProblemTypeBadRequest         = "https://wolgate.dev/problems/bad-request"
	ProblemTypeInternal           = "https://wolgate.dev/problems/internal-error"
	ProblemTypeRateLimited        = "https://wolgate.dev/problems/rate-limited"
	ProblemTypeMethodNotAllowed   = "https://wolgate.dev/problems/method-not-allowed"
	ProblemTypeBadGateway         = "https://wolgate.dev/problems/bad-gateway"
	ProblemTypeServiceUnavailable = "https://wolgate.dev/problems/service-unavailable"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeStatus(w http.ResponseWriter, status int, problemType, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     problemType,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, detail, instance string) {
	writeStatus(w, http.StatusNotFound, ProblemTypeNotFound, detail, instance)
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	writeStatus(w, http.StatusBadRequest, ProblemTypeBadRequest, detail, instance)
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	writeStatus(w, http.StatusInternalServerError, ProblemTypeInternal, detail, instance)
}

// RateLimited writes a 429 problem response.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	writeStatus(w, http.StatusTooManyRequests, ProblemTypeRateLimited, detail, instance)
}

// MethodNotAllowed writes a 405 problem response. Callers set the Allow header.
func MethodNotAllowed(w http.ResponseWriter, detail, instance string) {
	writeStatus(w, http.StatusMethodNotAllowed, ProblemTypeMethodNotAllowed, detail, instance)
}

// BadGateway writes a 502 problem response for failures of the network
// below the gateway (packet transmission, ARP scans).
func BadGateway(w http.ResponseWriter, detail, instance string) {
	writeStatus(w, http.StatusBadGateway, ProblemTypeBadGateway, detail, instance)
}

// ServiceUnavailable writes a 503 problem response.
func ServiceUnavailable(w http.ResponseWriter, detail, instance string) {
	writeStatus(w, http.StatusServiceUnavailable, ProblemTypeServiceUnavailable, detail, instance)
}
