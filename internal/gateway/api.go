// ABOUTME: HTTP API handlers for health, info and the metered tool endpoints
// ABOUTME: Also holds the JSON response helpers shared by every handler

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lautrek/tollgate/internal/auth"
	"github.com/lautrek/tollgate/internal/billing"
	"github.com/lautrek/tollgate/internal/gate"
)

// Reason codes for handler-level errors. Admission failures use the gate's codes.
const (
	reasonBadRequest  gate.Reason = "bad_request"
	reasonConflict    gate.Reason = "conflict"
	reasonRateLimited gate.Reason = "rate_limited"
	reasonUnverified  gate.Reason = "email_not_verified"
	reasonInternal    gate.Reason = "internal_error"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Timestamp   string `json:"timestamp"`
}

// InfoResponse is the JSON response for GET /api/v1/info.
type InfoResponse struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// ToolsStatusResponse is the JSON response for GET /api/v1/tools/status.
type ToolsStatusResponse struct {
	Status string   `json:"status"`
	Tools  []string `json:"tools"`
}

// ExampleToolRequest is the JSON request body for POST /api/v1/tools/example-tool.
type ExampleToolRequest struct {
	Param1 string `json:"param1"`
	Param2 *int   `json:"param2,omitempty"` // defaults to 10
}

// ExampleToolResult is the result section of ExampleToolResponse.
type ExampleToolResult struct {
	Param1    string `json:"param1"`
	Param2    int    `json:"param2"`
	Processed bool   `json:"processed"`
}

// ExampleToolResponse is the JSON response for POST /api/v1/tools/example-tool.
type ExampleToolResponse struct {
	Status string            `json:"status"`
	Result ExampleToolResult `json:"result"`
}

// validationErrorBody reports every failed input rule at once.
type validationErrorBody struct {
	Error   string      `json:"error"`
	Reason  gate.Reason `json:"reason"`
	Details []string    `json:"details"`
}

// handleHealth returns 200 OK while the process is serving.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		Version:     Version,
		Environment: g.config.App.Environment,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (g *Gateway) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Name:        g.config.App.Name,
		Version:     Version,
		Description: g.config.App.Name + " API",
	})
}

func (g *Gateway) handleToolsStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ToolsStatusResponse{
		Status: "ok",
		Tools:  []string{"example-tool"},
	})
}

// handleExampleTool is the placeholder for a product tool. The operation was
// already counted when the gate admitted the request.
func (g *Gateway) handleExampleTool(w http.ResponseWriter, r *http.Request) {
	writeUsageHeaders(w, gate.UsageFromContext(r.Context()))

	var req ExampleToolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, reasonBadRequest, err.Error())
		return
	}
	if req.Param1 == "" {
		g.sendJSONError(w, http.StatusBadRequest, reasonBadRequest, "param1 is required")
		return
	}

	param2 := 10
	if req.Param2 != nil {
		param2 = *req.Param2
	}

	writeJSON(w, http.StatusOK, ExampleToolResponse{
		Status: "success",
		Result: ExampleToolResult{
			Param1:    req.Param1,
			Param2:    param2,
			Processed: true,
		},
	})
}

// handleUsage reports the caller's standing in the current period.
func (g *Gateway) handleUsage(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	stats, err := g.ledger.Stats(r.Context(), id.UserID, id.Tier)
	if err != nil {
		g.internalError(w, "failed to read usage", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeUsageHeaders mirrors the usage snapshot into X-RateLimit-* headers.
func writeUsageHeaders(w http.ResponseWriter, u *billing.Usage) {
	if u == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(u.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(u.Remaining, 10))
	w.Header().Set("X-RateLimit-Period", u.Period)
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, reason gate.Reason, message string) {
	writeJSON(w, status, gate.ErrorBody{Error: message, Reason: reason})
}

// internalError logs err and writes a 500. The error text is only exposed in debug mode.
func (g *Gateway) internalError(w http.ResponseWriter, msg string, err error) {
	g.logger.Error(msg, "error", err)
	body := gate.ErrorBody{Error: "internal error", Reason: reasonInternal}
	if g.config.App.Debug {
		body.Detail = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, body)
}
