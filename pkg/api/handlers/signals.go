package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/goclaw/dispatch/pkg/api/middleware"
	"github.com/goclaw/dispatch/pkg/api/response"
	"github.com/goclaw/dispatch/pkg/dispatch"
	"github.com/goclaw/dispatch/pkg/logger"
)

const maxSendBody = 1 << 20

// ErrCodeDispatchFailed reports a fail-fast dispatch aborted by a receiver.
const ErrCodeDispatchFailed = "DISPATCH_FAILED"

// SignalHandler exposes a Hub over HTTP.
type SignalHandler struct {
	hub *dispatch.Hub
	log logger.Logger
}

// NewSignalHandler creates a signal handler.
func NewSignalHandler(hub *dispatch.Hub, log logger.Logger) *SignalHandler {
	return &SignalHandler{hub: hub, log: log}
}

// List handles GET /api/v1/signals.
func (h *SignalHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{"signals": h.hub.Stats()})
}

// Get handles GET /api/v1/signals/{name}.
func (h *SignalHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.lookup(r)
	if err != nil {
		response.HandleError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	response.JSON(w, http.StatusOK, s.Stats())
}

// SendRequest is the body of a send call. An empty sender matches only
// receivers connected for any sender.
type SendRequest struct {
	Sender string         `json:"sender,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
}

// ReceiverResult is one receiver's outcome.
type ReceiverResult struct {
	Receiver string `json:"receiver"`
	Value    any    `json:"value,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SendResponse is the body returned by a completed dispatch.
type SendResponse struct {
	Signal    string           `json:"signal"`
	Mode      string           `json:"mode"`
	Responses []ReceiverResult `json:"responses"`
	Failures  int              `json:"failures"`
}

// Send handles POST /api/v1/signals/{name}/send?mode=.
func (h *SignalHandler) Send(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	s, err := h.lookup(r)
	if err != nil {
		response.HandleError(w, err, requestID)
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "send_robust"
	}

	var req SendRequest
	body := http.MaxBytesReader(w, r.Body, maxSendBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.HandleError(w, fmt.Errorf("%w: %v", response.ErrInvalidInput, err), requestID)
		return
	}

	var sender any
	if req.Sender != "" {
		sender = req.Sender
	}
	args := dispatch.Args(req.Args)
	ctx := r.Context()

	var responses dispatch.Responses
	switch mode {
	case "send":
		responses, err = s.Send(ctx, sender, args)
	case "send_robust":
		responses = s.SendRobust(ctx, sender, args)
	case "send_async":
		responses, err = s.SendAsync(ctx, sender, args).Await(ctx)
	case "send_robust_async":
		responses, err = s.SendRobustAsync(ctx, sender, args).Await(ctx)
	default:
		response.HandleError(w, fmt.Errorf("%w: unknown mode %q", response.ErrInvalidInput, mode), requestID)
		return
	}

	if err != nil {
		var re *dispatch.ReceiverError
		if !errors.As(err, &re) {
			response.HandleError(w, err, requestID)
			return
		}
		h.log.WarnContext(ctx, "dispatch aborted", "signal", s.Name(), "mode", mode, "error", err)
		response.ErrorWithDetails(w, http.StatusInternalServerError, ErrCodeDispatchFailed, re.Err.Error(),
			map[string]any{"signal": s.Name(), "mode": mode, "receiver": dispatch.Describe(re.Receiver)},
			requestID)
		return
	}

	response.JSON(w, http.StatusOK, SendResponse{
		Signal:    s.Name(),
		Mode:      mode,
		Responses: results(responses),
		Failures:  responses.Failures(),
	})
}

func (h *SignalHandler) lookup(r *http.Request) (*dispatch.Signal, error) {
	name := chi.URLParam(r, "name")
	s, ok := h.hub.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("signal %q: %w", name, response.ErrNotFound)
	}
	return s, nil
}

func results(responses dispatch.Responses) []ReceiverResult {
	out := make([]ReceiverResult, 0, len(responses))
	for _, resp := range responses {
		res := ReceiverResult{Receiver: dispatch.Describe(resp.Receiver)}
		if resp.Err != nil {
			res.Error = resp.Err.Error()
		} else {
			res.Value = encodable(resp.Value)
		}
		out = append(out, res)
	}
	return out
}

// encodable falls back to the value's string form when it cannot be
// marshalled, so one odd receiver value does not break the response.
func encodable(v any) any {
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprint(v)
	}
	return v
}
