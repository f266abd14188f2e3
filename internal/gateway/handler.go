package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/vkuzn/apigw/internal/dispatch"
	"github.com/vkuzn/apigw/internal/observability"
	"github.com/vkuzn/apigw/internal/pipeline"
	"github.com/vkuzn/apigw/internal/router"
)

const healthPath = "/health"

var errInternalHandler = errors.New("internal error")

// httpHandler adapts inbound HTTP requests onto the router and pipeline.
type httpHandler struct {
	router          *router.Router
	maxRequestBytes int64
	logger          observability.Logger
}

func newHTTPHandler(r *router.Router, maxRequestBytes int64, logger observability.Logger) http.Handler {
	return &httpHandler{
		router:          r,
		maxRequestBytes: maxRequestBytes,
		logger:          logger,
	}
}

func (h *httpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == healthPath {
		w.WriteHeader(http.StatusOK)
		return
	}

	observability.ActiveRequests.WithLabelValues("rest").Inc()
	defer observability.ActiveRequests.WithLabelValues("rest").Dec()

	requestID := uuid.NewString()
	ctx := observability.ContextWithRequestID(r.Context(), requestID)
	w.Header().Set("X-Request-ID", requestID)

	route, params, err := h.router.Resolve("rest", r.Method, r.URL.Path)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	payload, err := h.readPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ep, ok := route.Handler.(*endpoint)
	if !ok {
		h.logger.Error("route bound to unexpected handler type",
			observability.String("route", route.Template()),
		)
		writeError(w, http.StatusInternalServerError, errInternalHandler)
		return
	}

	rctx := pipeline.Context{
		pipeline.KeyRequestID:  requestID,
		pipeline.KeyProtocol:   "rest",
		pipeline.KeyMethod:     r.Method,
		pipeline.KeyRoute:      route.Template(),
		pipeline.KeyClientAddr: clientAddr(r),
	}
	for name, value := range params {
		rctx["param."+name] = value
	}

	req := &pipeline.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Params: params,
		Header: r.Header,
		Body:   payload,
	}

	resp, err := ep.chain.Execute(ctx, req, rctx, func(ctx context.Context) (*pipeline.Response, error) {
		body, err := ep.Dispatch(ctx, payload)
		if err != nil {
			return nil, err
		}
		return &pipeline.Response{Status: http.StatusOK, Body: body}, nil
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, resp.Status, resp.Body)
}

// readPayload decodes the request body as a generic JSON value. GET
// requests and empty bodies yield nil.
func (h *httpHandler) readPayload(r *http.Request) (any, error) {
	if r.Method == http.MethodGet || r.Body == nil {
		return nil, nil
	}

	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, h.maxRequestBytes))
	if err != nil {
		return nil, errors.New("failed to read request body")
	}
	if len(data) == 0 {
		return nil, nil
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.New("request body is not valid JSON")
	}
	return payload, nil
}

// statusFor maps a pipeline, routing, or dispatch error to its HTTP status.
func statusFor(err error) int {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Status
	}

	switch {
	case errors.Is(err, router.ErrNotFound),
		errors.Is(err, router.ErrProtocolMismatch):
		return http.StatusNotFound
	case errors.Is(err, router.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, dispatch.ErrAllBackendsExhausted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	json.NewEncoder(w).Encode(body) //nolint:errcheck // headers already sent
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// clientAddr extracts the client host from the remote address.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
