package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vkuzn/apigw/internal/observability"
	"github.com/vkuzn/apigw/internal/pipeline"
	"github.com/vkuzn/apigw/internal/router"
)

const wsWriteTimeout = 10 * time.Second

// wsHandler upgrades inbound connections and relays JSON messages through
// the matched endpoint's pipeline and dispatcher. The route is resolved
// once at upgrade time; every message on the connection uses it.
type wsHandler struct {
	router   *router.Router
	upgrader websocket.Upgrader
	logger   observability.Logger
}

func newWebSocketHandler(r *router.Router, logger observability.Logger) http.Handler {
	return &wsHandler{
		router: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
}

// wsReply is the envelope written back for each relayed message.
type wsReply struct {
	Body  any    `json:"body,omitempty"`
	Error string `json:"error,omitempty"`
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, params, err := h.router.Resolve("websocket", r.Method, r.URL.Path)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	ep, ok := route.Handler.(*endpoint)
	if !ok {
		writeError(w, http.StatusInternalServerError, errInternalHandler)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake failure.
		h.logger.Warn("websocket upgrade failed",
			observability.String("path", r.URL.Path),
			observability.Error(err),
		)
		return
	}
	defer conn.Close()

	observability.ActiveRequests.WithLabelValues("websocket").Inc()
	defer observability.ActiveRequests.WithLabelValues("websocket").Dec()

	connID := uuid.NewString()
	ctx := observability.ContextWithRequestID(r.Context(), connID)
	logger := h.logger.With(
		observability.String("connection_id", connID),
		observability.String("route", route.Template()),
	)
	logger.Info("websocket connection opened",
		observability.String("remote_addr", r.RemoteAddr),
	)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", observability.Error(err))
			}
			break
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		reply := h.relay(ctx, r, ep, route, params, data, connID)

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)) //nolint:errcheck
		if err := conn.WriteJSON(reply); err != nil {
			logger.Warn("websocket write failed", observability.Error(err))
			break
		}
	}

	logger.Info("websocket connection closed")
}

// relay runs one message through the endpoint's pipeline.
func (h *wsHandler) relay(
	ctx context.Context,
	r *http.Request,
	ep *endpoint,
	route *router.Route,
	params map[string]string,
	data []byte,
	connID string,
) wsReply {
	var payload any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return wsReply{Error: "message is not valid JSON"}
		}
	}

	rctx := pipeline.Context{
		pipeline.KeyRequestID:  uuid.NewString(),
		pipeline.KeyProtocol:   "websocket",
		pipeline.KeyMethod:     r.Method,
		pipeline.KeyRoute:      route.Template(),
		pipeline.KeyClientAddr: clientAddr(r),
		"connection.id":        connID,
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
		return wsReply{Error: err.Error()}
	}
	return wsReply{Body: resp.Body}
}
