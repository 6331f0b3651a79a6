package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/session"
	ws "github.com/stemsi/mocktest-backend/internal/websocket"
)

const (
	maxMessageSize = 4096
	outboxSize     = 16
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live attempt events and accepts intents over a socket.
type WSHandler struct {
	examService *service.ExamService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(examService *service.ExamService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		examService: examService,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream?token=
// Pushes state, tick, expired and submitted events and accepts the same
// intents as the REST attempt endpoints.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	attemptID := middleware.GetAttemptID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	wsLog := h.log.With().Str("attempt_id", attemptID.String()).Logger()

	events, unsubscribe, snap, err := h.examService.Subscribe(ctx, attemptID)
	if err != nil {
		_, code := classify(err)
		ws.WriteError(conn, string(code), response.GetMessage(code))
		return
	}
	defer unsubscribe()

	wsLog.Info().Msg("Candidate connected")

	out := make(chan ws.Message, outboxSize)
	writerDone := make(chan struct{})
	go h.writeLoop(conn, events, out, writerDone, wsLog)

	send := func(m ws.Message) {
		select {
		case out <- m:
		case <-writerDone:
		}
	}
	send(ws.Message{Event: ws.EventState, Data: snap})

	ws.PrepareRead(conn, maxMessageSize)
	for {
		req, err := ws.ReadRequest(conn)
		if errors.Is(err, ws.ErrMalformed) {
			send(errorMessage(response.ErrInvalidPayload))
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		if m, ok := h.dispatch(ctx, attemptID, req); ok {
			send(m)
		}
	}

	close(out)
	<-writerDone
}

// dispatch applies one intent. State changes reach the client through the
// session's event stream; the returned message is only for direct replies.
func (h *WSHandler) dispatch(ctx context.Context, attemptID uuid.UUID, req ws.Request) (ws.Message, bool) {
	var err error
	switch req.Action {
	case ws.ActionPing:
		return ws.Message{Event: ws.EventPong}, true
	case ws.ActionNavigate:
		if req.Index == nil {
			return errorMessage(response.ErrInvalidPayload), true
		}
		_, err = h.examService.Navigate(ctx, attemptID, *req.Index)
	case ws.ActionStage:
		_, err = h.examService.Stage(ctx, attemptID, req.Option)
	case ws.ActionCommit:
		_, err = h.examService.Commit(ctx, attemptID)
	case ws.ActionMark:
		_, err = h.examService.Mark(ctx, attemptID)
	case ws.ActionClear:
		_, err = h.examService.Clear(ctx, attemptID)
	case ws.ActionZoom:
		_, err = h.examService.Zoom(ctx, attemptID, req.Level)
	case ws.ActionSubmit:
		if _, err = h.examService.Submit(ctx, attemptID); err != nil {
			status, code := classify(err)
			if status == http.StatusInternalServerError {
				h.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Submit failed")
				code = response.ErrSubmitFailed
			}
			return errorMessage(code), true
		}
	default:
		return errorMessage(response.ErrInvalidPayload), true
	}

	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("action", string(req.Action)).Msg("Intent failed")
		}
		return errorMessage(code), true
	}
	return ws.Message{}, false
}

// writeLoop is the only writer on conn. It returns, closing conn, when the
// session closes the event stream or the reader closes out.
func (h *WSHandler) writeLoop(conn *websocket.Conn, events <-chan session.Event, out <-chan ws.Message, done chan<- struct{}, wsLog zerolog.Logger) {
	defer close(done)
	defer conn.Close()

	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(time.Second))
				return
			}
			if err := ws.WriteJSON(conn, ws.Event(e.Type), e.Payload); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed")
				return
			}
		case m, ok := <-out:
			if !ok {
				return
			}
			if err := ws.WriteJSON(conn, m.Event, m.Data); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-ticker.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		}
	}
}

func errorMessage(code response.ErrCode) ws.Message {
	return ws.Message{
		Event: ws.EventError,
		Data:  ws.ErrorData{Code: string(code), Message: response.GetMessage(code)},
	}
}
