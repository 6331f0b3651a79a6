package websocket

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ErrMalformed wraps frames that are not a valid Request.
var ErrMalformed = errors.New("malformed request")

// PingPeriod is how often the server pings an idle connection.
const PingPeriod = pingPeriod

// WriteJSON sends a single event frame over the WebSocket.
func WriteJSON(conn *websocket.Conn, event Event, data any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(Message{Event: event, Data: data})
}

// WriteError sends an EventError frame.
func WriteError(conn *websocket.Conn, code, message string) error {
	return WriteJSON(conn, EventError, ErrorData{Code: code, Message: message})
}

// WritePing sends a control ping.
func WritePing(conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// PrepareRead installs the read deadline and a pong handler that extends it.
func PrepareRead(conn *websocket.Conn, maxMessageSize int64) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// ReadRequest reads and decodes one client intent, extending the read deadline.
func ReadRequest(conn *websocket.Conn) (Request, error) {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return Request{}, err
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	req, err := DecodeRequest(raw)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return req, nil
}
