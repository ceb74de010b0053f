package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/scanprep/internal/pipeline"
	"github.com/MeKo-Tech/scanprep/internal/raster"
	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocket message types.
const (
	wsTypePreprocess = "preprocess"
	wsTypeOCR        = "ocr"
	wsTypeProgress   = "progress"
	wsTypeResult     = "result"
	wsTypeError      = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketRequest asks for one image to be processed. Image holds the
// encoded file and travels as base64 in JSON.
type WebSocketRequest struct {
	Type      string `json:"type"` // "preprocess" or "ocr"
	RequestID string `json:"request_id,omitempty"`
	Image     []byte `json:"image"`
	Filename  string `json:"filename,omitempty"`
	Steps     string `json:"steps,omitempty"`
	Language  string `json:"language,omitempty"`
	Config    string `json:"config,omitempty"`
}

// WebSocketProgress is sent after every applied step.
type WebSocketProgress struct {
	Type       string  `json:"type"`
	RequestID  string  `json:"request_id"`
	Step       string  `json:"step"`
	Index      int     `json:"index"`
	Total      int     `json:"total"`
	DurationMs float64 `json:"duration_ms"`
}

// WebSocketResult carries the PNG-encoded output image.
type WebSocketResult struct {
	Type      string   `json:"type"`
	RequestID string   `json:"request_id"`
	Image     []byte   `json:"image"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Channels  int      `json:"channels"`
	Steps     []string `json:"steps"`
	Text      string   `json:"text,omitempty"`
}

// WebSocketError reports a failed request.
type WebSocketError struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

// WebSocketConnWriter is the part of a connection the handlers write to.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// webSocketHandler upgrades the connection and serves requests until the
// client disconnects.
func (s *Server) webSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket closed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(r, conn, data)
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	}
}

// handleWebSocketMessage processes one request, streaming a progress message
// per step followed by a result or an error.
func (s *Server) handleWebSocketMessage(r *http.Request, conn WebSocketConnWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		sendWebSocket(conn, WebSocketError{Type: wsTypeError, Error: "invalid_request", Message: fmt.Sprintf("Failed to parse request: %v", err)})
		return
	}
	if req.RequestID == "" {
		req.RequestID = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	fail := func(err error) {
		status := statusForError(err)
		sendWebSocket(conn, WebSocketError{Type: wsTypeError, RequestID: req.RequestID, Error: errorCode(status), Message: err.Error()})
	}

	var outputs pipeline.Outputs
	switch req.Type {
	case wsTypePreprocess:
	case wsTypeOCR:
		outputs = pipeline.OutputText
	default:
		fail(raster.Invalidf("websocket", "unsupported request type %q", req.Type))
		return
	}
	if len(req.Image) == 0 {
		fail(raster.Invalidf("websocket", "no image data provided"))
		return
	}

	pl, err := s.requestPipeline(req.Steps)
	if err != nil {
		fail(err)
		return
	}
	img, err := raster.DecodeBytes(req.Image, strings.ToLower(filepath.Ext(req.Filename)))
	if err != nil {
		fail(err)
		return
	}

	progress := pipeline.StepObserverFunc(func(index, total int, name string, elapsed time.Duration, err error) {
		if err != nil {
			return
		}
		sendWebSocket(conn, WebSocketProgress{
			Type:       wsTypeProgress,
			RequestID:  req.RequestID,
			Step:       name,
			Index:      index,
			Total:      total,
			DurationMs: float64(elapsed.Microseconds()) / 1000,
		})
	})

	ctx, cancel := s.requestContext(r)
	defer cancel()
	res, err := pl.WithObservers(progress).ProcessImage(ctx, img, outputs, recognizer.Options{
		Language: req.Language,
		Config:   req.Config,
	})
	if outputs != 0 {
		ocrRequestsTotal.WithLabelValues("websocket", resultLabel(err)).Inc()
	}
	if err != nil {
		fail(err)
		return
	}
	imagesProcessed.WithLabelValues("websocket").Inc()

	var buf bytes.Buffer
	if err := raster.Encode(&buf, res.Image, formatPNG); err != nil {
		fail(err)
		return
	}
	sendWebSocket(conn, WebSocketResult{
		Type:      wsTypeResult,
		RequestID: req.RequestID,
		Image:     buf.Bytes(),
		Width:     res.Width,
		Height:    res.Height,
		Channels:  res.Channels,
		Steps:     res.Steps,
		Text:      res.Text,
	})
}

// sendWebSocket marshals msg and writes it as a text message.
func sendWebSocket(conn WebSocketConnWriter, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
