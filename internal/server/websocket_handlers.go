package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/source"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message types sent to WebSocket clients.
const (
	wsAccepted = "accepted"
	wsStage    = "stage"
	wsResult   = "result"
	wsError    = "error"
)

// WebSocketCropRequest asks for one image to be cropped. Image is base64 in
// JSON.
type WebSocketCropRequest struct {
	Type     string `json:"type"` // "crop"
	Filename string `json:"filename,omitempty"`
	Image    []byte `json:"image,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketCropResponse reports acceptance, each stage reached, and the final
// records or error of a request.
type WebSocketCropResponse struct {
	Type      string            `json:"type"`
	RequestID string            `json:"request_id,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	Progress  float64           `json:"progress"`
	Records   []pipeline.Record `json:"records,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorType string            `json:"error_type,omitempty"`
}

// cropWebSocketHandler handles WebSocket connections that stream stage
// progress while cropping.
func (s *Server) cropWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established",
		"remote_addr", r.RemoteAddr, "request_id", requestIDFrom(r.Context()))

	s.handleWebSocketConnection(r, conn)
}

// handleWebSocketConnection processes messages until the client disconnects.
func (s *Server) handleWebSocketConnection(r *http.Request, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(r, conn, data)
		}
	}
}

// handleWebSocketMessage crops the image of one request message.
func (s *Server) handleWebSocketMessage(r *http.Request, conn WebSocketConnWriter, data []byte) {
	var req WebSocketCropRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.Type != "crop" {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Unsupported request type %q", req.Type))
		return
	}
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, "", "invalid_request", "No image data provided")
		return
	}

	requestID := uuid.NewString()
	name := req.Filename
	if name == "" {
		name = "upload"
	}
	s.sendWebSocketResponse(conn, WebSocketCropResponse{Type: wsAccepted, RequestID: requestID})

	img, err := source.Decode(req.Image)
	if err != nil {
		err = pipeline.NewError(pipeline.ErrUnreadableImage, pipeline.StageLoad, err)
		observeCrop("websocket", nil, err, 0)
		s.sendWebSocketError(conn, requestID, pipeline.KindName(err), err.Error())
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	ctx = pipeline.WithStageFunc(ctx, func(_ string, stage pipeline.Stage) {
		s.sendWebSocketResponse(conn, WebSocketCropResponse{
			Type:      wsStage,
			RequestID: requestID,
			Stage:     stage.String(),
			Progress:  stageProgress(stage),
		})
	})

	start := time.Now()
	res, err := s.pipeline.ProcessImage(ctx, name, img)
	observeCrop("websocket", res, err, time.Since(start))
	if err != nil {
		s.sendWebSocketError(conn, requestID, pipeline.KindName(err), err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketCropResponse{
		Type:      wsResult,
		RequestID: requestID,
		Stage:     pipeline.StageDone.String(),
		Progress:  1.0,
		Records:   pipeline.Records(res, nil, nil),
	})
}

// stageProgress maps a stage to a fraction of the run.
func stageProgress(stage pipeline.Stage) float64 {
	return float64(stage) / float64(pipeline.StageDone)
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketCropResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketCropResponse{
		Type:      wsError,
		RequestID: requestID,
		Error:     message,
		ErrorType: errorType,
	})
}
