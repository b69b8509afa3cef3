package engagementHandler

import (
	"time"

	"github.com/demonstrikkk/HoneyCatcher/internal/api/engagement"
	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
	"github.com/demonstrikkk/HoneyCatcher/pkg/response"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"
)

var wireJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// handleLiveWebSocket is the protocol router: one read loop per connection,
// dispatching by message kind. Audio work runs in session-owned background
// tasks so the loop returns to reading immediately. All replies go through
// the registry so writes to a connection are serialized.
func (h *EngagementHandler) handleLiveWebSocket(c *websocket.Conn) {
	sessionID := c.Params("session_id")
	role := c.Query("role", "scammer")

	session, err := h.engagementService.BindConnection(sessionID, role, c)
	if err != nil {
		h.log.Warnf("Rejected %s connection for session %s: %v", role, sessionID, err)
		_ = c.WriteJSON(engagement.ErrorMessage{Type: "error", Message: err.Error(), Code: response.CodeOf(err)})
		_ = c.Close()
		return
	}

	h.log.Infof("Live %s connection bound for session %s", role, sessionID)
	defer func() {
		h.engagementService.UnbindConnection(sessionID, role, c)
		h.log.Infof("Live %s connection unbound for session %s", role, sessionID)
	}()

	h.send(sessionID, role, engagement.ConnectedMessage{
		Type:      "connected",
		SessionID: sessionID,
		Role:      role,
		Mode:      string(session.Mode),
	})

	c.SetPingHandler(func(data string) error {
		return c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warnf("Live WebSocket error for session %s: %v", sessionID, err)
			}
			break
		}

		// Raw binary frames are accepted as pre-decoded PCM chunks.
		if messageType == websocket.BinaryMessage {
			if err := h.engagementService.HandleAudioChunk(sessionID, role, message, "pcm"); err != nil {
				h.sendError(sessionID, role, err)
			}
			continue
		}

		var inbound engagement.InboundMessage
		if err := wireJSON.Unmarshal(message, &inbound); err != nil {
			h.send(sessionID, role, engagement.ErrorMessage{Type: "error", Message: "malformed message", Code: "MALFORMED_MESSAGE"})
			continue
		}

		h.dispatch(sessionID, role, inbound)
	}
}

func (h *EngagementHandler) dispatch(sessionID string, role string, msg engagement.InboundMessage) {
	switch msg.Type {
	case engagement.KindAudioChunk:
		payload, err := h.utils.DecodeBase64Audio(msg.Data)
		if err != nil {
			h.send(sessionID, role, engagement.ErrorMessage{Type: "error", Message: "invalid audio encoding", Code: "INVALID_AUDIO"})
			return
		}
		if err := h.utils.ValidateAudioPayload(payload); err != nil {
			h.sendError(sessionID, role, err)
			return
		}
		if err := h.engagementService.HandleAudioChunk(sessionID, role, payload, msg.Format); err != nil {
			h.sendError(sessionID, role, err)
		}

	case engagement.KindModeSwitch:
		ctx, cancel := contextWithTimeout()
		defer cancel()
		if _, err := h.engagementService.SwitchMode(ctx, sessionID, modeFromWire(msg.Mode)); err != nil {
			h.sendError(sessionID, role, err)
		}

	case engagement.KindTextInput:
		if msg.Text == "" {
			h.send(sessionID, role, engagement.ErrorMessage{Type: "error", Message: "text is required", Code: "TEXT_REQUIRED"})
			return
		}
		if err := h.engagementService.HandleTextInput(sessionID, role, msg.Text); err != nil {
			h.sendError(sessionID, role, err)
		}

	case engagement.KindPing:
		h.send(sessionID, role, engagement.PongMessage{Type: "pong"})

	case engagement.KindRequestCoaching:
		if err := h.engagementService.HandleCoachingRequest(sessionID, role); err != nil {
			h.sendError(sessionID, role, err)
		}

	default:
		h.send(sessionID, role, engagement.ErrorMessage{Type: "error", Message: "unknown message type", Code: "UNKNOWN_MESSAGE_TYPE"})
	}
}

func (h *EngagementHandler) send(sessionID string, role string, message interface{}) {
	_ = h.registry.Send(sessionID, role, message)
}

func (h *EngagementHandler) sendError(sessionID string, role string, err error) {
	h.send(sessionID, role, engagement.ErrorMessage{
		Type:    "error",
		Message: err.Error(),
		Code:    response.CodeOf(err),
	})
}

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func modeFromWire(mode string) entity.EngagementMode {
	return entity.EngagementMode(mode)
}
