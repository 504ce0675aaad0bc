package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/yourusername/realtime-voice-proxy/internal/config"
	"github.com/yourusername/realtime-voice-proxy/internal/logger"
	"github.com/yourusername/realtime-voice-proxy/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// VoiceHandler upgrades a client connection and hands it to a new Session.
type VoiceHandler struct {
	cfg *config.Config
}

// NewVoiceHandler builds a VoiceHandler bound to the process configuration.
func NewVoiceHandler(cfg *config.Config) *VoiceHandler {
	return &VoiceHandler{cfg: cfg}
}

// HandleWebSocket upgrades the request and runs the session to completion on
// this goroutine; the HTTP handler return only happens once the session
// ends.
func (h *VoiceHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("voice-handler")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	log.Info().Str("remote_addr", r.RemoteAddr).Msg("voice session connecting")

	sess := session.New(h.cfg, conn, log, nil)
	sess.Run()
}
