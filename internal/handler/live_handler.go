package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/tanishtirpathi/Playlistr/internal/apperrors"
	"github.com/tanishtirpathi/Playlistr/internal/models"
	"github.com/tanishtirpathi/Playlistr/internal/service"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

// Subscriber streams pub/sub payloads. It is implemented by *cache.Client.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error)
}

type LiveHandler struct {
	playlists  *service.PlaylistService
	subscriber Subscriber
	upgrader   websocket.Upgrader
}

// NewLiveHandler accepts upgrades from the given origins, or from any
// origin when none are configured.
func NewLiveHandler(playlists *service.PlaylistService, subscriber Subscriber, origins []string) *LiveHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &LiveHandler{
		playlists:  playlists,
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// @Summary Live vote counts (WebSocket)
// @Description Sends the current counts, then one message per vote.
// @Tags playlists
// @Produce json
// @Param id path string true "playlist id"
// @Success 101 {object} models.VoteEvent
// @Failure 404 {object} envelope
// @Router /api/playlists/{id}/live [get]
func (h *LiveHandler) Stream(w http.ResponseWriter, r *http.Request) {
	p, err := h.playlists.Get(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	playlistID := p.ID.Hex()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, closeSub, err := h.subscriber.Subscribe(ctx, service.VoteChannel(playlistID))
	if err != nil {
		writeError(w, r, apperrors.Upstream("live updates unavailable", err))
		return
	}
	defer closeSub()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the failure response.
		return
	}
	defer conn.Close()

	// The read loop only services control frames and notices disconnects.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	if err := conn.WriteJSON(models.VoteEvent{PlaylistID: playlistID, Like: p.Like, Dislike: p.Dislike}); err != nil {
		return
	}

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				slog.DebugContext(ctx, "live stream write failed", "playlist_id", playlistID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
