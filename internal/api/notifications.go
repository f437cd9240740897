package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"builderscentral/internal/middleware"
	"builderscentral/internal/store"
	"builderscentral/internal/util"
)

func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.Profile(r.Context())
	page, pageSize := parsePagination(r)
	items, unread, err := h.svc.ListNotifications(r.Context(), p.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]any{
		"items":        items,
		"unread_count": unread,
		"page":         page,
		"page_size":    pageSize,
	})
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.Profile(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.svc.MarkNotificationRead(r.Context(), id, p.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.WriteErrorCtx(w, r.Context(), 404, "not_found", "notification not found")
			return
		}
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]string{"status": "ok"})
}

func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.Profile(r.Context())
	if err := h.svc.MarkAllNotificationsRead(r.Context(), p.ID); err != nil {
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]string{"status": "ok"})
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Session cookie + Authn already gate this endpoint; cross-origin
	// browsers cannot read the cookie in the first place.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamNotifications pushes the caller's notifications over a websocket
// as they are published. The stream carries only events created after the
// connect; the list endpoint is the backfill.
func (h *Handlers) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.Profile(r.Context())
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := h.svc.Hub().Subscribe(p.ID)
	defer cancel()

	// Drain the read side so close frames and pongs are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case n := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(n); err != nil {
				log.Printf("notification stream write failed recipient=%s err=%v", p.ID, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
