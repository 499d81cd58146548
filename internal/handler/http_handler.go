package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/voxmeet/voxmeet/internal/hub"
)

// HTTPHandler exposes the coordinator's small HTTP surface: the websocket
// endpoint, health, and local room occupancy.
type HTTPHandler struct {
	hub *hub.Hub
	ws  *WSHandler
}

func NewHTTPHandler(h *hub.Hub, ws *WSHandler) *HTTPHandler {
	return &HTTPHandler{
		hub: h,
		ws:  ws,
	}
}

// OccupancyResponse is the API response for room occupancy queries.
type OccupancyResponse struct {
	RoomID string `json:"roomId"`
	Count  int    `json:"count"`
}

// GetOccupancy handles GET /api/v1/rooms/{room_id}/occupancy. It reports the
// local fanout membership, not the persisted participant list.
func (h *HTTPHandler) GetOccupancy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := vars["room_id"]

	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}

	response := OccupancyResponse{
		RoomID: roomID,
		Count:  h.hub.RoomCount(roomID),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HealthCheck handles GET /health.
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Router builds the HTTP router.
func (h *HTTPHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.ws.HandleWebSocket)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/rooms/{room_id}/occupancy", h.GetOccupancy).Methods(http.MethodGet)
	return r
}
