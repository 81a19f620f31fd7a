package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sketchduel/sketchduel-backend/internal"
	"github.com/sketchduel/sketchduel-backend/internal/utils"
)

// Response is the envelope every REST endpoint answers with.
type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_start_time"`
	RespEndTime   int64 `json:"resp_end_time"`
	NetRespTime   int64 `json:"net_resp_time"`
	Data          any   `json:"data"`
}

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.HealthHandler)
	r.HandleFunc("/rooms/{code}", s.GetRoomHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/ws/{code}", s.HandleWebSocket)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"message": "ok"}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[HealthHandler] error encoding response: %v", err)
	}
}

// GetRoomHandler reports whether a room code is joinable, so the
// client can fail fast before opening a socket.
func (s *Server) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()
	code := utils.NormalizeRoomCode(mux.Vars(r)["code"])

	var resp Response
	room, err := s.svc.GetRoom(r.Context(), code)
	switch {
	case err == nil && room.Status == internal.StatusWaiting:
		resp = Response{
			StatusCode:    http.StatusOK,
			RespStartTime: startTime,
			Data:          room,
		}
	case err == nil:
		resp = Response{
			StatusCode:    http.StatusConflict,
			RespStartTime: startTime,
			Data:          "Game already started",
		}
	case errors.Is(err, internal.ErrRoomNotFound):
		resp = Response{
			StatusCode:    http.StatusNotFound,
			RespStartTime: startTime,
			Data:          "No room with that code",
		}
	default:
		log.Printf("[GetRoomHandler] lookup %s: %v", code, err)
		resp = Response{
			StatusCode:    http.StatusInternalServerError,
			RespStartTime: startTime,
			Data:          "Internal server error",
		}
	}

	endTime := time.Now().UnixMilli()
	resp.RespEndTime = endTime
	resp.NetRespTime = endTime - startTime

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[GetRoomHandler] error encoding response: %v", err)
	}
}
