package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter mounts the REST API under /api behind auth, plus the public
// health check and leaderboard websocket.
func NewRouter(h *Handler, ws *WSHandler, auth *Authenticator) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws/leaderboard", ws.ServeWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(requestLogger(h.log), requireUser(auth, h.ensure, h.log))

	api.HandleFunc("/daily_challenge", h.dailyChallenge).Methods(http.MethodGet)
	api.HandleFunc("/daily_challenge/submit", h.submitDailyChallenge).Methods(http.MethodPost)
	api.HandleFunc("/bellringer/submit", h.submitBellRinger).Methods(http.MethodPost)
	api.HandleFunc("/dashboard", h.dashboard).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/leaderboard", h.leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/notifications", h.notifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/mark-read", h.markRead).Methods(http.MethodPost)
	api.HandleFunc("/activity-feed", h.activityFeed).Methods(http.MethodGet)
	api.HandleFunc("/quiz/submit", h.submitQuiz).Methods(http.MethodPost)
	api.HandleFunc("/lessons/{id}/complete", h.completeLesson).Methods(http.MethodPost)
	api.HandleFunc("/analytics", h.analytics).Methods(http.MethodGet)
	return r
}
