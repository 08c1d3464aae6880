package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"pyquest-gamification/internal/app"
	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/logger"
)

const (
	defaultLeaderboardLimit = 10
	maxListLimit            = 100
	defaultNotesLimit       = 20
	defaultFeedLimit        = 10
)

// Handler serves the REST API on top of app.Service.
type Handler struct {
	service  *app.Service
	validate *validator.Validate
	log      *logger.Logger
	now      func() time.Time
}

func NewHandler(service *app.Service, log *logger.Logger, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{service: service, validate: newValidator(), log: logger.OrNop(log), now: now}
}

// bind decodes a JSON body into dst and validates its tags.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func (h *Handler) ensure(ctx context.Context, id Identity) error {
	_, err := h.service.EnsureUser(ctx, id.UserID, id.Profile)
	return err
}

// fail writes err as an envelope; 5xx errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	failure(w, status, msg)
}

type submitAnswerRequest struct {
	Answer           string `json:"answer" validate:"notblank,max=500"`
	TimeTakenSeconds int    `json:"time_taken_seconds" validate:"gte=0"`
	HintsUsed        int    `json:"hints_used" validate:"gte=0"`
}

func (h *Handler) submitDailyChallenge(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	var req submitAnswerRequest
	if err := h.bind(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.service.SubmitDailyChallenge(r.Context(), uid, app.Answer{
		Answer:           req.Answer,
		TimeTakenSeconds: req.TimeTakenSeconds,
		HintsUsed:        req.HintsUsed,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, out)
}

type submitCodeRequest struct {
	Code        string `json:"code" validate:"notblank,max=20000"`
	ChallengeID string `json:"challenge_id" validate:"omitempty,max=64"`
}

type codeResponse struct {
	Awarded         bool             `json:"awarded"`
	Partial         bool             `json:"partial"`
	Points          int              `json:"points"`
	Tokens          int              `json:"tokens"`
	Passed          int              `json:"passed"`
	Total           int              `json:"total"`
	Cases           []app.CaseResult `json:"cases"`
	NewAchievements []string         `json:"new_achievements"`
	Rank            int              `json:"rank,omitempty"`
}

func (h *Handler) submitBellRinger(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	var req submitCodeRequest
	if err := h.bind(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.service.SubmitCodingChallenge(r.Context(), uid, req.ChallengeID, req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, codeResponse{
		Awarded:         out.Awarded,
		Partial:         out.Partial,
		Points:          out.Rewards.Points,
		Tokens:          out.Rewards.Tokens,
		Passed:          out.Passed,
		Total:           out.Total,
		Cases:           out.Cases,
		NewAchievements: out.NewAchievements,
		Rank:            out.Rank,
	})
}

func (h *Handler) dailyChallenge(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	view, err := h.service.Challenges.View(r.Context(), h.service.Challenges.Today(), uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, view)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	d, err := h.service.Dashboard(r.Context(), uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, d)
}

type leaderboardResponse struct {
	Period    app.Period                `json:"period"`
	PeriodKey string                    `json:"period_key"`
	Entries   []domain.LeaderboardEntry `json:"entries"`
	UserRank  *domain.LeaderboardEntry  `json:"user_rank,omitempty"`
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	period, err := app.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", defaultLeaderboardLimit, maxListLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.now()
	entries, err := h.service.Leaderboard.Top(r.Context(), period, now, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := leaderboardResponse{Period: period, PeriodKey: app.PeriodKey(period, now), Entries: entries}
	entry, ok, err := h.service.Leaderboard.UserRank(r.Context(), period, now, uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ok {
		resp.UserRank = &entry
	}
	success(w, resp)
}

type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	limit, err := intParam(r, "limit", defaultNotesLimit, maxListLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	notes, err := h.service.Notifier.List(r.Context(), uid, boolParam(r, "unread_only"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	unread, err := h.service.Notifier.UnreadCount(r.Context(), uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if notes == nil {
		notes = []domain.Notification{}
	}
	success(w, notificationsResponse{Notifications: notes, UnreadCount: unread})
}

type markReadRequest struct {
	NotificationIDs []string `json:"notification_ids" validate:"required,min=1,dive,required"`
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	var req markReadRequest
	if err := h.bind(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.service.Notifier.MarkRead(r.Context(), uid, req.NotificationIDs...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, map[string]int{"marked": n})
}

func (h *Handler) activityFeed(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultFeedLimit, maxListLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.service.Feed.Recent(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []domain.ActivityItem{}
	}
	success(w, items)
}

type quizRequest struct {
	LessonID string  `json:"lesson_id" validate:"required_without=QuizID"`
	QuizID   string  `json:"quiz_id" validate:"required_without=LessonID"`
	Topic    string  `json:"topic"`
	Score    float64 `json:"score" validate:"gte=0"`
	MaxScore float64 `json:"max_score" validate:"gte=0"`
}

func (h *Handler) submitQuiz(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	var req quizRequest
	if err := h.bind(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.service.RecordQuiz(r.Context(), uid, app.QuizResult{
		LessonID: req.LessonID,
		QuizID:   req.QuizID,
		Topic:    req.Topic,
		Score:    req.Score,
		MaxScore: req.MaxScore,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, out)
}

func (h *Handler) completeLesson(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	lessonID := mux.Vars(r)["id"]
	out, err := h.service.CompleteLesson(r.Context(), uid, lessonID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, out)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserID(r.Context())
	ins, err := h.service.Progress.Insights(r.Context(), uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, ins)
}
