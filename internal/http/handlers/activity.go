package handlers

import (
	"github.com/gin-gonic/gin"

	calendarrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/calendar"
	gamrepo "github.com/learnsphere/learnsphere-backend/internal/data/repos/gamification"
	"github.com/learnsphere/learnsphere-backend/internal/http/response"
	"github.com/learnsphere/learnsphere-backend/internal/platform/dbctx"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
)

// ActivityHandler serves the learner's own activity feeds: leaderboard
// points, earned badges, and calendar events.
type ActivityHandler struct {
	log         *logger.Logger
	leaderboard gamrepo.LeaderboardRepo
	badges      gamrepo.BadgeActivityRepo
	calendar    calendarrepo.CalendarRepo
}

func NewActivityHandler(
	log *logger.Logger,
	leaderboard gamrepo.LeaderboardRepo,
	badges gamrepo.BadgeActivityRepo,
	calendar calendarrepo.CalendarRepo,
) *ActivityHandler {
	return &ActivityHandler{
		log:         log.With("handler", "ActivityHandler"),
		leaderboard: leaderboard,
		badges:      badges,
		calendar:    calendar,
	}
}

func (h *ActivityHandler) ListLeaderboard(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	rows, err := h.leaderboard.ListByUser(dbctx.Context{Ctx: c.Request.Context(), Tx: db}, rd.UserID)
	if err != nil {
		h.log.Error("ListLeaderboard failed", "error", err, "user_id", rd.UserID)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"activities": rows})
}

func (h *ActivityHandler) ListBadges(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	rows, err := h.badges.ListByUser(dbctx.Context{Ctx: c.Request.Context(), Tx: db}, rd.UserID)
	if err != nil {
		h.log.Error("ListBadges failed", "error", err, "user_id", rd.UserID)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"badges": rows})
}

func (h *ActivityHandler) ListCalendar(c *gin.Context) {
	rd, db, ok := caller(c)
	if !ok {
		return
	}
	rows, err := h.calendar.ListByUser(dbctx.Context{Ctx: c.Request.Context(), Tx: db}, rd.UserID)
	if err != nil {
		h.log.Error("ListCalendar failed", "error", err, "user_id", rd.UserID)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"events": rows})
}
