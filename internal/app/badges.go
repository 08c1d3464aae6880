package app

import (
	"context"
	"errors"
	"time"

	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/logger"
)

const recentUnlocksKept = 10

var errBadgeHeld = errors.New("badge already earned")

// BadgeEngine evaluates the badge catalog against a user and pays out new
// badges exactly once.
type BadgeEngine struct {
	users    *Users
	catalog  []domain.Badge
	notifier *Notifier
	feed     *ActivityFeed
	log      *logger.Logger
	now      func() time.Time
}

func NewBadgeEngine(users *Users, catalog []domain.Badge, notifier *Notifier, feed *ActivityFeed, log *logger.Logger, now func() time.Time) *BadgeEngine {
	return &BadgeEngine{
		users:    users,
		catalog:  catalog,
		notifier: notifier,
		feed:     feed,
		log:      logger.OrNop(log),
		now:      clockOrNow(now),
	}
}

// Check awards every badge the user newly qualifies for and returns them.
// Each award re-checks membership inside its own atomic update, so repeated
// or concurrent checks never pay a badge twice.
func (e *BadgeEngine) Check(ctx context.Context, uid string, actx domain.AchievementContext) ([]domain.Badge, error) {
	u, err := e.users.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	var awarded []domain.Badge
	for _, badge := range e.catalog {
		if u.HasBadge(badge.ID) || !badge.Criterion.Satisfied(u, actx) {
			continue
		}
		updated, err := e.award(ctx, uid, badge, actx)
		if errors.Is(err, errBadgeHeld) {
			continue
		}
		if err != nil {
			return awarded, err
		}
		u = updated
		awarded = append(awarded, badge)
		e.log.Info("badge awarded", "user", uid, "badge", badge.ID, "criterion", badge.Criterion.Type())
		e.announce(ctx, u, badge)
	}
	return awarded, nil
}

func (e *BadgeEngine) award(ctx context.Context, uid string, badge domain.Badge, actx domain.AchievementContext) (domain.User, error) {
	return e.users.Mutate(ctx, uid, func(u *domain.User) error {
		if u.HasBadge(badge.ID) || !badge.Criterion.Satisfied(*u, actx) {
			return errBadgeHeld
		}
		a := &u.Achievements
		a.BadgesEarned = append(a.BadgesEarned, badge.ID)
		a.RecentUnlocks = append(a.RecentUnlocks, domain.BadgeUnlock{BadgeID: badge.ID, UnlockedAt: e.now()})
		if n := len(a.RecentUnlocks); n > recentUnlocksKept {
			a.RecentUnlocks = a.RecentUnlocks[n-recentUnlocksKept:]
		}
		u.Stats.TotalPoints += badge.Rewards.Points
		u.Stats.Pycoins += badge.Rewards.Pycoins
		u.Stats.CurrentXP += badge.Rewards.XP
		applyLevel(u)
		return nil
	})
}

// announce is best effort; failures are logged only.
func (e *BadgeEngine) announce(ctx context.Context, u domain.User, badge domain.Badge) {
	if e.notifier != nil {
		if _, err := e.notifier.Send(ctx, u.ID, "achievement_unlocked", map[string]any{"badge_name": badge.Name}); err != nil {
			e.log.Warn("badge notification failed", "user", u.ID, "badge", badge.ID, "error", err)
		}
	}
	if e.feed != nil {
		if _, err := e.feed.Log(ctx, Activity{
			UserID:      u.ID,
			UserName:    u.Profile.Name,
			Type:        "achievement_unlocked",
			Points:      badge.Rewards.Points,
			Celebration: "exciting",
			Vars:        map[string]any{"achievement_name": badge.Name, "badge_id": badge.ID, "criterion": badge.Criterion.Type()},
		}); err != nil {
			e.log.Warn("badge activity failed", "user", u.ID, "badge", badge.ID, "error", err)
		}
	}
}
