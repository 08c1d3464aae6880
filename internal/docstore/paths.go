package docstore

// Collection names of the persisted layout.
const (
	Users           = "users"
	DailyChallenges = "daily_challenges"
	Notifications   = "notifications"
	RealTimeFeed    = "real_time_activity"

	// LiveFeedID is the single document holding the shared activity feed.
	LiveFeedID = "live_feed"
)

// LeaderboardCollection addresses leaderboard/global_{period}/{bucket}.
func LeaderboardCollection(periodKey string) string {
	return "leaderboard/" + periodKey
}
