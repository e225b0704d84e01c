package moderation

// Action values returned in Decision.Actions and SpamResult.Action.
const (
	ActionNone    = "none"
	ActionWarn    = "warn"
	ActionDelete  = "delete"
	ActionTimeout = "timeout"
	ActionBan     = "ban"
)

// Request is a single message submitted for moderation. It is the payload of
// both POST /api/v1/moderate/check and the moderation.check NATS subject.
type Request struct {
	Message   string   `json:"message"`
	UserID    string   `json:"user_id"`
	Username  string   `json:"username"`
	Platform  string   `json:"platform"` // discord, twitch, ...
	ChannelID string   `json:"channel_id"`
	UserRoles []string `json:"user_roles,omitempty"`
}

// Decision is the outcome of moderating one message. The enforcement fields
// are advisory: the calling platform adapter performs the actual delete,
// timeout, or ban. Built fresh per call and never mutated afterwards.
type Decision struct {
	ShouldDelete    bool               `json:"should_delete"`
	ShouldTimeout   bool               `json:"should_timeout"`
	ShouldBan       bool               `json:"should_ban"`
	TimeoutDuration int                `json:"timeout_duration"` // seconds
	Violations      []string           `json:"violations"`
	Scores          map[string]float64 `json:"scores"`
	Actions         []string           `json:"actions"`
	Reason          string             `json:"reason,omitempty"`
}
