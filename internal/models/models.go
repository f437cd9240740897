package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type AppStatus string

const (
	AppPending         AppStatus = "pending"
	AppReviewRequested AppStatus = "review_requested"
	AppApproved        AppStatus = "approved"
	AppRejected        AppStatus = "rejected"
)

// Notification types. New-user and new-app fan out to every admin;
// the rest address a single profile.
const (
	NotifyNewUser   = "new_user"
	NotifyNewApp    = "new_app"
	NotifyApproval  = "approval"
	NotifyRejection = "rejection"
	NotifySuccess   = "success"
	NotifyStar      = "star"
	NotifyComment   = "comment"
)

// Profile is the durable record for one signed-in principal. The id is the
// identity provider's subject id; email-based migration can rewrite it in
// place (see service.Bootstrap).
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Handle      string    `json:"handle"`
	Role        Role      `json:"role"`
	Approved    bool      `json:"approved"`
	PublicEmail bool      `json:"public_email"`
	CreatedAt   time.Time `json:"created_at"`
}

type Notification struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Read          bool      `json:"read"`
	ApplicationID *string   `json:"application_id,omitempty"`
	ActionUserID  *string   `json:"action_user_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Application struct {
	ID          string     `json:"id"`
	CreatorID   string     `json:"creator_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Status      AppStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
}

type Comment struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	UserID        string    `json:"user_id"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"`
}

// LeaderboardEntry aggregates admin ratings for one application.
type LeaderboardEntry struct {
	ApplicationID string  `json:"application_id"`
	Title         string  `json:"title"`
	CreatorHandle string  `json:"creator_handle"`
	RatingCount   int     `json:"rating_count"`
	RatingTotal   int     `json:"rating_total"`
	RatingAvg     float64 `json:"rating_avg"`
	StarCount     int     `json:"star_count"`
}

type Session struct {
	ID            string
	ProfileID     string
	TokenHash     string
	IPHint        string
	UserAgentHash string
	ExpiresAt     time.Time
	IdleExpiresAt time.Time
	CreatedAt     time.Time
	LastSeenAt    time.Time
	RevokedAt     *time.Time
}

// Identity is a builtin-provider credential row. Its id becomes the JWT
// subject, and therefore the profile id after bootstrap.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type AuditEntry struct {
	ID           string    `json:"id"`
	ActorID      string    `json:"actor_id"`
	Action       string    `json:"action"`
	Target       string    `json:"target"`
	MetadataJSON string    `json:"metadata_json"`
	CreatedAt    time.Time `json:"created_at"`
}
