package types

import "time"

// Session is the durable, ordered event log for one (app, user, session)
// triple. Events are appended in conversational order and never reordered.
type Session struct {
	AppName string   `json:"appName"`
	UserID  string   `json:"userID"`
	ID      string   `json:"id"`
	Events  []*Event `json:"events"`
}

// Key returns the composite storage key for the session.
func (s *Session) Key() string {
	return s.AppName + ":" + s.UserID + ":" + s.ID
}

// ChatRecord is the display-oriented chat history record kept in the
// secondary store, independent of the Session event log. It is the
// hydration fallback when the event log was reset but the record
// survived.
type ChatRecord struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Title     string        `json:"title"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Messages  []ChatMessage `json:"messages,omitempty"`
}

// ChatMessage is one display message inside a ChatRecord.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceToken is the token bundle for one connected SaaS service.
// Either just AccessToken (Slack, GitHub) or the full OAuth bundle
// (Google services).
type ServiceToken struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenURI     string `json:"tokenUri,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// TokenBundle maps a service name ("gmail", "google_drive", "slack",
// "github", "google_chat") to its token. A missing key means the user
// never connected that service.
type TokenBundle map[string]*ServiceToken
