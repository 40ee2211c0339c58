package models

type Webhook struct {
	ID              string   `json:"id"`
	OwnerID         string   `json:"owner_id"`
	URL             string   `json:"url"`
	Events          []string `json:"events"` // JSON array in DB
	Secret          string   `json:"secret,omitempty"`
	IsActive        bool     `json:"is_active"`
	FailureCount    int      `json:"failure_count"`
	LastTriggeredAt int64    `json:"last_triggered_at,omitempty"`
	LastError       string   `json:"last_error,omitempty"`
	CreatedAt       int64    `json:"created_at"`
	UpdatedAt       int64    `json:"updated_at"`
}

// Subscribed reports whether the webhook listens for event. Aliases match
// their canonical name.
func (w *Webhook) Subscribed(event string) bool {
	event, _ = NormalizeEvent(event)
	for _, e := range w.Events {
		if name, _ := NormalizeEvent(e); name == event {
			return true
		}
	}
	return false
}

// WebhookUserData is the user snapshot carried by a delivery. Only Username is
// set when the attempt did not resolve to a stored user.
type WebhookUserData struct {
	ID        string `json:"id,omitempty"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	HWID      string `json:"hwid,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// WebhookPayload is the generic JSON body POSTed to webhook targets.
type WebhookPayload struct {
	Event         string                 `json:"event"`
	Timestamp     string                 `json:"timestamp"`
	ApplicationID string                 `json:"application_id"`
	UserData      *WebhookUserData       `json:"user_data,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Success       bool                   `json:"success"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
}
