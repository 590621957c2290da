package models

import "time"

// Conversation roles.
const (
	RoleAgent  = "agent"
	RoleCaller = "caller"
)

// Transcript represents a single utterance in the conversation.
type Transcript struct {
	Role    string    `json:"role" firestore:"role"`
	Content string    `json:"content" firestore:"content"`
	Time    time.Time `json:"time,omitempty" firestore:"time,omitempty"`
}

// CallTranscript represents a complete call record with metadata,
// archived when the session ends.
type CallTranscript struct {
	CallID       string       `json:"call_id" firestore:"call_id"`
	Path         string       `json:"path" firestore:"path"`
	Transcript   []Transcript `json:"transcript" firestore:"transcript"`
	StartTime    time.Time    `json:"start_time" firestore:"start_time"`
	EndTime      time.Time    `json:"end_time" firestore:"end_time"`
	DurationSecs int          `json:"duration_secs" firestore:"duration_secs"`
	CallerNumber string       `json:"caller_number,omitempty" firestore:"caller_number,omitempty"`
	EndReason    string       `json:"end_reason,omitempty" firestore:"end_reason,omitempty"`
	Turns        int          `json:"turns" firestore:"turns"`
}

// TranscriptUpdate is pushed to monitor clients whenever a call's
// transcript changes.
type TranscriptUpdate struct {
	Type        string       `json:"type"`
	CallID      string       `json:"call_id"`
	Path        string       `json:"path"`
	Transcript  []Transcript `json:"transcript"`
	StartTime   time.Time    `json:"start_time"`
	LastUpdated time.Time    `json:"last_updated"`
	IsActive    bool         `json:"is_active"`
}

// ConnectionResponse is sent when a monitor client connects.
type ConnectionResponse struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
	CallID  string `json:"call_id,omitempty"`
}
