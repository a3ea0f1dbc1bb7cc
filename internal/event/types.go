package event

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	SessionID string `json:"sessionID"`
	UserID    string `json:"userID"`
	Title     string `json:"title,omitempty"`
}

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	SessionID string `json:"sessionID"`
	UserID    string `json:"userID"`
}

// TurnStartedData is the data for turn.started events.
type TurnStartedData struct {
	SessionID string `json:"sessionID"`
	UserID    string `json:"userID"`
}

// TurnDeltaData is the data for turn.delta events, one per streamed
// text chunk.
type TurnDeltaData struct {
	SessionID string `json:"sessionID"`
	Content   string `json:"content"`
}

// TurnCompletedData is the data for turn.completed events.
type TurnCompletedData struct {
	SessionID string `json:"sessionID"`
	UserID    string `json:"userID"`
	Length    int    `json:"length"`
}

// ToolStartedData is the data for tool.started events.
type ToolStartedData struct {
	SessionID string `json:"sessionID"`
	Agent     string `json:"agent"`
	Tool      string `json:"tool"`
	CallID    string `json:"callID"`
}

// ToolCompletedData is the data for tool.completed events.
type ToolCompletedData struct {
	SessionID string `json:"sessionID"`
	Agent     string `json:"agent"`
	Tool      string `json:"tool"`
	CallID    string `json:"callID"`
	IsError   bool   `json:"isError"`
}

// SessionErrorData is the data for session.error events.
type SessionErrorData struct {
	SessionID string `json:"sessionID,omitempty"`
	Message   string `json:"message"`
}
