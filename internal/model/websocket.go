package model

// WebSocket message types
type WSMessageType string

const (
	WSMessageTypeProgress WSMessageType = "progress"
	WSMessageTypeComplete WSMessageType = "complete"
	WSMessageTypeError    WSMessageType = "error"
)

// WSProgressMessage is broadcast on every progress checkpoint.
type WSProgressMessage struct {
	Type     WSMessageType `json:"type"`
	JobID    string        `json:"jobId"`
	Progress int           `json:"progress"`
	Status   JobStatus     `json:"status"`
	Stage    string        `json:"stage,omitempty"`
}

// WSCompleteMessage is broadcast once when a job finishes.
type WSCompleteMessage struct {
	Type   WSMessageType `json:"type"`
	JobID  string        `json:"jobId"`
	Result *RenderResult `json:"result"`
}

// WSErrorMessage is broadcast when a job fails.
type WSErrorMessage struct {
	Type    WSMessageType `json:"type"`
	JobID   string        `json:"jobId"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
}
