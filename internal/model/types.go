package model

// MessageType is the type tag of a frame on the server push channel.
type MessageType string

const (
	MessageTypeRegister      MessageType = "register"
	MessageTypeRegistered    MessageType = "registered"
	MessageTypeUnregister    MessageType = "unregister"
	MessageTypePing          MessageType = "ping"
	MessageTypePong          MessageType = "pong"
	MessageTypeJobsAvailable MessageType = "print_jobs_available"
	MessageTypePrintersSync  MessageType = "printers_updated"
)

// --- WebSocket Messages ---

type WSMessage struct {
	Type         MessageType `json:"type"`
	RestaurantID string      `json:"restaurantId,omitempty"`
	JobID        string      `json:"jobId,omitempty"`
	Error        string      `json:"error,omitempty"`
}
