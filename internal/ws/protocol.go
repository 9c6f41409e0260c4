package ws

import (
	"github.com/swarmwatch/swarmwatch/internal/session"
)

type MessageType string

const (
	// MsgSnapshot is sent on connect and periodically.
	MsgSnapshot MessageType = "snapshot"
	// MsgUpdate is sent, throttled, after the session state changes.
	MsgUpdate MessageType = "update"
)

type WSMessage struct {
	Type    MessageType      `json:"type"`
	Payload session.Snapshot `json:"payload"`
}

type StartRequest struct {
	Identifier string `json:"identifier"`
}

type HealthPayload struct {
	Status        session.Status `json:"status"`
	UptimeSeconds float64        `json:"uptimeSeconds"`
	Goroutines    int            `json:"goroutines"`
	RSSBytes      uint64         `json:"rssBytes"`
	CPUPercent    float64        `json:"cpuPercent"`
	Threads       int32          `json:"threads"`
	Clients       int            `json:"clients"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
