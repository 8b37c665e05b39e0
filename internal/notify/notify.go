// Package notify pushes freshly stored analysis records to interested
// parties. Notifications are best effort: the record is already in the
// result store when they run.
package notify

import (
	"context"

	"github.com/franckalain/foodanalysis/internal/models"
)

// Notifier receives every newly stored record.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, record *models.AnalysisRecord) error
}

// Message is the envelope sent to websocket clients and MQTT subscribers.
type Message struct {
	Type string                 `json:"type"`
	Data *models.AnalysisRecord `json:"data,omitempty"`
}

const MessageTypeAnalysis = "analysis"

func analysisMessage(record *models.AnalysisRecord) Message {
	return Message{Type: MessageTypeAnalysis, Data: record}
}
