// Package event defines the payloads published to the events exchange.
package event

import "time"

const (
	RoutingKeyDeliverableCreated   = "deliverable.created"
	RoutingKeyDeliverableCompleted = "deliverable.completed"
	RoutingKeyReportCreated        = "report.created"
)

type DeliverableCreated struct {
	DeliverableID int       `json:"deliverable_id"`
	ProjectID     int       `json:"project_id"`
	UserID        int       `json:"user_id"`
	Date          string    `json:"date"`
	CreatedAt     time.Time `json:"created_at"`
}

type DeliverableCompleted struct {
	DeliverableID int       `json:"deliverable_id"`
	ProjectID     int       `json:"project_id"`
	UserID        int       `json:"user_id"`
	ReportID      int       `json:"report_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

type ReportCreated struct {
	ReportID      int       `json:"report_id"`
	DeliverableID int       `json:"deliverable_id"`
	ProjectID     int       `json:"project_id"`
	UserID        int       `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
}
