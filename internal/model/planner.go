package model

import "time"

// DateLayout is the calendar-day granularity used everywhere a
// deliverable date crosses the wire.
const DateLayout = "2006-01-02"

type Project struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Deliverable is a unit of planned work attached to a project and a
// calendar date. StructuredText is the bullet rendition shown to the
// user; it falls back to RawText verbatim when no AI structuring was
// applied, so it is never empty while RawText is set.
type Deliverable struct {
	ID             int       `json:"id"`
	ProjectID      int       `json:"project_id"`
	Date           time.Time `json:"-"`
	DateStr        string    `json:"date"`
	Title          string    `json:"title,omitempty"`
	RawText        string    `json:"raw_text"`
	StructuredText string    `json:"structured_text"`
	Notes          string    `json:"notes,omitempty"`
	Tag            string    `json:"tag,omitempty"`
	ColorOverride  string    `json:"color_override,omitempty"`
	IsDone         bool      `json:"is_done"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Project *Project `json:"project,omitempty"`
}

// Report is an immutable record of work performed, written when a
// deliverable is completed or annotated after the fact.
type Report struct {
	ID             int       `json:"id"`
	DeliverableID  int       `json:"deliverable_id"`
	RawText        string    `json:"raw_text"`
	StructuredText string    `json:"structured_text"`
	CreatedAt      time.Time `json:"created_at"`
}
