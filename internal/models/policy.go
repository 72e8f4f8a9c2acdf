package models

import "time"

// PolicyStatus is the lifecycle state of a compliance policy. Transitions
// are monotonic: draft -> published -> archived, with no legal reverse.
type PolicyStatus string

const (
	PolicyDraft     PolicyStatus = "draft"
	PolicyPublished PolicyStatus = "published"
	PolicyArchived  PolicyStatus = "archived"
)

// CanTransitionTo reports whether the target state is a legal next step.
func (s PolicyStatus) CanTransitionTo(target PolicyStatus) bool {
	switch s {
	case PolicyDraft:
		return target == PolicyPublished
	case PolicyPublished:
		return target == PolicyArchived
	}
	return false
}

// Policy represents a compliance policy document.
type Policy struct {
	ID          string       `db:"id" json:"id"`
	Title       string       `db:"title" json:"title"`
	Version     string       `db:"version" json:"version"`
	Status      PolicyStatus `db:"status" json:"status"`
	PublishedAt *time.Time   `db:"published_at" json:"published_at,omitempty"`
	ArchivedAt  *time.Time   `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}
