package models

import "time"

// Status of a seed request. Transitions only move forward along Edges.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusReleased Status = "released"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusReleased}

// Edges is the table of legal lifecycle transitions. Rejected and released
// are terminal.
var Edges = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusReleased},
}

func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// CanTransitionTo reports whether (s, target) is a lifecycle edge.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range Edges[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(Edges[s]) == 0
}

// SeedRequest is a user-submitted request for seeds. RejectReason is set
// only while Status is rejected.
type SeedRequest struct {
	ID           string    `json:"_id"`
	UserID       string    `json:"userId"`
	SeedType     string    `json:"seedType"`
	Description  string    `json:"description"`
	ImagePath    *string   `json:"imagePath"`
	Status       Status    `json:"status"`
	RejectReason *string   `json:"rejectReason"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RequestWithOwner is the read-side join of a request and its owner. User
// is nil when the owner no longer resolves.
type RequestWithOwner struct {
	SeedRequest
	ImageURL string         `json:"imageUrl,omitempty"`
	User     *PublicProfile `json:"user"`
}

// Stats feeds the dashboard summary cards.
type Stats struct {
	TotalRequests    int64 `json:"totalRequests"`
	PendingRequests  int64 `json:"pendingRequests"`
	ApprovedRequests int64 `json:"approvedRequests"`
	RejectedRequests int64 `json:"rejectedRequests"`
	ReleasedRequests int64 `json:"releasedRequests"`
	TotalUsers       int64 `json:"totalUsers"`
}
