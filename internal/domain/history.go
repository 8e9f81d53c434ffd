package domain

import (
	"fmt"
	"strings"
	"time"
)

type HistoryStatus string

const (
	HistoryStatusPending    HistoryStatus = "pending"
	HistoryStatusInProgress HistoryStatus = "in_progress"
	HistoryStatusCompleted  HistoryStatus = "completed"
	HistoryStatusCancelled  HistoryStatus = "cancelled"
)

func (s HistoryStatus) Valid() bool {
	switch s {
	case HistoryStatusPending, HistoryStatusInProgress, HistoryStatusCompleted, HistoryStatusCancelled:
		return true
	default:
		return false
	}
}

func ParseHistoryStatus(raw string) (HistoryStatus, error) {
	status := HistoryStatus(strings.TrimSpace(strings.ToLower(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unsupported history status %q", raw)
	}
	return status, nil
}

// HistoryItem is the shape exchanged with the backend and handed to readers.
// Timestamps are epoch milliseconds.
type HistoryItem struct {
	ID               string        `json:"id"`
	Status           HistoryStatus `json:"status"`
	CreatedAt        int64         `json:"created_at"`
	StartedAt        *int64        `json:"started_at,omitempty"`
	CompletedAt      *int64        `json:"completed_at,omitempty"`
	ServiceGroupName string        `json:"service_group_name,omitempty"`
	HandlerName      string        `json:"handler_name,omitempty"`
	RequesterName    string        `json:"requester_name,omitempty"`
	WaitTimeSeconds  *int64        `json:"wait_time_seconds,omitempty"`
}

// HistoryRecord is a HistoryItem plus the bookkeeping needed to reconcile
// optimistic local writes with backend snapshots.
type HistoryRecord struct {
	HistoryItem
	LocallyModifiedAt *int64 `json:"locally_modified_at,omitempty"`
	NeedsSync         bool   `json:"needs_sync"`
}

func (r HistoryRecord) Item() HistoryItem {
	item := r.HistoryItem
	item.StartedAt = copyMillis(item.StartedAt)
	item.CompletedAt = copyMillis(item.CompletedAt)
	item.WaitTimeSeconds = copyMillis(item.WaitTimeSeconds)
	return item
}

func (r HistoryRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unsupported status %q", r.Status)
	}
	if r.NeedsSync && r.LocallyModifiedAt == nil {
		return fmt.Errorf("record %q needs sync without a local modification time", r.ID)
	}
	return nil
}

// ModifiedWithin reports whether the last local change happened less than
// window before now.
func (r HistoryRecord) ModifiedWithin(now time.Time, window time.Duration) bool {
	if r.LocallyModifiedAt == nil {
		return false
	}
	return now.UnixMilli()-*r.LocallyModifiedAt < window.Milliseconds()
}

// RemoteRecord adopts a backend item verbatim; it carries no local state.
func RemoteRecord(item HistoryItem) HistoryRecord {
	return HistoryRecord{HistoryItem: item}
}

func copyMillis(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func Millis(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}
