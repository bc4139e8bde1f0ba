package events

import "time"

const LeaveLifecycleTopic = "hr.leave.lifecycle.v1"

const (
	LeaveAppliedEventType  = "leave_applied"
	LeaveApprovedEventType = "leave_approved"
	LeaveRejectedEventType = "leave_rejected"
)

type LeaveLifecycleEvent struct {
	EventType  string    `json:"event_type"`
	RequestID  string    `json:"request_id,omitempty"`
	LeaveID    uint      `json:"leave_id"`
	EmployeeID uint      `json:"employee_id"`
	Status     string    `json:"status"`
	Days       int       `json:"days"`
	OccurredAt time.Time `json:"occurred_at"`
}
