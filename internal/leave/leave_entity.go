package leave

import "time"

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Leave is a single leave request. Days holds the working-day count
// attributed to the request; an approver may override it at decision time.
type Leave struct {
	ID         uint      `gorm:"primaryKey"`
	EmployeeID uint      `gorm:"not null;index:idx_leaves_employee_dates"`
	StartDate  time.Time `gorm:"type:date;not null;index:idx_leaves_employee_dates"`
	EndDate    time.Time `gorm:"type:date;not null;index:idx_leaves_employee_dates"`
	Days       int       `gorm:"type:int;not null"`
	Reason     *string   `gorm:"type:text"`
	Status     string    `gorm:"type:varchar(20);not null;default:'pending';index:idx_leaves_status"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decided reports whether the request has reached a terminal state.
func (l *Leave) Decided() bool {
	return l.Status != StatusPending
}
