package employee

import "time"

// DefaultAnnualBalance is the number of working days allotted per calendar
// year. Fixed at creation; year scoping happens at query time.
const DefaultAnnualBalance = 20

type Employee struct {
	ID            uint      `gorm:"primaryKey"`
	Name          string    `gorm:"type:varchar(120);not null"`
	Email         string    `gorm:"type:varchar(255);uniqueIndex:uq_employee_email;not null"`
	Department    string    `gorm:"type:varchar(120);not null"`
	JoiningDate   time.Time `gorm:"type:date;not null"`
	AnnualBalance int       `gorm:"type:int;not null;default:20"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
