package leave

type ApplyLeaveRequest struct {
	EmployeeID uint   `json:"employee_id" binding:"required"`
	StartDate  string `json:"start_date" binding:"required"`
	EndDate    string `json:"end_date" binding:"required"`
	Reason     string `json:"reason"`
}

type DecideLeaveRequest struct {
	Approved *bool `json:"approved" binding:"required"`
	// Optional manager override of the working-day count.
	DaysOverride *int `json:"days_override"`
}

type LeaveResponse struct {
	ID         uint    `json:"id"`
	EmployeeID uint    `json:"employee_id"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	Days       int     `json:"days"`
	Reason     *string `json:"reason,omitempty"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type BalanceResponse struct {
	EmployeeID       uint `json:"employee_id"`
	AvailableDays    int  `json:"available_days"`
	UsedDays         int  `json:"used_days"`
	AnnualAllocation int  `json:"annual_allocation"`
	Year             int  `json:"year"`
}

type ListLeavesQuery struct {
	EmployeeID *uint
	Status     *string
}
