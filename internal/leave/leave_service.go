package leave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leavedesk/internal/calendar"
	"leavedesk/internal/employee"
	employeeerrors "leavedesk/internal/employee/errors"
	"leavedesk/internal/events"
	leaveerrors "leavedesk/internal/leave/errors"
	"leavedesk/internal/messaging/kafka"
	"leavedesk/internal/shared/contextutil"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	balanceKeyPrefix = "balance:"
	balanceCacheTTL  = 5 * time.Minute
)

func balanceCacheKey(employeeID uint, year int) string {
	return fmt.Sprintf("%s%d:%d", balanceKeyPrefix, employeeID, year)
}

//go:generate mockgen -source=leave_service.go -destination=mock/leave_service_mock.go -package=mock
type Service interface {
	Apply(ctx context.Context, req ApplyLeaveRequest) (LeaveResponse, error)
	Decide(ctx context.Context, id uint, req DecideLeaveRequest) (LeaveResponse, error)
	List(ctx context.Context, q ListLeavesQuery) ([]LeaveResponse, error)
	GetBalance(ctx context.Context, employeeID uint, year int) (BalanceResponse, error)
}

type service struct {
	db        *gorm.DB
	repo      Repository
	employees employee.Repository
	outbox    kafka.OutboxRepository
	rdb       *redis.Client
	sf        *singleflight.Group
	logger    *zap.Logger
}

func NewService(db *gorm.DB, repo Repository, employees employee.Repository, logger ...*zap.Logger) Service {
	return NewServiceWithDeps(db, repo, employees, nil, nil, logger...)
}

func NewServiceWithDeps(
	db *gorm.DB,
	repo Repository,
	employees employee.Repository,
	outboxRepo kafka.OutboxRepository,
	rdb *redis.Client,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("leave.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	return &service{
		db:        db,
		repo:      repo,
		employees: employees,
		outbox:    outboxRepo,
		rdb:       rdb,
		sf:        &singleflight.Group{},
		logger:    l,
	}
}

func (s *service) Apply(ctx context.Context, req ApplyLeaveRequest) (LeaveResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("apply leave requested",
		zap.String("request_id", rid),
		zap.Uint("employee_id", req.EmployeeID),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return LeaveResponse{}, err
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return LeaveResponse{}, err
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		s.logger.Error("apply leave begin tx failed", zap.Error(tx.Error))
		return LeaveResponse{}, tx.Error
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	emp, err := s.findEmployee(ctx, req.EmployeeID)
	if err != nil {
		return LeaveResponse{}, err
	}

	// Serialize overlap/balance read-then-write per employee.
	if err := qtx.LockEmployee(ctx, emp.ID); err != nil {
		s.logger.Error("apply leave lock employee failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if endDate.Before(startDate) {
		return LeaveResponse{}, leaveerrors.ErrInvalidDateRange
	}

	if startDate.Before(calendar.Truncate(emp.JoiningDate)) {
		s.logger.Warn("apply leave before joining date",
			zap.Uint("employee_id", emp.ID),
			zap.String("start_date", req.StartDate),
		)
		return LeaveResponse{}, leaveerrors.ErrBeforeJoiningDate
	}

	overlap, err := qtx.HasOverlappingLeave(ctx, emp.ID, startDate, endDate, nil)
	if err != nil {
		s.logger.Error("apply leave overlap check failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	if overlap {
		s.logger.Warn("apply leave overlap detected",
			zap.Uint("employee_id", emp.ID),
			zap.String("start_date", req.StartDate),
			zap.String("end_date", req.EndDate),
		)
		return LeaveResponse{}, leaveerrors.ErrLeaveOverlap
	}

	days, err := calendar.WorkingDays(startDate, endDate)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidDateRange
	}
	if days == 0 {
		return LeaveResponse{}, leaveerrors.ErrNoWorkingDays
	}

	if startDate.Year() != endDate.Year() {
		return LeaveResponse{}, leaveerrors.ErrCrossYearSpan
	}

	available, _, err := s.availableBalance(ctx, qtx, emp, startDate.Year())
	if err != nil {
		s.logger.Error("apply leave balance check failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	if days > available {
		s.logger.Warn("apply leave insufficient balance",
			zap.Uint("employee_id", emp.ID),
			zap.Int("requested_days", days),
			zap.Int("available_days", available),
		)
		return LeaveResponse{}, leaveerrors.ErrInsufficientBalance
	}

	l := &Leave{
		EmployeeID: emp.ID,
		StartDate:  startDate,
		EndDate:    endDate,
		Days:       days,
		Status:     StatusPending,
	}
	if req.Reason != "" {
		reason := req.Reason
		l.Reason = &reason
	}

	if err := qtx.Create(ctx, l); err != nil {
		s.logger.Error("apply leave persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := s.queueLifecycleEvent(ctx, tx, rid, l, events.LeaveAppliedEventType); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit().Error; err != nil {
		s.logger.Error("apply leave commit failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	s.logger.Info("apply leave success",
		zap.String("request_id", rid),
		zap.Uint("leave_id", l.ID),
		zap.Uint("employee_id", emp.ID),
		zap.Int("days", days),
	)

	return mapToResponse(*l), nil
}

func (s *service) Decide(ctx context.Context, id uint, req DecideLeaveRequest) (LeaveResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	approved := req.Approved != nil && *req.Approved
	s.logger.Debug("decide leave requested",
		zap.String("request_id", rid),
		zap.Uint("leave_id", id),
		zap.Bool("approved", approved),
	)

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		s.logger.Error("decide leave begin tx failed", zap.Error(tx.Error))
		return LeaveResponse{}, tx.Error
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
		}
		return LeaveResponse{}, err
	}
	if l.Decided() {
		s.logger.Warn("decide leave already decided",
			zap.Uint("leave_id", id),
			zap.String("status", l.Status),
		)
		return LeaveResponse{}, leaveerrors.ErrAlreadyDecided
	}

	// Referential-integrity guard; the employee row must still exist.
	emp, err := s.findEmployee(ctx, l.EmployeeID)
	if err != nil {
		return LeaveResponse{}, err
	}

	if err := qtx.LockEmployee(ctx, emp.ID); err != nil {
		s.logger.Error("decide leave lock employee failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	eventType := events.LeaveRejectedEventType
	if approved {
		// Other requests may have been approved since apply time, so the
		// overlap check is redone, excluding this leave itself.
		overlap, err := qtx.HasOverlappingLeave(ctx, emp.ID, l.StartDate, l.EndDate, &l.ID)
		if err != nil {
			s.logger.Error("decide leave overlap check failed", zap.Error(err))
			return LeaveResponse{}, err
		}
		if overlap {
			s.logger.Warn("decide leave overlap at approval time",
				zap.Uint("leave_id", id),
				zap.Uint("employee_id", emp.ID),
			)
			return LeaveResponse{}, leaveerrors.ErrLeaveOverlap
		}

		days := l.Days
		if req.DaysOverride != nil {
			days = *req.DaysOverride
		}
		if days <= 0 {
			return LeaveResponse{}, leaveerrors.ErrInvalidDaysOverride
		}

		// The leave being approved is still pending, so it never counts
		// against its own availability.
		available, _, err := s.availableBalance(ctx, qtx, emp, l.StartDate.Year())
		if err != nil {
			s.logger.Error("decide leave balance check failed", zap.Error(err))
			return LeaveResponse{}, err
		}
		if days > available {
			s.logger.Warn("decide leave insufficient balance",
				zap.Uint("leave_id", id),
				zap.Int("approved_days", days),
				zap.Int("available_days", available),
			)
			return LeaveResponse{}, leaveerrors.ErrInsufficientBalance
		}

		l.Days = days
		l.Status = StatusApproved
		eventType = events.LeaveApprovedEventType
	} else {
		l.Status = StatusRejected
	}

	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("decide leave persist failed",
			zap.Uint("leave_id", id),
			zap.Error(err),
		)
		return LeaveResponse{}, err
	}

	if err := s.queueLifecycleEvent(ctx, tx, rid, l, eventType); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit().Error; err != nil {
		s.logger.Error("decide leave commit failed",
			zap.Uint("leave_id", id),
			zap.Error(err),
		)
		return LeaveResponse{}, err
	}

	if l.Status == StatusApproved {
		s.invalidateBalanceCache(ctx, emp.ID, l.StartDate.Year())
	}

	s.logger.Info("decide leave success",
		zap.String("request_id", rid),
		zap.Uint("leave_id", l.ID),
		zap.String("status", l.Status),
	)

	return mapToResponse(*l), nil
}

func (s *service) List(ctx context.Context, q ListLeavesQuery) ([]LeaveResponse, error) {
	if q.Status != nil {
		switch *q.Status {
		case StatusPending, StatusApproved, StatusRejected:
		default:
			return nil, leaveerrors.ErrInvalidStatusFilter
		}
	}

	leaves, err := s.repo.FindAll(ctx, q)
	if err != nil {
		s.logger.Error("list leaves failed", zap.Error(err))
		return nil, err
	}
	return mapToListResponse(leaves), nil
}

func (s *service) GetBalance(ctx context.Context, employeeID uint, year int) (BalanceResponse, error) {
	emp, err := s.findEmployee(ctx, employeeID)
	if err != nil {
		return BalanceResponse{}, err
	}

	cacheKey := balanceCacheKey(emp.ID, year)

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var resp BalanceResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return resp, nil
			}
		}
	}

	v, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		available, used, err := s.availableBalance(ctx, s.repo, emp, year)
		if err != nil {
			return nil, err
		}

		resp := BalanceResponse{
			EmployeeID:       emp.ID,
			AvailableDays:    available,
			UsedDays:         used,
			AnnualAllocation: s.allocationFor(emp, year),
			Year:             year,
		}

		if s.rdb != nil {
			if payload, err := json.Marshal(resp); err == nil {
				s.rdb.Set(ctx, cacheKey, payload, balanceCacheTTL)
			}
		}

		return resp, nil
	})
	if err != nil {
		s.logger.Error("get balance failed",
			zap.Uint("employee_id", employeeID),
			zap.Int("year", year),
			zap.Error(err),
		)
		return BalanceResponse{}, err
	}

	return v.(BalanceResponse), nil
}

// usedDays sums approved working days intersecting the year, each leave
// clipped to the year bounds first.
func (s *service) usedDays(ctx context.Context, repo Repository, employeeID uint, year int) (int, error) {
	yearStart, yearEnd := calendar.YearBounds(year)
	leaves, err := repo.FindApprovedIntersectingYear(ctx, employeeID, yearStart, yearEnd)
	if err != nil {
		return 0, err
	}

	used := 0
	for _, l := range leaves {
		start, end := calendar.ClipToYear(l.StartDate, l.EndDate, year)
		days, err := calendar.WorkingDays(start, end)
		if err != nil {
			return 0, err
		}
		used += days
	}
	return used, nil
}

// allocationFor returns the employee's allocation for the year: zero for
// years before the joining year, the static annual balance otherwise.
func (s *service) allocationFor(emp *employee.Employee, year int) int {
	if emp.JoiningDate.Year() > year {
		return 0
	}
	return emp.AnnualBalance
}

// availableBalance returns (available, used) for the year. Available is
// floored at zero, never negative.
func (s *service) availableBalance(
	ctx context.Context,
	repo Repository,
	emp *employee.Employee,
	year int,
) (int, int, error) {
	used, err := s.usedDays(ctx, repo, emp.ID, year)
	if err != nil {
		return 0, 0, err
	}

	available := s.allocationFor(emp, year) - used
	if available < 0 {
		available = 0
	}
	return available, used, nil
}

func (s *service) findEmployee(ctx context.Context, id uint) (*employee.Employee, error) {
	emp, err := s.employees.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, employeeerrors.ErrEmployeeNotFound
		}
		s.logger.Error("employee lookup failed", zap.Uint("employee_id", id), zap.Error(err))
		return nil, err
	}
	return emp, nil
}

func (s *service) queueLifecycleEvent(
	ctx context.Context,
	tx *gorm.DB,
	rid string,
	l *Leave,
	eventType string,
) error {
	if s.outbox == nil {
		return nil
	}

	event := events.LeaveLifecycleEvent{
		EventType:  eventType,
		RequestID:  rid,
		LeaveID:    l.ID,
		EmployeeID: l.EmployeeID,
		Status:     l.Status,
		Days:       l.Days,
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal leave event failed", zap.Error(err))
		return err
	}

	outboxRepo := s.outbox.WithTx(tx)
	if err := outboxRepo.Create(ctx, kafka.OutboxEvent{
		ID:            uuid.NewString(),
		RequestID:     rid,
		AggregateType: "leave",
		AggregateID:   l.ID,
		EventType:     eventType,
		Topic:         events.LeaveLifecycleTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	}); err != nil {
		s.logger.Error("leave outbox persist failed",
			zap.Uint("leave_id", l.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *service) invalidateBalanceCache(ctx context.Context, employeeID uint, year int) {
	if s.rdb == nil {
		return
	}
	key := balanceCacheKey(employeeID, year)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.logger.Error("failed to invalidate balance cache",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, leaveerrors.ErrInvalidDateFormat
	}
	return calendar.Truncate(t), nil
}

func mapToResponse(l Leave) LeaveResponse {
	return LeaveResponse{
		ID:         l.ID,
		EmployeeID: l.EmployeeID,
		StartDate:  l.StartDate.Format("2006-01-02"),
		EndDate:    l.EndDate.Format("2006-01-02"),
		Days:       l.Days,
		Reason:     l.Reason,
		Status:     l.Status,
		CreatedAt:  l.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  l.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapToListResponse(leaves []Leave) []LeaveResponse {
	resp := make([]LeaveResponse, len(leaves))
	for i, l := range leaves {
		resp[i] = mapToResponse(l)
	}
	return resp
}
