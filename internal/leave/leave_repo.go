package leave

import (
	"context"
	"time"

	"gorm.io/gorm"
)

//go:generate mockgen -source=leave_repo.go -destination=mock/leave_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockEmployee(ctx context.Context, employeeID uint) error
	Create(ctx context.Context, l *Leave) error
	FindByID(ctx context.Context, id uint) (*Leave, error)
	FindAll(ctx context.Context, q ListLeavesQuery) ([]Leave, error)
	FindApprovedIntersectingYear(ctx context.Context, employeeID uint, yearStart, yearEnd time.Time) ([]Leave, error)
	HasOverlappingLeave(ctx context.Context, employeeID uint, start, end time.Time, excludeID *uint) (bool, error)
	Update(ctx context.Context, l *Leave) error
}

type repository struct {
	db   *gorm.DB
	inTx bool
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx returns a repository whose reads and writes all run on the given
// transaction, so they commit or roll back together with the caller.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx, inTx: true}
}

// LockEmployee takes a per-employee advisory lock on the transaction
// connection. It is released at commit or rollback, serializing the
// read-then-write window of concurrent apply/decide calls for the same
// employee. Outside a transaction this is a no-op.
func (r *repository) LockEmployee(ctx context.Context, employeeID uint) error {
	if !r.inTx {
		return nil
	}
	return r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", int64(employeeID)).Error
}

func (r *repository) Create(ctx context.Context, l *Leave) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*Leave, error) {
	var l Leave
	err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repository) FindAll(ctx context.Context, q ListLeavesQuery) ([]Leave, error) {
	db := r.db.WithContext(ctx).Model(&Leave{})
	if q.EmployeeID != nil {
		db = db.Where("employee_id = ?", *q.EmployeeID)
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}

	var leaves []Leave
	err := db.Order("created_at DESC").Find(&leaves).Error
	return leaves, err
}

func (r *repository) FindApprovedIntersectingYear(
	ctx context.Context,
	employeeID uint,
	yearStart, yearEnd time.Time,
) ([]Leave, error) {
	var leaves []Leave
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Where("status = ?", StatusApproved).
		Where("start_date <= ? AND end_date >= ?", yearEnd, yearStart).
		Find(&leaves).Error
	return leaves, err
}

func (r *repository) HasOverlappingLeave(
	ctx context.Context,
	employeeID uint,
	start, end time.Time,
	excludeID *uint,
) (bool, error) {
	db := r.db.WithContext(ctx).
		Model(&Leave{}).
		Where("employee_id = ?", employeeID).
		Where("status IN ?", []string{StatusPending, StatusApproved}).
		Where("start_date <= ? AND end_date >= ?", end, start)

	if excludeID != nil {
		db = db.Where("id <> ?", *excludeID)
	}

	var count int64
	err := db.Count(&count).Error
	return count > 0, err
}

func (r *repository) Update(ctx context.Context, l *Leave) error {
	return r.db.WithContext(ctx).Save(l).Error
}
