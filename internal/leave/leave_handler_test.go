package leave_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leavedesk/internal/leave"
	leaveerrors "leavedesk/internal/leave/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiEnvelope struct {
	Ok    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	err := json.Unmarshal(body, &env)
	assert.NoError(t, err)
	return env
}

type fakeLeaveService struct {
	applyFn      func(ctx context.Context, req leave.ApplyLeaveRequest) (leave.LeaveResponse, error)
	decideFn     func(ctx context.Context, id uint, req leave.DecideLeaveRequest) (leave.LeaveResponse, error)
	listFn       func(ctx context.Context, q leave.ListLeavesQuery) ([]leave.LeaveResponse, error)
	getBalanceFn func(ctx context.Context, employeeID uint, year int) (leave.BalanceResponse, error)
}

func (f *fakeLeaveService) Apply(ctx context.Context, req leave.ApplyLeaveRequest) (leave.LeaveResponse, error) {
	return f.applyFn(ctx, req)
}
func (f *fakeLeaveService) Decide(ctx context.Context, id uint, req leave.DecideLeaveRequest) (leave.LeaveResponse, error) {
	return f.decideFn(ctx, id, req)
}
func (f *fakeLeaveService) List(ctx context.Context, q leave.ListLeavesQuery) ([]leave.LeaveResponse, error) {
	return f.listFn(ctx, q)
}
func (f *fakeLeaveService) GetBalance(ctx context.Context, employeeID uint, year int) (leave.BalanceResponse, error) {
	return f.getBalanceFn(ctx, employeeID, year)
}

func setupLeaveRouter(svc leave.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	leave.RegisterRoutes(api, leave.NewHandler(svc))
	return r
}

func TestLeaveHandler_Apply(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeLeaveService{
			applyFn: func(ctx context.Context, req leave.ApplyLeaveRequest) (leave.LeaveResponse, error) {
				assert.Equal(t, uint(7), req.EmployeeID)
				assert.Equal(t, "2024-03-04", req.StartDate)
				return leave.LeaveResponse{
					ID:         42,
					EmployeeID: req.EmployeeID,
					StartDate:  req.StartDate,
					EndDate:    req.EndDate,
					Days:       5,
					Status:     leave.StatusPending,
				}, nil
			},
		}
		r := setupLeaveRouter(svc)

		body := `{"employee_id":7,"start_date":"2024-03-04","end_date":"2024-03-08","reason":"Family trip"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/leaves/apply", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.True(t, env.Ok)

		var resp leave.LeaveResponse
		assert.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, uint(42), resp.ID)
		assert.Equal(t, leave.StatusPending, resp.Status)
	})

	t.Run("negative missing employee_id fails binding", func(t *testing.T) {
		svc := &fakeLeaveService{
			applyFn: func(ctx context.Context, req leave.ApplyLeaveRequest) (leave.LeaveResponse, error) {
				t.Fatal("service must not be called on binding failure")
				return leave.LeaveResponse{}, nil
			},
		}
		r := setupLeaveRouter(svc)

		body := `{"start_date":"2024-03-04","end_date":"2024-03-08"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/leaves/apply", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
	})

	t.Run("negative overlap maps to conflict", func(t *testing.T) {
		svc := &fakeLeaveService{
			applyFn: func(ctx context.Context, req leave.ApplyLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrLeaveOverlap
			},
		}
		r := setupLeaveRouter(svc)

		body := `{"employee_id":7,"start_date":"2024-03-06","end_date":"2024-03-06"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/leaves/apply", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
		assert.Equal(t, "CONFLICT", env.Error.Code)
	})
}

func TestLeaveHandler_Decide(t *testing.T) {
	t.Run("success approve with override", func(t *testing.T) {
		svc := &fakeLeaveService{
			decideFn: func(ctx context.Context, id uint, req leave.DecideLeaveRequest) (leave.LeaveResponse, error) {
				assert.Equal(t, uint(42), id)
				assert.NotNil(t, req.Approved)
				assert.True(t, *req.Approved)
				assert.NotNil(t, req.DaysOverride)
				assert.Equal(t, 3, *req.DaysOverride)
				return leave.LeaveResponse{ID: id, Days: 3, Status: leave.StatusApproved}, nil
			},
		}
		r := setupLeaveRouter(svc)

		body := `{"approved":true,"days_override":3}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/leaves/42/decision", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.True(t, env.Ok)
	})

	t.Run("negative invalid id", func(t *testing.T) {
		svc := &fakeLeaveService{}
		r := setupLeaveRouter(svc)

		body := `{"approved":true}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/leaves/abc/decision", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative already decided maps to invalid state", func(t *testing.T) {
		svc := &fakeLeaveService{
			decideFn: func(ctx context.Context, id uint, req leave.DecideLeaveRequest) (leave.LeaveResponse, error) {
				return leave.LeaveResponse{}, leaveerrors.ErrAlreadyDecided
			},
		}
		r := setupLeaveRouter(svc)

		body := `{"approved":false}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/leaves/42/decision", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.Equal(t, "INVALID_STATE", env.Error.Code)
	})
}

func TestLeaveHandler_List(t *testing.T) {
	t.Run("success with filters", func(t *testing.T) {
		svc := &fakeLeaveService{
			listFn: func(ctx context.Context, q leave.ListLeavesQuery) ([]leave.LeaveResponse, error) {
				assert.NotNil(t, q.EmployeeID)
				assert.Equal(t, uint(7), *q.EmployeeID)
				assert.NotNil(t, q.Status)
				assert.Equal(t, leave.StatusPending, *q.Status)
				return []leave.LeaveResponse{{ID: 42, EmployeeID: 7, Status: leave.StatusPending}}, nil
			},
		}
		r := setupLeaveRouter(svc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/leaves?employee_id=7&status=PENDING", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.True(t, env.Ok)

		var resp []leave.LeaveResponse
		assert.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Len(t, resp, 1)
	})

	t.Run("negative invalid employee_id", func(t *testing.T) {
		svc := &fakeLeaveService{}
		r := setupLeaveRouter(svc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/leaves?employee_id=abc", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLeaveHandler_GetBalance(t *testing.T) {
	t.Run("success with explicit year", func(t *testing.T) {
		svc := &fakeLeaveService{
			getBalanceFn: func(ctx context.Context, employeeID uint, year int) (leave.BalanceResponse, error) {
				assert.Equal(t, uint(7), employeeID)
				assert.Equal(t, 2024, year)
				return leave.BalanceResponse{
					EmployeeID:       7,
					AvailableDays:    15,
					UsedDays:         5,
					AnnualAllocation: 20,
					Year:             2024,
				}, nil
			},
		}
		r := setupLeaveRouter(svc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/employees/7/balance?year=2024", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())

		var resp leave.BalanceResponse
		assert.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, 15, resp.AvailableDays)
		assert.Equal(t, 5, resp.UsedDays)
	})

	t.Run("success defaults to current year", func(t *testing.T) {
		svc := &fakeLeaveService{
			getBalanceFn: func(ctx context.Context, employeeID uint, year int) (leave.BalanceResponse, error) {
				assert.Equal(t, time.Now().UTC().Year(), year)
				return leave.BalanceResponse{EmployeeID: employeeID, Year: year}, nil
			},
		}
		r := setupLeaveRouter(svc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/employees/7/balance", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("negative invalid year", func(t *testing.T) {
		svc := &fakeLeaveService{}
		r := setupLeaveRouter(svc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/employees/7/balance?year=abc", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
