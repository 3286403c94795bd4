package timetracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

const activeTimerIndex = "ux_time_entries_active_timer"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service records technician time against work orders.
type Service interface {
	StartTimer(ctx context.Context, input StartInput) (*models.TimeEntry, error)
	StopTimer(ctx context.Context, entryID uuid.UUID, input StopInput) (*models.TimeEntry, error)
	CorrectEntry(ctx context.Context, entryID uuid.UUID, input CorrectionInput) (*models.TimeEntry, error)
	ListEntries(ctx context.Context, workOrderID uuid.UUID) ([]models.TimeEntry, error)
	ActiveTimers(ctx context.Context, workOrderID uuid.UUID) ([]models.TimeEntry, error)
	TotalBillableMinutes(ctx context.Context, workOrderID uuid.UUID) (int, error)
	TotalNonBillableMinutes(ctx context.Context, workOrderID uuid.UUID) (int, error)
	Summary(ctx context.Context, workOrderID uuid.UUID) (*Summary, error)
	BillableByEmployee(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID) ([]EmployeeMinutes, error)
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the time tracking service. now defaults to time.Now.
func NewService(repo Repository, tx txRunner, logg *logger.Logger, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("time entry repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, tx: tx, logg: logg, now: now}, nil
}

// StartTimer opens a timer for one employee on one work order. Only one
// timer per pair may run at a time.
func (s *service) StartTimer(ctx context.Context, input StartInput) (*models.TimeEntry, error) {
	name := strings.TrimSpace(input.EmployeeName)
	if input.WorkOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "work order id required")
	}
	if input.EmployeeID == uuid.Nil || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "employee identity missing")
	}

	var entry *models.TimeEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wo, err := repo.FindWorkOrder(ctx, input.WorkOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "work order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load work order")
		}
		if wo.Status == enums.WorkOrderStatusCancelled || wo.Status == enums.WorkOrderStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "time cannot be logged on a "+wo.Status.String()+" work order")
		}

		running, err := repo.FindRunning(ctx, input.WorkOrderID, input.EmployeeID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check running timer")
		}
		if running != nil {
			return alreadyRunning(input, running.ID)
		}

		entry = &models.TimeEntry{
			WorkOrderID:  input.WorkOrderID,
			EmployeeID:   input.EmployeeID,
			EmployeeName: name,
			StartTime:    s.now().UTC(),
			Billable:     true,
		}
		if err := repo.Create(ctx, entry); err != nil {
			if db.IsUniqueViolation(err, activeTimerIndex) {
				return alreadyRunning(input, uuid.Nil)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start timer")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"work_order_id": input.WorkOrderID.String(),
		"employee_id":   input.EmployeeID.String(),
		"entry_id":      entry.ID.String(),
	}), "timer started")
	return entry, nil
}

func alreadyRunning(input StartInput, entryID uuid.UUID) error {
	details := map[string]any{
		"work_order_id": input.WorkOrderID,
		"employee_id":   input.EmployeeID,
	}
	if entryID != uuid.Nil {
		details["entry_id"] = entryID
	}
	return pkgerrors.New(pkgerrors.CodeInvalidState, "timer already running for this employee").WithDetails(details)
}

// StopTimer closes a running timer and fixes its whole-minute duration.
func (s *service) StopTimer(ctx context.Context, entryID uuid.UUID, input StopInput) (*models.TimeEntry, error) {
	if entryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "time entry id required")
	}
	billable := true
	if input.Billable != nil {
		billable = *input.Billable
	}

	var entry *models.TimeEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, entryID)
		if err != nil {
			return err
		}
		if !current.Running() {
			return notRunning(current.ID)
		}

		end := s.now().UTC()
		minutes := DurationMinutes(current.StartTime, end)
		ok, err := repo.Stop(ctx, current.ID, end, minutes, billable, input.Notes)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stop timer")
		}
		if !ok {
			return notRunning(current.ID)
		}

		current.EndTime = &end
		current.DurationMinutes = minutes
		current.Billable = billable
		if input.Notes != nil {
			current.Notes = input.Notes
		}
		current.UpdatedAt = end
		entry = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func notRunning(entryID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeInvalidState, "timer is not running").
		WithDetails(map[string]any{"entry_id": entryID})
}

// CorrectEntry adjusts a stopped entry and recomputes its duration.
func (s *service) CorrectEntry(ctx context.Context, entryID uuid.UUID, input CorrectionInput) (*models.TimeEntry, error) {
	if entryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "time entry id required")
	}

	var entry *models.TimeEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, entryID)
		if err != nil {
			return err
		}
		if current.Running() {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "stop the timer before correcting it").
				WithDetails(map[string]any{"entry_id": current.ID})
		}

		start := current.StartTime
		if input.StartTime != nil {
			start = input.StartTime.UTC()
		}
		end := *current.EndTime
		if input.EndTime != nil {
			end = input.EndTime.UTC()
		}
		if !end.After(start) {
			return pkgerrors.New(pkgerrors.CodeValidation, "end time must be after start time")
		}

		now := s.now().UTC()
		minutes := DurationMinutes(start, end)
		updates := map[string]any{
			"start_time":       start,
			"end_time":         end,
			"duration_minutes": minutes,
			"updated_at":       now,
		}
		if input.Billable != nil {
			updates["billable"] = *input.Billable
			current.Billable = *input.Billable
		}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
			current.Notes = input.Notes
		}
		ok, err := repo.UpdateStopped(ctx, current.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "correct time entry")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "time entry changed concurrently")
		}

		current.StartTime = start
		current.EndTime = &end
		current.DurationMinutes = minutes
		current.UpdatedAt = now
		entry = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.TimeEntry, error) {
	entry, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "time entry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load time entry")
	}
	return entry, nil
}

func (s *service) ListEntries(ctx context.Context, workOrderID uuid.UUID) ([]models.TimeEntry, error) {
	entries, err := s.repo.ListByWorkOrder(ctx, workOrderID, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list time entries")
	}
	return entries, nil
}

func (s *service) ActiveTimers(ctx context.Context, workOrderID uuid.UUID) ([]models.TimeEntry, error) {
	entries, err := s.repo.ListByWorkOrder(ctx, workOrderID, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active timers")
	}
	return entries, nil
}

func (s *service) TotalBillableMinutes(ctx context.Context, workOrderID uuid.UUID) (int, error) {
	total, err := s.repo.SumMinutes(ctx, workOrderID, true)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum billable minutes")
	}
	return total, nil
}

func (s *service) TotalNonBillableMinutes(ctx context.Context, workOrderID uuid.UUID) (int, error) {
	total, err := s.repo.SumMinutes(ctx, workOrderID, false)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum non-billable minutes")
	}
	return total, nil
}

func (s *service) Summary(ctx context.Context, workOrderID uuid.UUID) (*Summary, error) {
	billable, err := s.TotalBillableMinutes(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	nonBillable, err := s.TotalNonBillableMinutes(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	byEmployee, err := s.BillableByEmployee(ctx, nil, workOrderID)
	if err != nil {
		return nil, err
	}
	if byEmployee == nil {
		byEmployee = []EmployeeMinutes{}
	}
	return &Summary{
		WorkOrderID:        workOrderID,
		BillableMinutes:    billable,
		NonBillableMinutes: nonBillable,
		ByEmployee:         byEmployee,
	}, nil
}

// BillableByEmployee groups stopped billable minutes per employee. tx may be
// nil outside a transaction.
func (s *service) BillableByEmployee(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID) ([]EmployeeMinutes, error) {
	rows, err := s.repo.WithTx(tx).BillableByEmployee(ctx, workOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "group billable minutes")
	}
	return rows, nil
}

// DurationMinutes is the whole minutes between start and end, never negative.
func DurationMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
