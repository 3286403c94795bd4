package timetracking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	conn  *gorm.DB
	svc   Service
	clock *clock
}

func newFixture(t *testing.T, wrap func(Repository) Repository) *fixture {
	t.Helper()
	conn := sqlitetest.Open(t)
	c := &clock{now: time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)}
	var repo Repository = NewRepository(conn)
	if wrap != nil {
		repo = wrap(repo)
	}
	svc, err := NewService(repo, db.FromConn(conn), nil, c.Now)
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, clock: c}
}

func (f *fixture) workOrder(t *testing.T, status enums.WorkOrderStatus) models.WorkOrder {
	t.Helper()
	wo := models.WorkOrder{
		Number:       "WO-" + uuid.NewString()[:8],
		CustomerID:   uuid.New(),
		CustomerName: "Casey",
		Status:       status,
		Priority:     enums.PriorityLow,
		Description:  "Oil change",
	}
	require.NoError(t, f.conn.Create(&wo).Error)
	return wo
}

func (f *fixture) start(t *testing.T, wo models.WorkOrder, employee uuid.UUID) *models.TimeEntry {
	t.Helper()
	entry, err := f.svc.StartTimer(context.Background(), StartInput{WorkOrderID: wo.ID, EmployeeID: employee, EmployeeName: "Tech " + employee.String()[:4]})
	require.NoError(t, err)
	return entry
}

func TestSingleActiveTimerPerEmployee(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	wo := f.workOrder(t, enums.WorkOrderStatusInProgress)
	alice, bob := uuid.New(), uuid.New()

	first := f.start(t, wo, alice)
	require.True(t, first.Running())
	require.True(t, first.Billable)

	_, err := f.svc.StartTimer(ctx, StartInput{WorkOrderID: wo.ID, EmployeeID: alice, EmployeeName: "Alice"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeInvalidState, typed.Code())
	require.Equal(t, first.ID, typed.Details().(map[string]any)["entry_id"])

	f.start(t, wo, bob)
	active, err := f.svc.ActiveTimers(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)

	other := f.workOrder(t, enums.WorkOrderStatusPending)
	f.start(t, other, alice)
}

type blindRepo struct {
	Repository
}

func (r blindRepo) WithTx(tx *gorm.DB) Repository {
	return blindRepo{Repository: r.Repository.WithTx(tx)}
}

func (blindRepo) FindRunning(context.Context, uuid.UUID, uuid.UUID) (*models.TimeEntry, error) {
	return nil, gorm.ErrRecordNotFound
}

func TestActiveTimerIndexBacksTheCheck(t *testing.T) {
	f := newFixture(t, func(repo Repository) Repository { return blindRepo{Repository: repo} })
	wo := f.workOrder(t, enums.WorkOrderStatusInProgress)
	employee := uuid.New()
	f.start(t, wo, employee)

	_, err := f.svc.StartTimer(context.Background(), StartInput{WorkOrderID: wo.ID, EmployeeID: employee, EmployeeName: "Alice"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState))
}

func TestStartTimerRejectsClosedWorkOrders(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, status := range []enums.WorkOrderStatus{enums.WorkOrderStatusCompleted, enums.WorkOrderStatusCancelled} {
		wo := f.workOrder(t, status)
		_, err := f.svc.StartTimer(ctx, StartInput{WorkOrderID: wo.ID, EmployeeID: uuid.New(), EmployeeName: "Alice"})
		require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "status %s", status)
	}

	_, err := f.svc.StartTimer(ctx, StartInput{WorkOrderID: uuid.New(), EmployeeID: uuid.New(), EmployeeName: "Alice"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.StartTimer(ctx, StartInput{WorkOrderID: uuid.New(), EmployeeID: uuid.New()})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestStopTimerFloorsMinutesAndRejectsSecondStop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	wo := f.workOrder(t, enums.WorkOrderStatusInProgress)
	entry := f.start(t, wo, uuid.New())

	f.clock.Advance(95*time.Minute + 59*time.Second)
	notes := "replaced pads"
	stopped, err := f.svc.StopTimer(ctx, entry.ID, StopInput{Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, 95, stopped.DurationMinutes)
	require.True(t, stopped.Billable)
	require.False(t, stopped.Running())
	require.Equal(t, "replaced pads", *stopped.Notes)

	_, err = f.svc.StopTimer(ctx, entry.ID, StopInput{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState))

	_, err = f.svc.StopTimer(ctx, uuid.New(), StopInput{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestStopTimerNeverNegative(t *testing.T) {
	f := newFixture(t, nil)
	wo := f.workOrder(t, enums.WorkOrderStatusInProgress)
	entry := f.start(t, wo, uuid.New())

	f.clock.Advance(-10 * time.Minute)
	stopped, err := f.svc.StopTimer(context.Background(), entry.ID, StopInput{})
	require.NoError(t, err)
	require.Zero(t, stopped.DurationMinutes)
}

func TestTotalsSplitBillable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	wo := f.workOrder(t, enums.WorkOrderStatusInProgress)
	alice, bob := uuid.New(), uuid.New()
	no := false

	a := f.start(t, wo, alice)
	b := f.start(t, wo, bob)
	f.clock.Advance(60 * time.Minute)
	_, err := f.svc.StopTimer(ctx, a.ID, StopInput{})
	require.NoError(t, err)
	_, err = f.svc.StopTimer(ctx, b.ID, StopInput{Billable: &no})
	require.NoError(t, err)

	c := f.start(t, wo, bob)
	f.clock.Advance(30 * time.Minute)
	_, err = f.svc.StopTimer(ctx, c.ID, StopInput{})
	require.NoError(t, err)

	f.start(t, wo, alice)
	f.clock.Advance(500 * time.Minute)

	billable, err := f.svc.TotalBillableMinutes(ctx, wo.ID)
	require.NoError(t, err)
	require.Equal(t, 90, billable)
	nonBillable, err := f.svc.TotalNonBillableMinutes(ctx, wo.ID)
	require.NoError(t, err)
	require.Equal(t, 60, nonBillable)

	summary, err := f.svc.Summary(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, summary.ByEmployee, 2)
	minutes := map[uuid.UUID]int{}
	for _, row := range summary.ByEmployee {
		minutes[row.EmployeeID] = row.Minutes
	}
	require.Equal(t, 60, minutes[alice])
	require.Equal(t, 30, minutes[bob])

	entries, err := f.svc.ListEntries(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
}

func TestTotalsOfEmptyWorkOrder(t *testing.T) {
	f := newFixture(t, nil)
	summary, err := f.svc.Summary(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Zero(t, summary.BillableMinutes)
	require.Zero(t, summary.NonBillableMinutes)
	require.Empty(t, summary.ByEmployee)
}

func TestCorrectEntry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	wo := f.workOrder(t, enums.WorkOrderStatusInProgress)
	entry := f.start(t, wo, uuid.New())

	_, err := f.svc.CorrectEntry(ctx, entry.ID, CorrectionInput{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState))

	f.clock.Advance(20 * time.Minute)
	_, err = f.svc.StopTimer(ctx, entry.ID, StopInput{})
	require.NoError(t, err)

	badEnd := entry.StartTime.Add(-time.Minute)
	_, err = f.svc.CorrectEntry(ctx, entry.ID, CorrectionInput{EndTime: &badEnd})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	end := entry.StartTime.Add(2*time.Hour + 30*time.Second)
	no := false
	corrected, err := f.svc.CorrectEntry(ctx, entry.ID, CorrectionInput{EndTime: &end, Billable: &no})
	require.NoError(t, err)
	require.Equal(t, 120, corrected.DurationMinutes)
	require.False(t, corrected.Billable)

	nonBillable, err := f.svc.TotalNonBillableMinutes(ctx, wo.ID)
	require.NoError(t, err)
	require.Equal(t, 120, nonBillable)
}

func TestDurationMinutes(t *testing.T) {
	base := time.Now()
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{59 * time.Second, 0},
		{time.Minute, 1},
		{61*time.Minute + 59*time.Second, 61},
		{-time.Hour, 0},
	}
	for _, tc := range cases {
		if got := DurationMinutes(base, base.Add(tc.d)); got != tc.want {
			t.Fatalf("DurationMinutes(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}
