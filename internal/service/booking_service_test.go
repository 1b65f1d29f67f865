package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"workshop/internal/database"
	"workshop/internal/events"
	"workshop/internal/models"
	"workshop/internal/repository"
)

var (
	fixedNow    = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	bookingDate = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
)

func newTestBookingService(t *testing.T) (*BookingService, *mockRepo, *fakeNotifier, *events.EventBus) {
	t.Helper()
	repo := new(mockRepo)
	notifier := &fakeNotifier{}
	bus := events.NewEventBus()
	logger := zerolog.New(io.Discard)

	board := NewBookingBoard(repository.NewMemoryEditStateRepository(time.Hour), &logger)
	svc := NewBookingService(repo, board, notifier, bus, "", &logger)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, notifier, bus
}

func storedBooking() *models.Booking {
	tech := int64(3)
	return &models.Booking{
		ID:            42,
		Ref:           "ref-42",
		CustomerName:  "Ann Lee",
		CustomerPhone: "555-0101",
		Vehicle:       "2018 Honda Civic",
		Service:       "Oil change",
		Date:          bookingDate,
		Time:          "09:30",
		Duration:      60,
		Status:        models.StatusPending,
		TechnicianID:  &tech,
	}
}

func expectWrite(repo *mockRepo, stored *models.Booking) {
	repo.On("GetBooking", mock.Anything, stored.ID).Return(stored, nil).Once()
	repo.On("UpdateBooking", mock.Anything, mock.MatchedBy(func(b *models.Booking) bool {
		return b.ID == stored.ID && b.Ref == stored.Ref
	})).Return(nil).Once()
}

func expectNoJob(repo *mockRepo) {
	repo.On("GetJobByBookingRef", mock.Anything, mock.Anything).Return(nil, database.ErrNotFound)
	repo.On("FindJobs", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]*models.Job{}, nil)
}

func expectNoCustomer(repo *mockRepo) {
	repo.On("GetCustomerByPhone", mock.Anything, mock.Anything).Return(nil, database.ErrNotFound)
}

func expectRefresh(repo *mockRepo, list ...*models.Booking) {
	repo.On("ListBookings", mock.Anything).Return(list, nil)
}

func stepOutcomes(report *UpdateReport) map[string]string {
	out := make(map[string]string)
	for _, res := range report.Steps {
		out[res.Name] = res.Outcome()
	}
	return out
}

func TestUpdateBooking_FullPropagation(t *testing.T) {
	svc, repo, notifier, bus := newTestBookingService(t)
	ctx := context.Background()

	var published []events.BookingEventPayload
	bus.Subscribe(events.EventBookingUpdated, func(e *events.Event) error {
		var p events.BookingEventPayload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		published = append(published, p)
		return nil
	})

	stored := storedBooking()
	edit := stored.Clone()
	edit.Ref = ""
	edit.Status = models.StatusConfirmed
	edit.CustomerEmail = " ann@example.com "
	edit.Notes = "  check brakes  "

	expectWrite(repo, stored)

	tech := "Sam"
	repo.On("GetJobByBookingRef", mock.Anything, "ref-42").Return(&models.Job{ID: 7, BookingRef: "ref-42"}, nil)
	repo.On("FindTechnicianName", mock.Anything, int64(3)).Return(&tech, nil)
	repo.On("UpdateJob", mock.Anything, mock.MatchedBy(func(j *models.Job) bool {
		return j.ID == 7 &&
			j.Status == models.JobStatusPending &&
			j.TechnicianName == "Sam" &&
			j.TimeEstimate == "09:30 (60 min)" &&
			j.Vehicle == "2018 Honda Civic"
	})).Return(nil)

	customer := &models.Customer{ID: 11, Phone: "555-0101", Email: "  "}
	repo.On("GetCustomerByPhone", mock.Anything, "555-0101").Return(customer, nil)
	repo.On("UpdateCustomer", mock.Anything, int64(11), mock.MatchedBy(func(p models.CustomerPatch) bool {
		return p.LastVisit != nil && p.LastVisit.Equal(fixedNow) && p.Email != nil && *p.Email == "ann@example.com"
	})).Return(nil)
	repo.On("FindVehicle", mock.Anything, int64(11), "2018 Honda Civic").Return(nil, database.ErrNotFound)
	repo.On("AddVehicle", mock.Anything, mock.MatchedBy(func(v *models.VehicleInfo) bool {
		return v.CustomerID == 11 && v.Vehicle == "2018 Honda Civic"
	})).Return(nil)
	repo.On("AddNote", mock.Anything, mock.MatchedBy(func(n *models.CustomerNote) bool {
		return n.CustomerID == 11 && n.Note == "check brakes"
	})).Return(nil)

	updated := stored.Clone()
	updated.Status = models.StatusConfirmed
	expectRefresh(repo, updated)

	report, err := svc.UpdateBooking(ctx, int64(42), edit, nil)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, map[string]string{
		StepJobSync:  OutcomeOK,
		StepCustomer: OutcomeOK,
		StepVehicle:  OutcomeOK,
		StepNotes:    OutcomeOK,
	}, stepOutcomes(report))
	assert.True(t, report.Refreshed)
	assert.Equal(t, "ref-42", report.Booking.Ref)
	repo.AssertNotCalled(t, "RecordVisit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)

	list := svc.Bookings()
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusConfirmed, list[0].Status)

	state := svc.board.EditState(ctx, 42)
	require.NotNil(t, state)
	assert.Equal(t, models.EditCommitted, state.Status)

	assert.Equal(t, []string{models.NotifySuccess}, notifier.kinds())
	require.Len(t, published, 1)
	assert.Equal(t, OutcomeOK, published[0].Steps[StepJobSync])
}

func TestUpdateBooking_StringID(t *testing.T) {
	svc, repo, _, _ := newTestBookingService(t)
	stored := storedBooking()

	expectWrite(repo, stored)
	expectNoJob(repo)
	expectNoCustomer(repo)
	expectRefresh(repo, stored)

	report, err := svc.UpdateBooking(context.Background(), "42", stored.Clone(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), report.Booking.ID)
	repo.AssertCalled(t, "GetBooking", mock.Anything, int64(42))
}

func TestUpdateBooking_InvalidInput(t *testing.T) {
	svc, repo, notifier, _ := newTestBookingService(t)
	ctx := context.Background()

	_, err := svc.UpdateBooking(ctx, "abc", storedBooking(), nil)
	assert.ErrorIs(t, err, models.ErrInvalidID)

	edit := storedBooking()
	edit.CustomerName = " "
	_, err = svc.UpdateBooking(ctx, 42, edit, nil)
	assert.ErrorIs(t, err, ErrInvalidBooking)

	edit = storedBooking()
	edit.Status = "archived"
	_, err = svc.UpdateBooking(ctx, 42, edit, nil)
	assert.ErrorIs(t, err, ErrInvalidBooking)

	repo.AssertNotCalled(t, "GetBooking", mock.Anything, mock.Anything)
	assert.Empty(t, svc.Bookings())
	assert.Equal(t, []string{models.NotifyError, models.NotifyError, models.NotifyError}, notifier.kinds())
}

func TestUpdateBooking_PrimaryWriteFailure(t *testing.T) {
	svc, repo, notifier, _ := newTestBookingService(t)
	ctx := context.Background()

	stored := storedBooking()
	svc.board.Replace([]*models.Booking{stored})

	edit := stored.Clone()
	edit.Status = models.StatusCancelled

	repo.On("GetBooking", mock.Anything, int64(42)).Return(stored, nil)
	repo.On("UpdateBooking", mock.Anything, mock.Anything).Return(errors.New("constraint violation"))
	expectRefresh(repo, stored)

	report, err := svc.UpdateBooking(ctx, 42, edit, nil)
	require.Error(t, err)
	assert.Nil(t, report)

	list := svc.Bookings()
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusPending, list[0].Status)

	state := svc.board.EditState(ctx, 42)
	require.NotNil(t, state)
	assert.Equal(t, models.EditRolledBack, state.Status)
	assert.Contains(t, state.Error, "constraint violation")

	assert.Equal(t, []string{models.NotifyError}, notifier.kinds())
	repo.AssertNotCalled(t, "GetJobByBookingRef", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "GetCustomerByPhone", mock.Anything, mock.Anything)
	repo.AssertCalled(t, "ListBookings", mock.Anything)
}

func TestUpdateBooking_RollbackWithoutRefresh(t *testing.T) {
	svc, repo, _, _ := newTestBookingService(t)
	ctx := context.Background()

	stored := storedBooking()
	svc.board.Replace([]*models.Booking{stored})

	edit := stored.Clone()
	edit.Notes = "changed"

	repo.On("GetBooking", mock.Anything, int64(42)).Return(nil, database.ErrNotFound)
	repo.On("ListBookings", mock.Anything).Return(nil, errors.New("store offline"))

	_, err := svc.UpdateBooking(ctx, 42, edit, nil)
	assert.ErrorIs(t, err, database.ErrNotFound)

	list := svc.Bookings()
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Notes)
}

func TestUpdateBooking_JobFailureIsIsolated(t *testing.T) {
	svc, repo, notifier, _ := newTestBookingService(t)
	ctx := context.Background()

	stored := storedBooking()
	edit := stored.Clone()
	edit.Service = "Brake pads"

	expectWrite(repo, stored)
	repo.On("GetJobByBookingRef", mock.Anything, "ref-42").Return(nil, errors.New("lookup timeout"))
	customer := &models.Customer{ID: 11, Phone: "555-0101", Email: "ann@example.com"}
	repo.On("GetCustomerByPhone", mock.Anything, "555-0101").Return(customer, nil)
	repo.On("UpdateCustomer", mock.Anything, int64(11), mock.Anything).Return(nil)
	repo.On("FindVehicle", mock.Anything, int64(11), "2018 Honda Civic").Return(&models.VehicleInfo{ID: 1}, nil)

	updated := stored.Clone()
	updated.Service = "Brake pads"
	expectRefresh(repo, updated)

	report, err := svc.UpdateBooking(ctx, 42, edit, nil)
	require.NoError(t, err)

	outcomes := stepOutcomes(report)
	assert.Equal(t, OutcomeFailed, outcomes[StepJobSync])
	assert.Equal(t, OutcomeOK, outcomes[StepCustomer])
	assert.Equal(t, OutcomeSkipped, outcomes[StepVehicle])
	assert.Equal(t, OutcomeSkipped, outcomes[StepNotes])

	res, ok := report.Step(StepJobSync)
	require.True(t, ok)
	assert.EqualError(t, res.Err, "lookup timeout")

	list := svc.Bookings()
	require.Len(t, list, 1)
	assert.Equal(t, "Brake pads", list[0].Service)
	assert.Equal(t, []string{models.NotifySuccess}, notifier.kinds())
	repo.AssertNotCalled(t, "AddVehicle", mock.Anything, mock.Anything)
}

func TestUpdateBooking_CustomerFailureDoesNotBlockJob(t *testing.T) {
	svc, repo, _, _ := newTestBookingService(t)
	stored := storedBooking()
	stored.TechnicianID = nil

	expectWrite(repo, stored)
	repo.On("GetJobByBookingRef", mock.Anything, "ref-42").Return(&models.Job{ID: 7}, nil)
	repo.On("UpdateJob", mock.Anything, mock.MatchedBy(func(j *models.Job) bool {
		return j.TechnicianName == models.DefaultTechnicianName
	})).Return(nil)
	repo.On("GetCustomerByPhone", mock.Anything, "555-0101").Return(nil, errors.New("connection reset"))
	expectRefresh(repo, stored)

	report, err := svc.UpdateBooking(context.Background(), 42, stored.Clone(), nil)
	require.NoError(t, err)

	outcomes := stepOutcomes(report)
	assert.Equal(t, OutcomeOK, outcomes[StepJobSync])
	assert.Equal(t, OutcomeFailed, outcomes[StepCustomer])
	assert.Equal(t, OutcomeSkipped, outcomes[StepVehicle])
	assert.Equal(t, OutcomeSkipped, outcomes[StepNotes])
	repo.AssertNotCalled(t, "FindTechnicianName", mock.Anything, mock.Anything)
}

func TestUpdateBooking_SpendFallback(t *testing.T) {
	svc, repo, _, _ := newTestBookingService(t)
	stored := storedBooking()
	edit := stored.Clone()
	edit.Status = models.StatusCompleted
	cost := decimal.NewFromInt(80)

	expectWrite(repo, stored)
	expectNoJob(repo)
	customer := &models.Customer{ID: 11, Phone: "555-0101", Email: "ann@example.com"}
	repo.On("GetCustomerByPhone", mock.Anything, "555-0101").Return(customer, nil)
	repo.On("RecordVisit", mock.Anything, int64(11), int64(42), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(80))
	}), mock.Anything).Return(errors.New("simulated store error"))
	repo.On("UpdateCustomer", mock.Anything, int64(11), mock.MatchedBy(func(p models.CustomerPatch) bool {
		return p.LastVisit != nil && p.LastVisit.Equal(fixedNow) && p.Email == nil
	})).Return(nil).Once()
	repo.On("FindVehicle", mock.Anything, int64(11), mock.Anything).Return(&models.VehicleInfo{ID: 1}, nil)
	expectRefresh(repo, stored)

	report, err := svc.UpdateBooking(context.Background(), 42, edit, &cost)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, stepOutcomes(report)[StepCustomer])
	repo.AssertExpectations(t)
}

func TestUpdateBooking_SpendRecorded(t *testing.T) {
	svc, repo, _, _ := newTestBookingService(t)
	stored := storedBooking()
	edit := stored.Clone()
	edit.Status = models.StatusCompleted
	edit.Cost = decimal.NewNullDecimal(decimal.RequireFromString("120.50"))

	expectWrite(repo, stored)
	expectNoJob(repo)
	customer := &models.Customer{ID: 11, Phone: "555-0101", Email: "ann@example.com"}
	repo.On("GetCustomerByPhone", mock.Anything, "555-0101").Return(customer, nil)
	repo.On("RecordVisit", mock.Anything, int64(11), int64(42), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.RequireFromString("120.5"))
	}), fixedNow).Return(nil).Once()
	repo.On("FindVehicle", mock.Anything, int64(11), mock.Anything).Return(&models.VehicleInfo{ID: 1}, nil)
	expectRefresh(repo, stored)

	_, err := svc.UpdateBooking(context.Background(), 42, edit, nil)
	require.NoError(t, err)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "UpdateCustomer", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateBooking_NoSpendUnlessCompleted(t *testing.T) {
	svc, repo, _, _ := newTestBookingService(t)
	stored := storedBooking()
	cost := decimal.NewFromInt(80)

	expectWrite(repo, stored)
	expectNoJob(repo)
	customer := &models.Customer{ID: 11, Phone: "555-0101", Email: "old@example.com"}
	repo.On("GetCustomerByPhone", mock.Anything, "555-0101").Return(customer, nil)
	repo.On("UpdateCustomer", mock.Anything, int64(11), mock.MatchedBy(func(p models.CustomerPatch) bool {
		return p.Email == nil
	})).Return(nil)
	repo.On("FindVehicle", mock.Anything, int64(11), mock.Anything).Return(&models.VehicleInfo{ID: 1}, nil)
	expectRefresh(repo, stored)

	edit := stored.Clone()
	edit.CustomerEmail = "new@example.com"
	_, err := svc.UpdateBooking(context.Background(), 42, edit, &cost)
	require.NoError(t, err)
	repo.AssertNotCalled(t, "RecordVisit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateBooking_FirstMatchingJob(t *testing.T) {
	svc, repo, _, _ := newTestBookingService(t)
	stored := storedBooking()

	expectWrite(repo, stored)
	repo.On("GetJobByBookingRef", mock.Anything, "ref-42").Return(nil, database.ErrNotFound)
	repo.On("FindJobs", mock.Anything, "Ann Lee", "2018 Honda Civic", bookingDate).
		Return([]*models.Job{{ID: 5}, {ID: 9}}, nil)
	repo.On("FindTechnicianName", mock.Anything, int64(3)).Return(nil, errors.New("lookup failed"))
	repo.On("UpdateJob", mock.Anything, mock.MatchedBy(func(j *models.Job) bool {
		return j.ID == 5 && j.BookingRef == "ref-42" && j.TechnicianName == models.DefaultTechnicianName
	})).Return(nil).Once()
	expectNoCustomer(repo)
	expectRefresh(repo, stored)

	report, err := svc.UpdateBooking(context.Background(), 42, stored.Clone(), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, stepOutcomes(report)[StepJobSync])
	repo.AssertNumberOfCalls(t, "UpdateJob", 1)
	repo.AssertExpectations(t)
}

func TestUpdateBooking_SkipsJobsLinkedElsewhere(t *testing.T) {
	svc, repo, _, _ := newTestBookingService(t)
	stored := storedBooking()

	expectWrite(repo, stored)
	repo.On("GetJobByBookingRef", mock.Anything, "ref-42").Return(nil, database.ErrNotFound)
	repo.On("FindJobs", mock.Anything, "Ann Lee", "2018 Honda Civic", bookingDate).
		Return([]*models.Job{{ID: 5, BookingRef: "ref-7"}, {ID: 9}}, nil)
	repo.On("FindTechnicianName", mock.Anything, int64(3)).Return(nil, nil)
	repo.On("UpdateJob", mock.Anything, mock.MatchedBy(func(j *models.Job) bool {
		return j.ID == 9 && j.BookingRef == "ref-42"
	})).Return(nil).Once()
	expectNoCustomer(repo)
	expectRefresh(repo, stored)

	report, err := svc.UpdateBooking(context.Background(), 42, stored.Clone(), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, stepOutcomes(report)[StepJobSync])
	repo.AssertExpectations(t)
}

func TestUpdateBooking_NoJobIsNotCreated(t *testing.T) {
	svc, repo, _, _ := newTestBookingService(t)
	stored := storedBooking()

	expectWrite(repo, stored)
	expectNoJob(repo)
	expectNoCustomer(repo)
	expectRefresh(repo, stored)

	report, err := svc.UpdateBooking(context.Background(), 42, stored.Clone(), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, stepOutcomes(report)[StepJobSync])
	repo.AssertNotCalled(t, "CreateJob", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "UpdateJob", mock.Anything, mock.Anything)
}

func TestTimeEstimate(t *testing.T) {
	assert.Equal(t, "", timeEstimate("", 30))
	assert.Equal(t, "10:00", timeEstimate("10:00", 0))
	assert.Equal(t, "10:00 (30 min)", timeEstimate("10:00", 30))
}
