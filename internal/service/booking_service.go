package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"workshop/internal/database"
	"workshop/internal/domain"
	"workshop/internal/events"
	"workshop/internal/metrics"
	"workshop/internal/models"
)

const (
	StepJobSync  = "job_sync"
	StepCustomer = "customer_reconcile"
	StepVehicle  = "vehicle_dedup"
	StepNotes    = "note_propagation"
)

// UpdateReport describes a booking edit whose primary write succeeded.
type UpdateReport struct {
	Booking   *models.Booking `json:"booking"`
	Steps     []StepResult    `json:"steps"`
	Refreshed bool            `json:"refreshed"`
}

// Step returns the result for the named step.
func (r *UpdateReport) Step(name string) (StepResult, bool) {
	for _, res := range r.Steps {
		if res.Name == name {
			return res, true
		}
	}
	return StepResult{}, false
}

// BookingService applies booking edits and propagates them to the mirrored job and
// the customer record. Only the booking write itself can fail an update.
type BookingService struct {
	repo        domain.Repository
	board       *BookingBoard
	notifier    domain.Notifier
	eventBus    domain.EventPublisher
	defaultTech string
	logger      *zerolog.Logger
	now         func() time.Time
}

func NewBookingService(repo domain.Repository, board *BookingBoard, notifier domain.Notifier, eventBus domain.EventPublisher, defaultTech string, logger *zerolog.Logger) *BookingService {
	if strings.TrimSpace(defaultTech) == "" {
		defaultTech = models.DefaultTechnicianName
	}
	return &BookingService{
		repo:        repo,
		board:       board,
		notifier:    notifier,
		eventBus:    eventBus,
		defaultTech: defaultTech,
		logger:      logger,
		now:         time.Now,
	}
}

// Bookings returns the board's current list.
func (s *BookingService) Bookings() []*models.Booking {
	return s.board.Bookings()
}

func (s *BookingService) EditStates(ctx context.Context) []*models.EditState {
	return s.board.EditStates(ctx)
}

// Refresh reloads the board from the store.
func (s *BookingService) Refresh(ctx context.Context) error {
	bookings, err := s.repo.ListBookings(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh bookings: %w", err)
	}
	s.board.Replace(bookings)
	return nil
}

// UpdateBooking writes edit to the booking identified by rawID, which may be a number
// or a numeric string. cost, when set, overrides the booking's own cost for spend
// recording. The returned error is non-nil only when the booking write failed.
func (s *BookingService) UpdateBooking(ctx context.Context, rawID interface{}, edit *models.Booking, cost *decimal.Decimal) (*UpdateReport, error) {
	id, err := models.ParseID(rawID)
	if err == nil {
		err = validateEdit(edit)
	}
	if err != nil {
		s.notifier.Notify(models.NotifyError, "Booking update failed", err.Error())
		metrics.IncBookingUpdate("invalid")
		return nil, err
	}

	proposed := edit.Clone()
	proposed.ID = id

	s.board.ApplyOptimistic(ctx, proposed)

	saved, err := s.writeBooking(ctx, proposed)
	if err != nil {
		s.failUpdate(ctx, id, err)
		return nil, err
	}
	s.board.Commit(ctx, id)
	metrics.IncBookingUpdate("ok")

	var customer *models.Customer
	results := runSteps(ctx, s.logger, id,
		step{name: StepJobSync, run: func(ctx context.Context) error {
			return s.syncJob(ctx, saved)
		}},
		step{name: StepCustomer, run: func(ctx context.Context) (err error) {
			customer, err = s.reconcileCustomer(ctx, saved, cost)
			return err
		}},
		step{name: StepVehicle, run: func(ctx context.Context) error {
			return s.linkVehicle(ctx, customer, saved)
		}},
		step{name: StepNotes, run: func(ctx context.Context) error {
			return s.propagateNotes(ctx, customer, saved)
		}},
	)

	report := &UpdateReport{Booking: saved, Steps: results}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", id).Msg("booking list refresh failed")
	} else {
		report.Refreshed = true
	}

	s.publishEvent(saved, results)
	s.notifier.Notify(models.NotifySuccess, "Booking updated",
		fmt.Sprintf("Booking for %s on %s saved", saved.CustomerName, saved.DateKey()))
	return report, nil
}

func validateEdit(edit *models.Booking) error {
	if edit == nil {
		return fmt.Errorf("%w: empty booking", ErrInvalidBooking)
	}
	if strings.TrimSpace(edit.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidBooking)
	}
	if edit.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidBooking)
	}
	if edit.Status != "" && !models.ValidBookingStatus(edit.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidBooking, edit.Status)
	}
	if edit.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidBooking)
	}
	if edit.Cost.Valid && edit.Cost.Decimal.IsNegative() {
		return fmt.Errorf("%w: negative cost", ErrInvalidBooking)
	}
	return nil
}

// writeBooking locates the stored record and overwrites its editable fields.
func (s *BookingService) writeBooking(ctx context.Context, proposed *models.Booking) (*models.Booking, error) {
	current, err := s.repo.GetBooking(ctx, proposed.ID)
	if err != nil {
		return nil, err
	}

	saved := proposed.Clone()
	saved.Ref = current.Ref
	saved.CreatedAt = current.CreatedAt
	if saved.Status == "" {
		saved.Status = current.Status
	}

	if err := s.repo.UpdateBooking(ctx, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *BookingService) failUpdate(ctx context.Context, id int64, err error) {
	s.logger.Error().Err(err).Int64("booking_id", id).Msg("booking update failed")
	metrics.IncBookingUpdate("failed")

	s.board.Rollback(ctx, id, err)
	if refreshErr := s.Refresh(ctx); refreshErr != nil {
		s.logger.Error().Err(refreshErr).Int64("booking_id", id).Msg("booking list refresh after failure failed")
	}
	s.notifier.Notify(models.NotifyError, "Booking update failed", err.Error())
}

// syncJob mirrors the booking onto its job. The job is found by the booking ref; jobs
// created before refs existed (empty ref) are matched by customer, vehicle and date,
// lowest id first, and get the ref written back.
func (s *BookingService) syncJob(ctx context.Context, b *models.Booking) error {
	job, err := s.findJob(ctx, b)
	if err != nil {
		return err
	}
	if job == nil {
		return skip("no job for booking")
	}

	job.BookingRef = b.Ref
	job.CustomerName = b.CustomerName
	job.Vehicle = b.Vehicle
	job.Service = b.Service
	job.Status = models.JobStatusFor(b.Status)
	job.TechnicianName = s.technicianName(ctx, b.TechnicianID)
	job.Date = b.Date
	job.TimeEstimate = timeEstimate(b.Time, b.Duration)

	return s.repo.UpdateJob(ctx, job)
}

func (s *BookingService) findJob(ctx context.Context, b *models.Booking) (*models.Job, error) {
	if b.Ref != "" {
		job, err := s.repo.GetJobByBookingRef(ctx, b.Ref)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	matches, err := s.repo.FindJobs(ctx, b.CustomerName, b.Vehicle, b.Date)
	if err != nil {
		return nil, err
	}
	// jobs already linked to another booking are never taken over
	jobs := matches[:0]
	for _, job := range matches {
		if job.BookingRef == "" || job.BookingRef == b.Ref {
			jobs = append(jobs, job)
		}
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	if len(jobs) > 1 {
		s.logger.Warn().Int64("booking_id", b.ID).Int("matches", len(jobs)).Int64("job_id", jobs[0].ID).
			Msg("several jobs match booking, using the first")
	}
	return jobs[0], nil
}

func (s *BookingService) technicianName(ctx context.Context, id *int64) string {
	if id == nil {
		return s.defaultTech
	}
	name, err := s.repo.FindTechnicianName(ctx, *id)
	if err != nil {
		s.logger.Warn().Err(err).Int64("technician_id", *id).Msg("technician lookup failed")
		return s.defaultTech
	}
	if name == nil || strings.TrimSpace(*name) == "" {
		return s.defaultTech
	}
	return *name
}

func timeEstimate(at string, duration int) string {
	switch {
	case at == "":
		return ""
	case duration > 0:
		return fmt.Sprintf("%s (%d min)", at, duration)
	default:
		return at
	}
}

// reconcileCustomer updates the customer found by the booking's phone and returns it
// for the dependent steps.
func (s *BookingService) reconcileCustomer(ctx context.Context, b *models.Booking, cost *decimal.Decimal) (*models.Customer, error) {
	phone := strings.TrimSpace(b.CustomerPhone)
	if phone == "" {
		return nil, skip("booking has no phone")
	}

	customer, err := s.repo.GetCustomerByPhone(ctx, phone)
	if errors.Is(err, database.ErrNotFound) {
		return nil, skip("no customer with phone %s", phone)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	patch := models.CustomerPatch{LastVisit: &now}
	if email := strings.TrimSpace(b.CustomerEmail); email != "" && strings.TrimSpace(customer.Email) == "" {
		patch.Email = &email
	}

	if amount, ok := spendFor(b, cost); ok {
		err := s.repo.RecordVisit(ctx, customer.ID, b.ID, amount, now)
		if err != nil {
			// fall back to the plain last_visit update
			s.logger.Warn().Err(err).Int64("booking_id", b.ID).Int64("customer_id", customer.ID).
				Msg("recording visit spend failed, updating last visit only")
		} else {
			patch.LastVisit = nil
		}
	}

	if !patch.Empty() {
		if err := s.repo.UpdateCustomer(ctx, customer.ID, patch); err != nil {
			return customer, err
		}
	}
	return customer, nil
}

// spendFor returns the amount to record for a completed booking.
func spendFor(b *models.Booking, cost *decimal.Decimal) (decimal.Decimal, bool) {
	if b.Status != models.StatusCompleted {
		return decimal.Zero, false
	}
	amount := b.Cost
	if cost != nil {
		amount = decimal.NewNullDecimal(*cost)
	}
	if !amount.Valid || !amount.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return amount.Decimal, true
}

// linkVehicle records the booking's vehicle for the customer unless the exact same
// description is already there. Descriptions are compared as-is.
func (s *BookingService) linkVehicle(ctx context.Context, customer *models.Customer, b *models.Booking) error {
	if customer == nil {
		return skip("customer not resolved")
	}
	if strings.TrimSpace(b.Vehicle) == "" {
		return skip("booking has no vehicle")
	}

	_, err := s.repo.FindVehicle(ctx, customer.ID, b.Vehicle)
	if err == nil {
		return skip("vehicle already recorded")
	}
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}
	return s.repo.AddVehicle(ctx, &models.VehicleInfo{CustomerID: customer.ID, Vehicle: b.Vehicle})
}

func (s *BookingService) propagateNotes(ctx context.Context, customer *models.Customer, b *models.Booking) error {
	if customer == nil {
		return skip("customer not resolved")
	}
	note := strings.TrimSpace(b.Notes)
	if note == "" {
		return skip("booking has no notes")
	}
	return s.repo.AddNote(ctx, &models.CustomerNote{CustomerID: customer.ID, Note: note})
}

func (s *BookingService) publishEvent(booking *models.Booking, results []StepResult) {
	if s.eventBus == nil {
		return
	}

	steps := make(map[string]string, len(results))
	for _, res := range results {
		steps[res.Name] = res.Outcome()
	}
	payload := events.BookingEventPayload{
		BookingID: booking.ID,
		Ref:       booking.Ref,
		Customer:  booking.CustomerName,
		Status:    booking.Status,
		Date:      booking.Date,
		Steps:     steps,
	}

	if err := s.eventBus.PublishJSON(events.EventBookingUpdated, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", events.EventBookingUpdated).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
