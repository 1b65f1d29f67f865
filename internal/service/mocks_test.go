package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"workshop/internal/models"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockRepo) UpdateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockRepo) DeleteBooking(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepo) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockRepo) CreateJob(ctx context.Context, job *models.Job) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockRepo) GetJobByBookingRef(ctx context.Context, ref string) (*models.Job, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *mockRepo) FindJobs(ctx context.Context, customerName, vehicle string, date time.Time) ([]*models.Job, error) {
	args := m.Called(ctx, customerName, vehicle, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Job), args.Error(1)
}

func (m *mockRepo) UpdateJob(ctx context.Context, job *models.Job) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockRepo) CreateCustomer(ctx context.Context, c *models.Customer) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockRepo) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *mockRepo) UpdateCustomer(ctx context.Context, id int64, patch models.CustomerPatch) error {
	return m.Called(ctx, id, patch).Error(0)
}

func (m *mockRepo) RecordVisit(ctx context.Context, customerID, bookingID int64, amount decimal.Decimal, at time.Time) error {
	return m.Called(ctx, customerID, bookingID, amount, at).Error(0)
}

func (m *mockRepo) FindVehicle(ctx context.Context, customerID int64, vehicle string) (*models.VehicleInfo, error) {
	args := m.Called(ctx, customerID, vehicle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VehicleInfo), args.Error(1)
}

func (m *mockRepo) AddVehicle(ctx context.Context, info *models.VehicleInfo) error {
	return m.Called(ctx, info).Error(0)
}

func (m *mockRepo) AddNote(ctx context.Context, note *models.CustomerNote) error {
	return m.Called(ctx, note).Error(0)
}

func (m *mockRepo) FindTechnicianName(ctx context.Context, id int64) (*string, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

type notification struct {
	kind, title, message string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(kind, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{kind: kind, title: title, message: message})
}

func (n *fakeNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, s := range n.sent {
		out[i] = s.kind
	}
	return out
}

type mockInventoryRepo struct {
	mock.Mock
}

func (m *mockInventoryRepo) ListInventoryItems(ctx context.Context) ([]*models.InventoryItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.InventoryItem), args.Error(1)
}

func (m *mockInventoryRepo) GetInventoryItem(ctx context.Context, id int64) (*models.InventoryItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryItem), args.Error(1)
}

type mockInvoiceRepo struct {
	mock.Mock
}

func (m *mockInvoiceRepo) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	args := m.Called(ctx, invoice)
	if args.Error(0) == nil {
		invoice.ID = 1
		invoice.Number = "INV-1"
	}
	return args.Error(0)
}

type mockMutator struct {
	mock.Mock
}

func (m *mockMutator) CommitDeduction(ctx context.Context, deductions map[int64]float64) error {
	return m.Called(ctx, deductions).Error(0)
}
