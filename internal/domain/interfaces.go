package domain

import (
	"context"
	"time"

	"workshop/internal/models"

	"github.com/shopspring/decimal"
)

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	DeleteBooking(ctx context.Context, id int64) error
	ListBookings(ctx context.Context) ([]*models.Booking, error)
}

type JobRepository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJobByBookingRef(ctx context.Context, ref string) (*models.Job, error)
	// FindJobs returns jobs matching customer, vehicle and day ordered by id ascending.
	FindJobs(ctx context.Context, customerName, vehicle string, date time.Time) ([]*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
}

type CustomerRepository interface {
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, patch models.CustomerPatch) error
	// RecordVisit stores a visit with its spend and recomputes the customer's running
	// totals in a single transaction.
	RecordVisit(ctx context.Context, customerID, bookingID int64, amount decimal.Decimal, at time.Time) error
	FindVehicle(ctx context.Context, customerID int64, vehicle string) (*models.VehicleInfo, error)
	AddVehicle(ctx context.Context, info *models.VehicleInfo) error
	AddNote(ctx context.Context, note *models.CustomerNote) error
}

// Repository is the record store the booking propagation engine works against.
type Repository interface {
	BookingRepository
	JobRepository
	CustomerRepository
	TechnicianLookup
}

type InventoryRepository interface {
	ListInventoryItems(ctx context.Context) ([]*models.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id int64) (*models.InventoryItem, error)
}

type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
}

// TechnicianLookup resolves a technician display name. A nil name means unknown.
type TechnicianLookup interface {
	FindTechnicianName(ctx context.Context, id int64) (*string, error)
}

// InventoryMutator performs the stock decrement after an invoice commit.
// Quantities are consumption units keyed by inventory item id.
type InventoryMutator interface {
	CommitDeduction(ctx context.Context, deductions map[int64]float64) error
}

// Notifier surfaces outcomes to the user. Calls never block on delivery.
type Notifier interface {
	Notify(kind, title, message string)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type EditStateRepository interface {
	GetEditState(ctx context.Context, bookingID int64) (*models.EditState, error)
	SetEditState(ctx context.Context, state *models.EditState) error
	ClearEditState(ctx context.Context, bookingID int64) error
	ListEditStates(ctx context.Context) ([]*models.EditState, error)
}
