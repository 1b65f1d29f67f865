package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"workshop/internal/database"
	"workshop/internal/domain"
	"workshop/internal/events"
	"workshop/internal/impact"
	"workshop/internal/inventory"
	"workshop/internal/metrics"
	"workshop/internal/models"
)

// LineDraft is the client input for one invoice line.
type LineDraft struct {
	InventoryItemID int64   `json:"inventory_item_id"`
	Quantity        float64 `json:"quantity"`
	Description     string  `json:"description"`
}

// PreviewView is a snapshot of a preview session for clients.
type PreviewView struct {
	ID         string                  `json:"id"`
	State      impact.GateState        `json:"state"`
	CanConfirm bool                    `json:"can_confirm"`
	Preview    *impact.Preview         `json:"preview"`
	Counts     map[impact.Severity]int `json:"counts"`
	ExpiresAt  time.Time               `json:"expires_at"`
}

// CommitResult reports a stored invoice and whether stock was deducted for it.
type CommitResult struct {
	Invoice  *models.Invoice `json:"invoice"`
	Deducted bool            `json:"deducted"`
}

type previewSession struct {
	id        string
	invoice   models.Invoice
	gate      *impact.Gate
	expiresAt time.Time
}

// InvoiceService builds invoice lines and runs the stock impact preview that gates
// saving an invoice.
type InvoiceService struct {
	inventory *inventory.Service
	invoices  domain.InvoiceRepository
	mutator   domain.InventoryMutator
	notifier  domain.Notifier
	eventBus  domain.EventPublisher
	ttl       time.Duration
	logger    *zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*previewSession
}

func NewInvoiceService(inv *inventory.Service, invoices domain.InvoiceRepository, mutator domain.InventoryMutator, notifier domain.Notifier, eventBus domain.EventPublisher, ttl time.Duration, logger *zerolog.Logger) *InvoiceService {
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultPreviewTTL) * time.Minute
	}
	return &InvoiceService{
		inventory: inv,
		invoices:  invoices,
		mutator:   mutator,
		notifier:  notifier,
		eventBus:  eventBus,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*previewSession),
	}
}

// BuildLineItem prices a line for an inventory item in consumption units. An
// insufficient stock check is returned alongside the line; the caller decides
// whether to keep it.
func (s *InvoiceService) BuildLineItem(ctx context.Context, draft LineDraft) (*models.InvoiceLineItem, inventory.StockCheck, error) {
	if draft.Quantity <= 0 {
		return nil, inventory.StockCheck{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInvoice)
	}

	check, item, err := s.inventory.Check(ctx, draft.InventoryItemID, draft.Quantity)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, inventory.StockCheck{}, fmt.Errorf("%w: %v", ErrInvalidInvoice, err)
		}
		return nil, inventory.StockCheck{}, err
	}

	description := strings.TrimSpace(draft.Description)
	if description == "" {
		description = item.Name
	}
	itemID := item.ID
	line := &models.InvoiceLineItem{
		Description:     description,
		Quantity:        draft.Quantity,
		UnitPrice:       inventory.CalculatePricePerConsumptionUnit(item.UnitPrice, item.IsBulkProduct, item.BulkQuantity),
		InventoryItemID: &itemID,
	}
	line.Total = line.ComputeTotal()

	if !check.IsValid {
		s.logger.Info().Int64("item_id", item.ID).Str("message", check.Message).Msg("line exceeds available stock")
	}
	return line, check, nil
}

// Preview computes the stock impact of invoice and opens a confirmation gate for it.
func (s *InvoiceService) Preview(ctx context.Context, invoice models.Invoice) (*PreviewView, error) {
	if err := validateInvoice(&invoice); err != nil {
		return nil, err
	}
	invoice.LineItems = append([]models.InvoiceLineItem(nil), invoice.LineItems...)
	if err := s.priceLines(ctx, invoice.LineItems); err != nil {
		return nil, err
	}
	for i := range invoice.LineItems {
		invoice.LineItems[i].Total = invoice.LineItems[i].ComputeTotal()
	}
	invoice.Total = models.SumTotals(invoice.LineItems)

	candidates, err := s.candidates(ctx, invoice.LineItems)
	if err != nil {
		return nil, err
	}

	preview := impact.NewPreview(impact.InvoiceSummary{
		CustomerName: invoice.CustomerName,
		Date:         invoice.Date,
		Total:        invoice.Total,
	}, candidates)

	gate := impact.NewGate()
	gate.Open(preview)

	sess := &previewSession{
		id:        uuid.NewString(),
		invoice:   invoice,
		gate:      gate,
		expiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.purgeLocked()
	s.sessions[sess.id] = sess
	metrics.SetPreviewSessions(len(s.sessions))
	s.mu.Unlock()

	s.logger.Info().Str("preview_id", sess.id).Int("impacts", len(preview.Impacts)).
		Str("state", string(gate.State())).Msg("invoice preview opened")
	return view(sess), nil
}

func validateInvoice(invoice *models.Invoice) error {
	invoice.CustomerName = strings.TrimSpace(invoice.CustomerName)
	if invoice.CustomerName == "" {
		return fmt.Errorf("%w: customer is required", ErrInvalidInvoice)
	}
	if invoice.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInvoice)
	}
	if len(invoice.LineItems) == 0 {
		return fmt.Errorf("%w: at least one line is required", ErrInvalidInvoice)
	}
	for i, line := range invoice.LineItems {
		if strings.TrimSpace(line.Description) == "" {
			return fmt.Errorf("%w: line %d has no description", ErrInvalidInvoice, i+1)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity must be positive", ErrInvalidInvoice, i+1)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line %d has a negative price", ErrInvalidInvoice, i+1)
		}
		if line.TaxRate.Valid && line.TaxRate.Decimal.IsNegative() {
			return fmt.Errorf("%w: line %d has a negative tax rate", ErrInvalidInvoice, i+1)
		}
	}
	return nil
}

// priceLines checks linked lines against the catalog consumption-unit price. A zero
// price takes the catalog price, a container price on a bulk item is rejected and any
// other difference is kept and marked as an override.
func (s *InvoiceService) priceLines(ctx context.Context, lines []models.InvoiceLineItem) error {
	for i := range lines {
		line := &lines[i]
		line.PriceOverride = false
		if line.InventoryItemID == nil {
			continue
		}

		item, err := s.inventory.Item(ctx, *line.InventoryItemID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("%w: %v", ErrInvalidInvoice, err)
			}
			return err
		}

		unit := inventory.CalculatePricePerConsumptionUnit(item.UnitPrice, item.IsBulkProduct, item.BulkQuantity)
		bulk := inventory.Packaging{IsBulk: item.IsBulkProduct, BulkQuantity: item.BulkQuantity}.Bulk()
		switch {
		case line.UnitPrice.IsZero():
			line.UnitPrice = unit
		case line.UnitPrice.Equal(unit):
		case bulk && line.UnitPrice.Equal(item.UnitPrice):
			return fmt.Errorf("%w: line %d is priced per container (%s), the %s price is %s",
				ErrInvalidInvoice, i+1, item.UnitPrice.StringFixed(2),
				inventory.GetUnitLabel(item.UnitOfMeasure, 1), unit.StringFixed(2))
		default:
			line.PriceOverride = true
			s.logger.Info().Int64("item_id", item.ID).Str("price", line.UnitPrice.String()).
				Str("catalog_price", unit.String()).Msg("invoice line price overridden")
		}
	}
	return nil
}

// candidates sums consumption quantities per inventory item and pairs them with
// current stock read from the store.
func (s *InvoiceService) candidates(ctx context.Context, lines []models.InvoiceLineItem) ([]impact.Candidate, error) {
	used := make(map[int64]float64)
	for _, line := range lines {
		if line.InventoryItemID == nil {
			continue
		}
		used[*line.InventoryItemID] += line.Quantity
	}

	ids := make([]int64, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	candidates := make([]impact.Candidate, 0, len(ids))
	for _, id := range ids {
		item, err := s.inventory.Fresh(ctx, id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, fmt.Errorf("%w: %v", ErrInvalidInvoice, err)
			}
			return nil, err
		}
		candidates = append(candidates, impact.Candidate{
			ItemID:        item.ID,
			ItemName:      item.Name,
			CurrentStock:  storedQuantity(item, item.Stock),
			QuantityUsed:  used[id],
			MinStock:      storedQuantity(item, item.MinStock),
			IsBulkProduct: item.IsBulkProduct,
			BulkQuantity:  item.BulkQuantity,
			UnitOfMeasure: item.UnitOfMeasure,
		})
	}
	return candidates, nil
}

// storedQuantity tags a stored stock figure: containers for bulk items, consumption
// units otherwise.
func storedQuantity(item *models.InventoryItem, v float64) inventory.Quantity {
	if item.IsBulkProduct {
		return inventory.Containers(v)
	}
	return inventory.Consumables(v)
}

func (s *InvoiceService) Get(id string) (*PreviewView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return view(sess), nil
}

// Acknowledge sets the confirmation checkbox of a preview.
func (s *InvoiceService) Acknowledge(id string, checked bool) (*PreviewView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.gate.Acknowledge(checked)
	return view(sess), nil
}

// Cancel closes a preview without saving.
func (s *InvoiceService) Cancel(id string) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	sess.gate.Close()
	if sess.gate.State() == impact.GateCommitting {
		return impact.ErrCommitInFlight
	}

	s.mu.Lock()
	delete(s.sessions, id)
	metrics.SetPreviewSessions(len(s.sessions))
	s.mu.Unlock()
	metrics.IncGate("cancelled")
	return nil
}

// Commit saves the invoice if the gate allows it, then asks the inventory mutator to
// deduct the previewed quantities. A failed deduction is reported but the invoice
// stays saved.
func (s *InvoiceService) Commit(ctx context.Context, id string) (*CommitResult, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	var saved models.Invoice
	err = sess.gate.Commit(ctx, func(ctx context.Context) error {
		inv := sess.invoice
		inv.LineItems = append([]models.InvoiceLineItem(nil), sess.invoice.LineItems...)
		if err := s.invoices.CreateInvoice(ctx, &inv); err != nil {
			return err
		}
		saved = inv
		return nil
	})
	if err != nil {
		s.commitFailed(id, err)
		return nil, err
	}
	metrics.IncGate("committed")

	s.mu.Lock()
	delete(s.sessions, id)
	metrics.SetPreviewSessions(len(s.sessions))
	s.mu.Unlock()

	result := &CommitResult{Invoice: &saved}
	if deductions := sess.gate.Preview().Deductions(); len(deductions) > 0 {
		if err := s.mutator.CommitDeduction(ctx, deductions); err != nil {
			s.logger.Error().Err(err).Int64("invoice_id", saved.ID).Msg("stock deduction failed")
			s.notifier.Notify(models.NotifyError, "Stock not updated",
				fmt.Sprintf("Invoice %s was saved but stock could not be deducted: %v", saved.Number, err))
		} else {
			result.Deducted = true
			if err := s.inventory.Refresh(ctx); err != nil {
				s.logger.Error().Err(err).Msg("inventory refresh after deduction failed")
			}
		}
	}

	s.publishEvent(result)
	s.notifier.Notify(models.NotifySuccess, "Invoice saved",
		fmt.Sprintf("Invoice %s for %s saved", saved.Number, saved.CustomerName))
	return result, nil
}

func (s *InvoiceService) commitFailed(id string, err error) {
	switch {
	case errors.Is(err, impact.ErrGateBlocked):
		metrics.IncGate("blocked")
	case errors.Is(err, impact.ErrConfirmationRequired):
		metrics.IncGate("confirmation_required")
	case errors.Is(err, impact.ErrCommitInFlight), errors.Is(err, impact.ErrGateClosed):
		metrics.IncGate("rejected")
	default:
		metrics.IncGate("failed")
		s.logger.Error().Err(err).Str("preview_id", id).Msg("invoice commit failed")
		s.notifier.Notify(models.NotifyError, "Invoice not saved", err.Error())
	}
}

// Report returns the preview of a session for export.
func (s *InvoiceService) Report(id string) (*impact.Preview, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return sess.gate.Preview(), nil
}

func (s *InvoiceService) session(id string) (*previewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrPreviewNotFound
	}
	if s.now().After(sess.expiresAt) && sess.gate.State() != impact.GateCommitting {
		delete(s.sessions, id)
		metrics.SetPreviewSessions(len(s.sessions))
		return nil, ErrPreviewNotFound
	}
	return sess, nil
}

func (s *InvoiceService) purgeLocked() {
	now := s.now()
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) && sess.gate.State() != impact.GateCommitting {
			delete(s.sessions, id)
		}
	}
}

func (s *InvoiceService) publishEvent(result *CommitResult) {
	if s.eventBus == nil {
		return
	}
	payload := events.InvoiceEventPayload{
		InvoiceID:    result.Invoice.ID,
		Number:       result.Invoice.Number,
		CustomerName: result.Invoice.CustomerName,
		Total:        result.Invoice.Total,
		Deducted:     result.Deducted,
	}
	if err := s.eventBus.PublishJSON(events.EventInvoiceCommitted, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", events.EventInvoiceCommitted).Int64("invoice_id", result.Invoice.ID).Msg("publish event error")
	}
}

func view(sess *previewSession) *PreviewView {
	preview := sess.gate.Preview()
	return &PreviewView{
		ID:         sess.id,
		State:      sess.gate.State(),
		CanConfirm: sess.gate.CanConfirm(),
		Preview:    preview,
		Counts:     preview.Counts(),
		ExpiresAt:  sess.expiresAt,
	}
}
