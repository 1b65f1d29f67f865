package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"workshop/internal/database"
	"workshop/internal/impact"
	"workshop/internal/inventory"
	"workshop/internal/models"
	"workshop/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// bookingUpdateRequest is a booking edit. Ids in the body may be numbers or numeric
// strings. VisitCost overrides the booking cost when a completed visit is recorded
// against the customer.
type bookingUpdateRequest struct {
	models.Booking
	ID           *models.FlexibleID `json:"id,omitempty"`
	TechnicianID *models.FlexibleID `json:"technician_id,omitempty"`
	ServiceID    *models.FlexibleID `json:"service_id,omitempty"`
	BayID        *models.FlexibleID `json:"bay_id,omitempty"`
	VisitCost    *decimal.Decimal   `json:"visit_cost,omitempty"`
}

// edit resolves the body ids onto the booking. A body id must match the path id.
func (req *bookingUpdateRequest) edit(pathID string) (*models.Booking, error) {
	id, err := models.ParseID(pathID)
	if err != nil {
		return nil, err
	}
	if req.ID != nil && req.ID.Int64() != id {
		return nil, fmt.Errorf("%w: body id %d does not match path id %d", models.ErrInvalidID, req.ID.Int64(), id)
	}

	booking := req.Booking.Clone()
	booking.ID = id
	booking.TechnicianID = req.TechnicianID.Ptr()
	booking.ServiceID = req.ServiceID.Ptr()
	booking.BayID = req.BayID.Ptr()
	return booking, nil
}

type acknowledgeRequest struct {
	Checked bool `json:"checked"`
}

type inventoryView struct {
	*models.InventoryItem
	ConsumptionUnits float64         `json:"consumption_units"`
	ConsumptionPrice decimal.Decimal `json:"consumption_unit_price"`
	StockDisplay     string          `json:"stock_display"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"bookings":    s.deps.Bookings.Bookings(),
		"edit_states": s.deps.Bookings.EditStates(r.Context()),
	})
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	var body bookingUpdateRequest
	if !decodeBody(w, r, &body) {
		return
	}

	edit, err := body.edit(r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	report, err := s.deps.Bookings.UpdateBooking(r.Context(), edit.ID, edit, body.VisitCost)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleBuildLine(w http.ResponseWriter, r *http.Request) {
	var draft service.LineDraft
	if !decodeBody(w, r, &draft) {
		return
	}

	line, check, err := s.deps.Invoices.BuildLineItem(r.Context(), draft)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"line": line, "stock_check": check})
}

func (s *HTTPServer) handleOpenPreview(w http.ResponseWriter, r *http.Request) {
	var invoice models.Invoice
	if !decodeBody(w, r, &invoice) {
		return
	}

	view, err := s.deps.Invoices.Preview(r.Context(), invoice)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Invoices.Get(r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	var body acknowledgeRequest
	if !decodeBody(w, r, &body) {
		return
	}

	view, err := s.deps.Invoices.Acknowledge(r.PathValue("id"), body.Checked)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleCommit(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Invoices.Commit(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleCancelPreview(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Invoices.Cancel(r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handlePreviewReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	preview, err := s.deps.Invoices.Report(id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Exporter.WriteImpactReport(&buf, id, preview); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+s.deps.Exporter.ReportName(id)+"\"")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn().Err(err).Str("preview_id", id).Msg("failed to send impact report")
	}
}

func (s *HTTPServer) handleInventory(w http.ResponseWriter, r *http.Request) {
	items := s.deps.Inventory.Items(r.Context())
	out := make([]inventoryView, 0, len(items))
	for _, item := range items {
		out = append(out, inventoryView{
			InventoryItem:    item,
			ConsumptionUnits: inventory.CalculateTotalConsumptionUnits(item.Stock, item.IsBulkProduct, item.BulkQuantity),
			ConsumptionPrice: inventory.CalculatePricePerConsumptionUnit(item.UnitPrice, item.IsBulkProduct, item.BulkQuantity),
			StockDisplay:     stockDisplay(item),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func stockDisplay(item *models.InventoryItem) string {
	if item.IsBulkProduct {
		return inventory.FormatStockDisplay(item.Stock, item.BulkQuantity, item.UnitOfMeasure)
	}
	return inventory.FormatStockDisplay(item.Stock, 0, item.UnitOfMeasure)
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notifications": s.deps.Inbox.Recent()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps service errors onto HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, service.ErrPreviewNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidID), errors.Is(err, service.ErrInvalidBooking),
		errors.Is(err, service.ErrInvalidInvoice):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, impact.ErrGateBlocked), errors.Is(err, impact.ErrConfirmationRequired),
		errors.Is(err, impact.ErrCommitInFlight), errors.Is(err, impact.ErrGateClosed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
