// Package rest exposes the custody service over HTTP. Routing follows plain
// path switching on a single handler; all payloads are JSON.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"pharmxchain/internal/adapters/reports"
	"pharmxchain/internal/core"
	"pharmxchain/internal/directory"
	"pharmxchain/pkg/domain"
)

// Handler provides HTTP access to the registry, ledger, and query layers.
// Exports and Directory are optional; their routes 404 when unset.
type Handler struct {
	Service   *core.Service
	Directory *directory.InMemory
	Exports   *reports.Exporter
}

// NewHandler constructs a REST handler over the service.
func NewHandler(service *core.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/medicines":
		h.handleMedicines(w, r)
	case strings.HasPrefix(path, "/api/v1/medicines/"):
		h.handleMedicine(w, r, strings.TrimPrefix(path, "/api/v1/medicines/"))
	case path == "/api/v1/batches":
		h.handleBatches(w, r)
	case strings.HasPrefix(path, "/api/v1/batches/"):
		h.handleBatch(w, r, strings.TrimPrefix(path, "/api/v1/batches/"))
	case path == "/api/v1/sweep":
		h.handleSweep(w, r)
	case path == "/api/v1/entities":
		h.handleEntities(w, r)
	case strings.HasPrefix(path, "/api/v1/entities/"):
		h.handleEntity(w, r, strings.TrimPrefix(path, "/api/v1/entities/"))
	case path == "/api/v1/reports" || strings.HasPrefix(path, "/api/v1/reports/"):
		h.handleReports(w, r, path)
	default:
		http.NotFound(w, r)
	}
}

type registerMedicineRequest struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Brand  string `json:"brand"`
}

func (h *Handler) handleMedicines(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"medicines": h.Service.ListMedicines(r.Context())})
	case http.MethodPost:
		var req registerMedicineRequest
		if !decode(w, r, &req) {
			return
		}
		med, err := h.Service.RegisterMedicine(r.Context(), req.Caller, req.ID, req.Name, req.Brand)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"medicine": med})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleMedicine(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	id := segments[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(segments) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		med, err := h.Service.MedicineDetails(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"medicine": med})
		return
	}
	if len(segments) != 2 {
		http.NotFound(w, r)
		return
	}

	switch segments[1] {
	case "approve":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Caller string `json:"caller"`
		}
		if !decode(w, r, &req) {
			return
		}
		med, err := h.Service.ApproveMedicine(r.Context(), req.Caller, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"medicine": med})
	case "history":
		h.getJSON(w, r, func() (any, error) {
			events, err := h.Service.MedicineHistory(r.Context(), id)
			return map[string]any{"events": events}, err
		})
	case "authenticity":
		h.getJSON(w, r, func() (any, error) {
			authentic, err := h.Service.VerifyAuthenticity(r.Context(), id)
			return map[string]any{"medicine_id": id, "authentic": authentic}, err
		})
	case "holders":
		h.getJSON(w, r, func() (any, error) {
			holders, err := h.Service.HoldersWithStock(r.Context(), id)
			return map[string]any{"holders": holders}, err
		})
	case "batches":
		h.getJSON(w, r, func() (any, error) {
			batches, err := h.Service.MedicineBatches(r.Context(), id)
			return map[string]any{"batches": batches}, err
		})
	default:
		http.NotFound(w, r)
	}
}

type createBatchRequest struct {
	Caller         string    `json:"caller"`
	MedicineID     string    `json:"medicine_id"`
	BatchID        string    `json:"batch_id"`
	Quantity       int64     `json:"quantity"`
	ProductionDate time.Time `json:"production_date"`
	ExpiryDate     time.Time `json:"expiry_date"`
}

func (h *Handler) handleBatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req createBatchRequest
	if !decode(w, r, &req) {
		return
	}
	batch, err := h.Service.CreateBatch(r.Context(), core.CreateBatchRequest{
		Caller:         req.Caller,
		MedicineID:     req.MedicineID,
		BatchID:        req.BatchID,
		Quantity:       req.Quantity,
		ProductionDate: req.ProductionDate,
		ExpiryDate:     req.ExpiryDate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"batch": batch})
}

type transferRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Quantity int64  `json:"quantity"`
}

type dispenseRequest struct {
	Holder    string `json:"holder"`
	Quantity  int64  `json:"quantity"`
	PatientID string `json:"patient_id"`
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	id := segments[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(segments) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		batch, err := h.Service.BatchDetails(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"batch": batch})
		return
	}
	if len(segments) != 2 {
		http.NotFound(w, r)
		return
	}

	switch segments[1] {
	case "history":
		h.getJSON(w, r, func() (any, error) {
			events, err := h.Service.BatchHistory(r.Context(), id)
			return map[string]any{"events": events}, err
		})
	case "deactivate":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Caller string `json:"caller"`
		}
		if !decode(w, r, &req) {
			return
		}
		batch, changed, err := h.Service.DeactivateBatch(r.Context(), req.Caller, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"batch": batch, "changed": changed})
	case "transfer":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req transferRequest
		if !decode(w, r, &req) {
			return
		}
		result, err := h.Service.Transfer(r.Context(), core.TransferRequest{
			BatchID:  id,
			From:     req.From,
			To:       req.To,
			Quantity: req.Quantity,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transfer": result})
	case "dispense":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req dispenseRequest
		if !decode(w, r, &req) {
			return
		}
		result, err := h.Service.Dispense(r.Context(), core.DispenseRequest{
			BatchID:   id,
			Holder:    req.Holder,
			Quantity:  req.Quantity,
			PatientID: req.PatientID,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dispense": result})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	swept, err := h.Service.SweepExpiredBatches(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deactivated": swept})
}

type registerEntityRequest struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	LicenseInfo string `json:"license_info"`
	Role        string `json:"role"`
}

func (h *Handler) handleEntities(w http.ResponseWriter, r *http.Request) {
	if h.Directory == nil {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"entities": h.Directory.List()})
	case http.MethodPost:
		var req registerEntityRequest
		if !decode(w, r, &req) {
			return
		}
		entity, err := h.Directory.Register(req.Address, req.Name, req.Location, req.LicenseInfo, domain.Role(req.Role))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"entity": entity})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleEntity(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	address := segments[0]
	if address == "" {
		http.NotFound(w, r)
		return
	}

	if len(segments) == 1 {
		if h.Directory == nil {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		entity, err := h.Directory.Details(address)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entity": entity})
		return
	}
	if len(segments) != 2 {
		http.NotFound(w, r)
		return
	}

	switch segments[1] {
	case "medicines":
		h.getJSON(w, r, func() (any, error) {
			holdings, err := h.Service.EntityMedicines(r.Context(), address)
			return map[string]any{"medicines": holdings}, err
		})
	case "inventory":
		h.getJSON(w, r, func() (any, error) {
			medicineID := r.URL.Query().Get("medicine_id")
			balance, err := h.Service.InventoryOf(r.Context(), address, medicineID)
			return map[string]any{"holder": address, "medicine_id": medicineID, "balance": balance}, err
		})
	case "deactivate", "activate":
		if h.Directory == nil {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var err error
		if segments[1] == "deactivate" {
			err = h.Directory.Deactivate(address)
		} else {
			err = h.Directory.Activate(address)
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		entity, err := h.Directory.Details(address)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entity": entity})
	default:
		http.NotFound(w, r)
	}
}

type reportRequest struct {
	MedicineID  string   `json:"medicine_id"`
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requested_by"`
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request, path string) {
	if h.Exports == nil {
		http.NotFound(w, r)
		return
	}
	if path == "/api/v1/reports" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req reportRequest
		if !decode(w, r, &req) {
			return
		}
		formats := make([]reports.Format, 0, len(req.Formats))
		for _, f := range req.Formats {
			formats = append(formats, reports.Format(strings.ToLower(strings.TrimSpace(f))))
		}
		record, err := h.Exports.Enqueue(r.Context(), reports.Input{
			MedicineID:  req.MedicineID,
			Formats:     formats,
			RequestedBy: req.RequestedBy,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(path, "/api/v1/reports/")
	record, ok := h.Exports.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func (h *Handler) getJSON(w http.ResponseWriter, r *http.Request, fn func() (any, error)) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	payload, err := fn()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var rv domain.RuleViolationError
	if errors.As(err, &rv) {
		return http.StatusInternalServerError
	}
	switch domain.KindOf(err) {
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyExists, domain.KindAlreadyApproved:
		return http.StatusConflict
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindNotApproved, domain.KindBatchInactive, domain.KindIneligibleReceiver,
		domain.KindInsufficientInventory, domain.KindInsufficientBatchQuantity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	payload := map[string]any{"error": err.Error()}
	if kind := domain.KindOf(err); kind != "" {
		payload["kind"] = kind
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
