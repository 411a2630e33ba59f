package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/chemflo/internal/core/domain"
)

const (
	msgInvalidJSON    = "Invalid JSON body"
	msgInternalError  = "Internal server error"
	msgProductDeleted = "Product deleted successfully"

	IdempotencyKeyHeader = "Idempotency-Key"
)

var errInvalidJSON = errors.New("invalid json body")

// InventoryService is the service surface the HTTP and gRPC handlers use.
type InventoryService interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, name, cas, unit string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id, name, cas, unit string) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListInventory(ctx context.Context) ([]domain.InventoryRecord, error)
	GetInventory(ctx context.Context, id string) (*domain.InventoryRecord, error)
	ApplyMovementOnce(ctx context.Context, key, inventoryID string, movement domain.MovementType, rawQuantity string) (*domain.InventoryRecord, error)
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	service InventoryService
	logger  *zap.Logger
}

type ProductRequest struct {
	ProductName       string `json:"product_name"`
	CASNumber         string `json:"cas_number"`
	UnitOfMeasurement string `json:"unit_of_measurement"`
}

type StockRequest struct {
	Type     string   `json:"type"`
	Quantity Quantity `json:"quantity"`
}

// Quantity accepts either a JSON number or a numeric string. Any other JSON
// value decodes to an empty quantity, which the service rejects.
type Quantity string

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quantity(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*q = ""
		return nil
	}
	*q = Quantity(n)
	return nil
}

type ProductResponse struct {
	ID                string    `json:"id"`
	ProductName       string    `json:"product_name"`
	CASNumber         string    `json:"cas_number"`
	UnitOfMeasurement string    `json:"unit_of_measurement"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type InventoryResponse struct {
	ID                string      `json:"id"`
	ProductID         string      `json:"product_id"`
	CurrentStock      json.Number `json:"current_stock"`
	UpdatedAt         time.Time   `json:"updated_at"`
	ProductName       string      `json:"product_name"`
	CASNumber         string      `json:"cas_number"`
	UnitOfMeasurement string      `json:"unit_of_measurement"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func NewHTTPHandler(service InventoryService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{service: service, logger: logger}
}

// Routes is the API route table.
func (h *HTTPHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Pattern: "/api/products", Handle: h.ListProducts},
		{Method: http.MethodGet, Pattern: "/api/products/:id", Handle: h.GetProduct},
		{Method: http.MethodPost, Pattern: "/api/products", Handle: h.CreateProduct},
		{Method: http.MethodPut, Pattern: "/api/products/:id", Handle: h.UpdateProduct},
		{Method: http.MethodDelete, Pattern: "/api/products/:id", Handle: h.DeleteProduct},
		{Method: http.MethodGet, Pattern: "/api/inventory", Handle: h.ListInventory},
		{Method: http.MethodGet, Pattern: "/api/inventory/:id", Handle: h.GetInventory},
		{Method: http.MethodPost, Pattern: "/api/inventory/:id/stock", Handle: h.UpdateStock},
	}
}

// Handler wires the route table, the health check and the middleware chain.
// Requests reach the router with their path untouched: no cleaning and no
// redirects.
func (h *HTTPHandler) Handler() http.Handler {
	routes := append(h.Routes(), Route{
		Method:  http.MethodGet,
		Pattern: "/health",
		Handle: func(w http.ResponseWriter, r *http.Request, _ map[string]string, _ json.RawMessage) {
			h.HealthCheck(w, r)
		},
	})

	return Chain(NewRouter(routes),
		RequestID(h.logger),
		AccessLog(h.logger),
		Recover(h.logger),
		CORS,
	)
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request, _ map[string]string, _ json.RawMessage) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]ProductResponse, len(products))
	for i := range products {
		resp[i] = toProductResponse(&products[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request, params map[string]string, _ json.RawMessage) {
	product, err := h.service.GetProduct(r.Context(), params["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request, _ map[string]string, body json.RawMessage) {
	var req ProductRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), req.ProductName, req.CASNumber, req.UnitOfMeasurement)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request, params map[string]string, body json.RawMessage) {
	var req ProductRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), params["id"], req.ProductName, req.CASNumber, req.UnitOfMeasurement)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request, params map[string]string, _ json.RawMessage) {
	if err := h.service.DeleteProduct(r.Context(), params["id"]); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msgProductDeleted})
}

func (h *HTTPHandler) ListInventory(w http.ResponseWriter, r *http.Request, _ map[string]string, _ json.RawMessage) {
	records, err := h.service.ListInventory(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]InventoryResponse, len(records))
	for i := range records {
		resp[i] = toInventoryResponse(&records[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) GetInventory(w http.ResponseWriter, r *http.Request, params map[string]string, _ json.RawMessage) {
	record, err := h.service.GetInventory(r.Context(), params["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResponse(record))
}

func (h *HTTPHandler) UpdateStock(w http.ResponseWriter, r *http.Request, params map[string]string, body json.RawMessage) {
	var req StockRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	record, err := h.service.ApplyMovementOnce(r.Context(),
		r.Header.Get(IdempotencyKeyHeader),
		params["id"],
		domain.MovementType(req.Type),
		string(req.Quantity),
	)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResponse(record))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation, domain.KindConflict, domain.KindInsufficientStock:
		return http.StatusBadRequest
	case domain.KindNotFound, domain.KindRouteNotFound:
		return http.StatusNotFound
	case domain.KindDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) || domainErr.Kind == domain.KindStore {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeError(w, statusFor(domainErr.Kind), domainErr.Message)
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:                p.ID,
		ProductName:       p.ProductName,
		CASNumber:         p.CASNumber,
		UnitOfMeasurement: string(p.UnitOfMeasurement),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func toInventoryResponse(rec *domain.InventoryRecord) InventoryResponse {
	return InventoryResponse{
		ID:                rec.ID,
		ProductID:         rec.ProductID,
		CurrentStock:      json.Number(rec.CurrentStock.StringFixed(3)),
		UpdatedAt:         rec.UpdatedAt,
		ProductName:       rec.ProductName,
		CASNumber:         rec.CASNumber,
		UnitOfMeasurement: string(rec.UnitOfMeasurement),
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
