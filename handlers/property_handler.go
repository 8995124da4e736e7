package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ferreirogomes/imovin/models"
	"github.com/ferreirogomes/imovin/services"

	"github.com/go-chi/chi/v5"
)

// PropertyRegistry é a visão dos handlers sobre o motor de registro.
type PropertyRegistry interface {
	ListProperty(ownerAddress, propertyAddress string, shares, pricePerShare uint64, paymentSignature string) (models.PropertyRecord, error)
	PurchaseShares(buyerAddress, propertyID string, shares uint64, paymentSignature string) (models.Settlement, error)
	DelistProperty(callerAddress, propertyID, authSignature string) error
	GetProperty(propertyID string) (models.PropertyRecord, error)
	GetSettlements(propertyID string) ([]models.Settlement, error)
}

// PropertyHandler lida com requisições HTTP do registro de imóveis.
type PropertyHandler struct {
	Service PropertyRegistry
}

// NewPropertyHandler cria uma nova instância do handler de imóveis.
func NewPropertyHandler(s PropertyRegistry) *PropertyHandler {
	return &PropertyHandler{Service: s}
}

// ListPropertyRequest é o corpo da listagem de um imóvel.
type ListPropertyRequest struct {
	OwnerAddress     string `json:"owner_address"`
	Address          string `json:"address"`
	TotalShares      uint64 `json:"total_shares"`
	PricePerShare    uint64 `json:"price_per_share"`
	PaymentSignature string `json:"payment_signature"` // Assinatura do pagamento do custo de armazenamento
}

// ListProperty lista um novo imóvel.
// POST /properties
func (h *PropertyHandler) ListProperty(w http.ResponseWriter, r *http.Request) {
	var req ListPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := h.Service.ListProperty(
		req.OwnerAddress, req.Address, req.TotalShares, req.PricePerShare, req.PaymentSignature,
	)
	if err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

// GetProperty obtém o registro corrente de um imóvel.
// GET /properties/{id}
func (h *PropertyHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "id")
	if propertyID == "" {
		http.Error(w, "ID do imóvel é obrigatório", http.StatusBadRequest)
		return
	}

	record, err := h.Service.GetProperty(propertyID)
	if err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// PurchaseRequest é o corpo da compra de cotas.
type PurchaseRequest struct {
	BuyerAddress     string `json:"buyer_address"`
	Shares           uint64 `json:"shares"`
	PaymentSignature string `json:"payment_signature"` // Assinatura do pagamento exato de shares * price_per_share
}

// PurchaseShares compra cotas de um imóvel listado.
// POST /properties/{id}/purchase
func (h *PropertyHandler) PurchaseShares(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "id")
	if propertyID == "" {
		http.Error(w, "ID do imóvel é obrigatório", http.StatusBadRequest)
		return
	}

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	settlement, err := h.Service.PurchaseShares(req.BuyerAddress, propertyID, req.Shares, req.PaymentSignature)
	if err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settlement)
}

// DelistRequest é o corpo da deslistagem de um imóvel.
type DelistRequest struct {
	OwnerAddress  string `json:"owner_address"`
	AuthSignature string `json:"auth_signature"` // Assinatura ed25519 do proprietário sobre a mensagem de deslistagem
}

// DelistProperty remove um imóvel sem cotas vendidas.
// POST /properties/{id}/delist
func (h *PropertyHandler) DelistProperty(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "id")
	if propertyID == "" {
		http.Error(w, "ID do imóvel é obrigatório", http.StatusBadRequest)
		return
	}

	var req DelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.DelistProperty(req.OwnerAddress, propertyID, req.AuthSignature); err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSettlements retorna o histórico de compras liquidadas de um imóvel.
// GET /properties/{id}/settlements
func (h *PropertyHandler) GetSettlements(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "id")
	if propertyID == "" {
		http.Error(w, "ID do imóvel é obrigatório", http.StatusBadRequest)
		return
	}

	settlements, err := h.Service.GetSettlements(propertyID)
	if err != nil {
		http.Error(w, err.Error(), statusFromError(err))
		return
	}
	if settlements == nil {
		settlements = []models.Settlement{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settlements)
}

// statusFromError mapeia a taxonomia de erros do motor para status HTTP.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidArgument), errors.Is(err, services.ErrMalformedPayment):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
