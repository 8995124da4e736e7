package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ferreirogomes/imovin/handlers"
	"github.com/ferreirogomes/imovin/models"
	"github.com/ferreirogomes/imovin/services"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockRegistry é uma implementação mock do handlers.PropertyRegistry
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) ListProperty(ownerAddress, propertyAddress string, shares, pricePerShare uint64, paymentSignature string) (models.PropertyRecord, error) {
	args := m.Called(ownerAddress, propertyAddress, shares, pricePerShare, paymentSignature)
	return args.Get(0).(models.PropertyRecord), args.Error(1)
}
func (m *MockRegistry) PurchaseShares(buyerAddress, propertyID string, shares uint64, paymentSignature string) (models.Settlement, error) {
	args := m.Called(buyerAddress, propertyID, shares, paymentSignature)
	return args.Get(0).(models.Settlement), args.Error(1)
}
func (m *MockRegistry) DelistProperty(callerAddress, propertyID, authSignature string) error {
	args := m.Called(callerAddress, propertyID, authSignature)
	return args.Error(0)
}
func (m *MockRegistry) GetProperty(propertyID string) (models.PropertyRecord, error) {
	args := m.Called(propertyID)
	return args.Get(0).(models.PropertyRecord), args.Error(1)
}
func (m *MockRegistry) GetSettlements(propertyID string) ([]models.Settlement, error) {
	args := m.Called(propertyID)
	return args.Get(0).([]models.Settlement), args.Error(1)
}

func newRouter(service handlers.PropertyRegistry) *chi.Mux {
	h := handlers.NewPropertyHandler(service)
	r := chi.NewRouter()
	r.Route("/properties", func(r chi.Router) {
		r.Post("/", h.ListProperty)
		r.Get("/{id}", h.GetProperty)
		r.Post("/{id}/purchase", h.PurchaseShares)
		r.Post("/{id}/delist", h.DelistProperty)
		r.Get("/{id}/settlements", h.GetSettlements)
	})
	return r
}

// TestListPropertyHandler verifica a listagem via HTTP
func TestListPropertyHandler(t *testing.T) {
	mockService := new(MockRegistry)
	router := newRouter(mockService)

	record := models.PropertyRecord{
		ID:              "MintAddr111",
		Address:         "Rua Alfa, 9",
		TotalShares:     100,
		AvailableShares: 100,
		PricePerShare:   1_000_000,
		MintAddress:     "MintAddr111",
		OwnerAddress:    "Owner111",
	}
	mockService.On("ListProperty", "Owner111", "Rua Alfa, 9", uint64(100), uint64(1_000_000), "PaySig111").
		Return(record, nil).Once()

	body, _ := json.Marshal(handlers.ListPropertyRequest{
		OwnerAddress:     "Owner111",
		Address:          "Rua Alfa, 9",
		TotalShares:      100,
		PricePerShare:    1_000_000,
		PaymentSignature: "PaySig111",
	})
	req := httptest.NewRequest(http.MethodPost, "/properties", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var got models.PropertyRecord
	assert.Nil(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, record.ID, got.ID)
	mockService.AssertExpectations(t)
}

// TestListPropertyHandlerBadJSON verifica corpo inválido
func TestListPropertyHandlerBadJSON(t *testing.T) {
	mockService := new(MockRegistry)
	router := newRouter(mockService)

	req := httptest.NewRequest(http.MethodPost, "/properties", bytes.NewReader([]byte("{nao é json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockService.AssertExpectations(t)
}

// TestGetPropertyHandler verifica a consulta via HTTP
func TestGetPropertyHandler(t *testing.T) {
	mockService := new(MockRegistry)
	router := newRouter(mockService)

	record := models.PropertyRecord{ID: "MintAddr222", Address: "Rua Beta, 2"}
	mockService.On("GetProperty", "MintAddr222").Return(record, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/properties/MintAddr222", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockService.AssertExpectations(t)
}

// TestErrorStatusMapping verifica o mapeamento da taxonomia de erros para HTTP
func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: cotas zeradas", services.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("%w: valor não exato", services.ErrMalformedPayment), http.StatusBadRequest},
		{fmt.Errorf("%w: faltam lamports", services.ErrInsufficientFunds), http.StatusPaymentRequired},
		{fmt.Errorf("%w: outra carteira", services.ErrUnauthorized), http.StatusForbidden},
		{fmt.Errorf("%w: sumiu", services.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: cotas esgotadas", services.ErrConflict), http.StatusConflict},
		{fmt.Errorf("banco fora do ar"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			mockService := new(MockRegistry)
			router := newRouter(mockService)

			mockService.On("PurchaseShares", "Buyer333", "MintAddr333", uint64(10), "PaySig333").
				Return(models.Settlement{}, tc.err).Once()

			body, _ := json.Marshal(handlers.PurchaseRequest{
				BuyerAddress:     "Buyer333",
				Shares:           10,
				PaymentSignature: "PaySig333",
			})
			req := httptest.NewRequest(http.MethodPost, "/properties/MintAddr333/purchase", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

// TestPurchaseHandler verifica a compra via HTTP
func TestPurchaseHandler(t *testing.T) {
	mockService := new(MockRegistry)
	router := newRouter(mockService)

	settlement := models.Settlement{
		ID:             "b2f5ff47-2f84-4a27-9a45-5b3a1f8c9d01",
		PropertyID:     "MintAddr444",
		BuyerAddress:   "Buyer444",
		Shares:         10,
		AmountLamports: 10_000_000,
		TransactionID:  "SettleTx444",
	}
	mockService.On("PurchaseShares", "Buyer444", "MintAddr444", uint64(10), "PaySig444").
		Return(settlement, nil).Once()

	body, _ := json.Marshal(handlers.PurchaseRequest{
		BuyerAddress:     "Buyer444",
		Shares:           10,
		PaymentSignature: "PaySig444",
	})
	req := httptest.NewRequest(http.MethodPost, "/properties/MintAddr444/purchase", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got models.Settlement
	assert.Nil(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, settlement.TransactionID, got.TransactionID)
	mockService.AssertExpectations(t)
}

// TestDelistHandler verifica a deslistagem via HTTP
func TestDelistHandler(t *testing.T) {
	mockService := new(MockRegistry)
	router := newRouter(mockService)

	mockService.On("DelistProperty", "Owner555", "MintAddr555", "AuthSig555").Return(nil).Once()

	body, _ := json.Marshal(handlers.DelistRequest{
		OwnerAddress:  "Owner555",
		AuthSignature: "AuthSig555",
	})
	req := httptest.NewRequest(http.MethodPost, "/properties/MintAddr555/delist", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	mockService.AssertExpectations(t)
}

// TestGetSettlementsHandler verifica o histórico via HTTP, inclusive vazio
func TestGetSettlementsHandler(t *testing.T) {
	mockService := new(MockRegistry)
	router := newRouter(mockService)

	mockService.On("GetSettlements", "MintAddr666").Return([]models.Settlement(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/properties/MintAddr666/settlements", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got []models.Settlement
	assert.Nil(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.NotNil(t, got)
	assert.Len(t, got, 0)
	mockService.AssertExpectations(t)
}
