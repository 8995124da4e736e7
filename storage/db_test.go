package storage

import (
	"os"
	"testing"
	"time"

	"github.com/ferreirogomes/imovin/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB conecta ao banco indicado por TEST_DATABASE_URL.
// Sem a variável, os testes de integração são pulados.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL não definido; pulando testes de integração")
	}

	migrationsDir = "migrations"
	db, err := NewDB(dsn)
	require.Nil(t, err)
	t.Cleanup(func() {
		db.Exec(`DELETE FROM settlements`)
		db.Exec(`DELETE FROM consumed_payments`)
		db.Exec(`DELETE FROM properties`)
		db.Close()
	})
	return db
}

func testRecord(available uint64) models.PropertyRecord {
	id := uuid.New().String()
	return models.PropertyRecord{
		ID:              id,
		Address:         "Rua de Teste, 1",
		Symbol:          "RUADETESTE",
		TotalShares:     100,
		AvailableShares: available,
		PricePerShare:   1_000_000,
		MintAddress:     id,
		OwnerAddress:    "OwnerTest",
		CreatedAt:       time.Now().UTC(),
	}
}

// TestPropertyRoundTrip verifica gravação, leitura e remoção de registros
func TestPropertyRoundTrip(t *testing.T) {
	db := newTestDB(t)

	record := testRecord(100)
	require.Nil(t, db.SaveProperty(record))

	got, found, err := db.GetProperty(record.ID)
	require.Nil(t, err)
	assert.True(t, found)
	assert.Equal(t, record.Address, got.Address)
	assert.Equal(t, record.TotalShares, got.TotalShares)
	assert.Equal(t, record.AvailableShares, got.AvailableShares)

	require.Nil(t, db.DeleteProperty(record.ID))
	_, found, err = db.GetProperty(record.ID)
	require.Nil(t, err)
	assert.False(t, found)
}

// TestReserveSharesBoundary verifica a reserva condicional no limite da oferta
func TestReserveSharesBoundary(t *testing.T) {
	db := newTestDB(t)

	record := testRecord(10)
	require.Nil(t, db.SaveProperty(record))

	ok, err := db.ReserveShares(record.ID, 11)
	require.Nil(t, err)
	assert.False(t, ok, "reserva acima do disponível deve falhar")

	ok, err = db.ReserveShares(record.ID, 10)
	require.Nil(t, err)
	assert.True(t, ok)

	ok, err = db.ReserveShares(record.ID, 1)
	require.Nil(t, err)
	assert.False(t, ok, "oferta esgotada não admite novas reservas")

	require.Nil(t, db.ReleaseShares(record.ID, 10))
	got, _, err := db.GetProperty(record.ID)
	require.Nil(t, err)
	assert.Equal(t, uint64(10), got.AvailableShares)
}

// TestReleaseSharesCapped verifica que a devolução nunca excede total_shares
func TestReleaseSharesCapped(t *testing.T) {
	db := newTestDB(t)

	record := testRecord(100)
	require.Nil(t, db.SaveProperty(record))

	require.Nil(t, db.ReleaseShares(record.ID, 50))
	got, _, err := db.GetProperty(record.ID)
	require.Nil(t, err)
	assert.Equal(t, record.TotalShares, got.AvailableShares)
}

// TestConsumePaymentOnce verifica que cada assinatura financia uma única operação
func TestConsumePaymentOnce(t *testing.T) {
	db := newTestDB(t)

	sig := uuid.New().String()

	ok, err := db.ConsumePayment(sig)
	require.Nil(t, err)
	assert.True(t, ok)

	ok, err = db.ConsumePayment(sig)
	require.Nil(t, err)
	assert.False(t, ok, "assinatura reutilizada deve ser rejeitada")

	require.Nil(t, db.ReleasePayment(sig))
	ok, err = db.ConsumePayment(sig)
	require.Nil(t, err)
	assert.True(t, ok, "assinatura liberada volta a ser utilizável")
}

// TestSettlementHistory verifica o histórico de liquidações por imóvel
func TestSettlementHistory(t *testing.T) {
	db := newTestDB(t)

	record := testRecord(100)
	require.Nil(t, db.SaveProperty(record))

	first := models.Settlement{
		ID:             uuid.New().String(),
		PropertyID:     record.ID,
		BuyerAddress:   "BuyerA",
		Shares:         10,
		AmountLamports: 10_000_000,
		TransactionID:  "TxA",
		CreatedAt:      time.Now().UTC(),
	}
	second := first
	second.ID = uuid.New().String()
	second.BuyerAddress = "BuyerB"
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	require.Nil(t, db.SaveSettlement(first))
	require.Nil(t, db.SaveSettlement(second))

	history, err := db.GetSettlementsByPropertyID(record.ID)
	require.Nil(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "BuyerA", history[0].BuyerAddress)
	assert.Equal(t, "BuyerB", history[1].BuyerAddress)
}
