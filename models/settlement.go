package models

import "time"

// Settlement registra uma compra liquidada: transferência de cotas + repasse do
// pagamento ao proprietário em uma única transação on-chain.
// A fonte de verdade é a blockchain; este registro serve para rastreamento interno.
type Settlement struct {
	ID             string    `db:"id" json:"id"`
	PropertyID     string    `db:"property_id" json:"property_id"`
	BuyerAddress   string    `db:"buyer_address" json:"buyer_address"`
	Shares         uint64    `db:"shares" json:"shares"`
	AmountLamports uint64    `db:"amount_lamports" json:"amount_lamports"`
	TransactionID  string    `db:"transaction_id" json:"transaction_id"` // Assinatura da transação de liquidação na Solana
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
