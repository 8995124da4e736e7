package models

import "time"

// PropertyRecord representa um imóvel listado como um pool fixo de cotas fungíveis.
// A chave do registro é o endereço do mint SPL criado para o imóvel (ID == MintAddress).
type PropertyRecord struct {
	ID              string    `db:"id" json:"id"`
	Address         string    `db:"address" json:"address"`                   // Endereço físico do imóvel, imutável após a listagem
	Symbol          string    `db:"symbol" json:"symbol"`                     // Símbolo de exibição derivado do endereço (máx. 10 bytes)
	TotalShares     uint64    `db:"total_shares" json:"total_shares"`         // Oferta total cunhada, imutável
	AvailableShares uint64    `db:"available_shares" json:"available_shares"` // Cotas ainda em custódia, decrementa a cada compra
	PricePerShare   uint64    `db:"price_per_share" json:"price_per_share"`   // Preço por cota em lamports, imutável
	MintAddress     string    `db:"mint_address" json:"mint_address"`
	OwnerAddress    string    `db:"owner_address" json:"owner_address"` // Carteira do proprietário original, única autoridade para deslistar
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
