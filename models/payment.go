package models

import "github.com/gagliardetto/solana-go"

// PaymentDetails descreve um pagamento simples verificado on-chain:
// uma única instrução de transferência do SystemProgram, sem modificadores.
type PaymentDetails struct {
	From     solana.PublicKey
	To       solana.PublicKey
	Lamports uint64
}
