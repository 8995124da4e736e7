package services

import "errors"

// Taxonomia de erros do motor de registro. Toda violação de precondição aborta
// a chamada inteira antes de qualquer instrução on-chain ser emitida; os
// handlers mapeiam cada sentinela para um status HTTP via errors.Is.
var (
	// ErrInvalidArgument indica cotas ou preço zerados, ou endereços inválidos.
	ErrInvalidArgument = errors.New("argumento inválido")

	// ErrInsufficientFunds indica pagamento abaixo do valor exigido.
	ErrInsufficientFunds = errors.New("fundos insuficientes")

	// ErrNotFound indica que o imóvel referenciado não existe.
	ErrNotFound = errors.New("imóvel não encontrado")

	// ErrUnauthorized indica tentativa de deslistagem por quem não é o proprietário.
	ErrUnauthorized = errors.New("não autorizado")

	// ErrConflict indica compra acima das cotas disponíveis ou deslistagem com cotas vendidas.
	ErrConflict = errors.New("conflito de estado")

	// ErrMalformedPayment indica pagamento com remetente/destinatário errado,
	// valor não exato, assinatura reutilizada ou instruções não permitidas.
	ErrMalformedPayment = errors.New("pagamento malformado")
)
