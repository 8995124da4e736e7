package services

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/ferreirogomes/imovin/models"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Custo de armazenamento pré-pago por listagem, em lamports: uma parcela fixa
// por registro mais uma parcela proporcional ao tamanho do endereço do imóvel.
// O custo é sempre calculado, nunca fixado, para que endereços mais longos
// exijam pré-pagamento proporcionalmente maior.
const (
	storageCostBaseLamports    = 1_000_000
	storageCostPerByteLamports = 10_000
)

// symbolByteCap limita o símbolo de exibição derivado do endereço.
const symbolByteCap = 10

// PropertyStore é a visão do motor sobre o armazenamento persistente de registros.
type PropertyStore interface {
	SaveProperty(p models.PropertyRecord) error
	GetProperty(id string) (models.PropertyRecord, bool, error)
	DeleteProperty(id string) error
	ReserveShares(id string, shares uint64) (bool, error)
	ReleaseShares(id string, shares uint64) error
	SaveSettlement(s models.Settlement) error
	GetSettlementsByPropertyID(propertyID string) ([]models.Settlement, error)
	ConsumePayment(signature string) (bool, error)
	ReleasePayment(signature string) error
}

// SolanaLedger é a visão do motor sobre as operações on-chain.
type SolanaLedger interface {
	CustodyAddress() solana.PublicKey
	CreateShareMint(supply uint64) (solana.PublicKey, solana.Signature, error)
	VerifyPayment(signature solana.Signature) (models.PaymentDetails, error)
	SettlePurchase(mint, buyer, owner solana.PublicKey, shares, paymentLamports uint64) (solana.Signature, error)
}

// RegistryService é o motor de registro e liquidação: valida cada operação
// contra o estado corrente antes de emitir qualquer instrução on-chain, e
// mantém o registro de imóveis consistente com o ledger de cotas.
type RegistryService struct {
	DB      PropertyStore
	SolanaS SolanaLedger
}

// NewRegistryService cria uma nova instância do motor.
func NewRegistryService(db PropertyStore, solanaS SolanaLedger) *RegistryService {
	return &RegistryService{DB: db, SolanaS: solanaS}
}

// StorageCost calcula o custo de armazenamento de um registro, em lamports,
// em função do tamanho do endereço do imóvel.
func StorageCost(propertyAddress string) uint64 {
	return storageCostBaseLamports + storageCostPerByteLamports*uint64(len(propertyAddress))
}

// DeriveSymbol deriva o símbolo de exibição a partir do endereço do imóvel:
// apenas caracteres alfanuméricos, maiúsculos, truncado em symbolByteCap bytes.
// A derivação é determinística e preserva o prefixo até o limite.
func DeriveSymbol(propertyAddress string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(propertyAddress) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= symbolByteCap {
			break
		}
	}
	return b.String()
}

// DelistMessage é a mensagem que o proprietário assina para autorizar a
// deslistagem de um imóvel.
func DelistMessage(propertyID string) []byte {
	return []byte("imovin:delist:" + propertyID)
}

// ListProperty registra um imóvel como um pool fixo de cotas fungíveis.
// O pagamento referenciado deve ser uma transferência simples do proprietário
// para a custódia cobrindo o custo de armazenamento; excedente é aceito e não
// rastreado como crédito. Cunha a oferta inteira e grava o registro com
// available_shares == total_shares.
func (s *RegistryService) ListProperty(
	ownerAddress, propertyAddress string,
	shares, pricePerShare uint64,
	paymentSignature string,
) (models.PropertyRecord, error) {
	if shares == 0 {
		return models.PropertyRecord{}, fmt.Errorf("%w: quantidade de cotas deve ser maior que zero", ErrInvalidArgument)
	}
	if pricePerShare == 0 {
		return models.PropertyRecord{}, fmt.Errorf("%w: preço por cota deve ser maior que zero", ErrInvalidArgument)
	}
	if propertyAddress == "" {
		return models.PropertyRecord{}, fmt.Errorf("%w: endereço do imóvel é obrigatório", ErrInvalidArgument)
	}
	owner, err := solana.PublicKeyFromBase58(ownerAddress)
	if err != nil {
		return models.PropertyRecord{}, fmt.Errorf("%w: carteira do proprietário inválida: %v", ErrInvalidArgument, err)
	}

	payment, err := s.verifyPaymentFrom(owner, paymentSignature)
	if err != nil {
		return models.PropertyRecord{}, err
	}

	cost := StorageCost(propertyAddress)
	if payment.Lamports < cost {
		return models.PropertyRecord{}, fmt.Errorf(
			"%w: pagamento de %d lamports não cobre o custo de armazenamento de %d",
			ErrInsufficientFunds, payment.Lamports, cost)
	}

	if err := s.consumePayment(paymentSignature); err != nil {
		return models.PropertyRecord{}, err
	}

	mint, _, err := s.SolanaS.CreateShareMint(shares)
	if err != nil {
		if relErr := s.DB.ReleasePayment(paymentSignature); relErr != nil {
			log.Printf("Falha ao liberar pagamento %s após erro de cunhagem: %v", paymentSignature, relErr)
		}
		return models.PropertyRecord{}, fmt.Errorf("falha ao cunhar cotas do imóvel: %w", err)
	}

	record := models.PropertyRecord{
		ID:              mint.String(),
		Address:         propertyAddress,
		Symbol:          DeriveSymbol(propertyAddress),
		TotalShares:     shares,
		AvailableShares: shares,
		PricePerShare:   pricePerShare,
		MintAddress:     mint.String(),
		OwnerAddress:    ownerAddress,
		CreatedAt:       time.Now(),
	}

	if err := s.DB.SaveProperty(record); err != nil {
		// O mint já existe on-chain; sem o registro interno o imóvel fica
		// invisível para compras. A reconciliação precisa tratar este caso.
		log.Printf("ERRO: mint %s criado, mas falha ao salvar registro interno: %v", mint, err)
		return models.PropertyRecord{}, fmt.Errorf("cunhagem concluída, mas falha ao registrar imóvel: %w", err)
	}

	log.Printf("Imóvel listado: %s (%q), %d cotas a %d lamports cada, proprietário %s.",
		record.ID, record.Address, shares, pricePerShare, ownerAddress)
	return record, nil
}

// PurchaseShares compra cotas diretamente da custódia. O pagamento referenciado
// deve ser uma transferência simples do comprador para a custódia com o valor
// EXATO de shares * price_per_share. A liquidação on-chain (cotas para o
// comprador + repasse ao proprietário) é uma única transação atômica; o
// decremento de available_shares é condicional e revertido se o ledger falhar.
func (s *RegistryService) PurchaseShares(
	buyerAddress, propertyID string,
	shares uint64,
	paymentSignature string,
) (models.Settlement, error) {
	if shares == 0 {
		return models.Settlement{}, fmt.Errorf("%w: quantidade de cotas deve ser maior que zero", ErrInvalidArgument)
	}
	buyer, err := solana.PublicKeyFromBase58(buyerAddress)
	if err != nil {
		return models.Settlement{}, fmt.Errorf("%w: carteira do comprador inválida: %v", ErrInvalidArgument, err)
	}

	record, found, err := s.DB.GetProperty(propertyID)
	if err != nil {
		return models.Settlement{}, err
	}
	if !found {
		return models.Settlement{}, fmt.Errorf("%w: %s", ErrNotFound, propertyID)
	}

	if shares > record.AvailableShares {
		return models.Settlement{}, fmt.Errorf(
			"%w: %d cotas solicitadas, apenas %d disponíveis",
			ErrConflict, shares, record.AvailableShares)
	}
	if record.PricePerShare != 0 && shares > math.MaxUint64/record.PricePerShare {
		return models.Settlement{}, fmt.Errorf("%w: quantidade de cotas excede o limite", ErrInvalidArgument)
	}

	payment, err := s.verifyPaymentFrom(buyer, paymentSignature)
	if err != nil {
		return models.Settlement{}, err
	}

	required := shares * record.PricePerShare
	if payment.Lamports < required {
		return models.Settlement{}, fmt.Errorf(
			"%w: pagamento de %d lamports, exigidos %d",
			ErrInsufficientFunds, payment.Lamports, required)
	}
	if payment.Lamports != required {
		// Sem rastreamento de crédito: o valor precisa ser exato.
		return models.Settlement{}, fmt.Errorf(
			"%w: pagamento de %d lamports não corresponde ao valor exato de %d",
			ErrMalformedPayment, payment.Lamports, required)
	}

	if err := s.consumePayment(paymentSignature); err != nil {
		return models.Settlement{}, err
	}

	// A reserva reavalia available_shares no momento da escrita: duas compras
	// concorrentes nunca ultrapassam juntas a oferta disponível.
	reserved, err := s.DB.ReserveShares(record.ID, shares)
	if err != nil {
		return models.Settlement{}, err
	}
	if !reserved {
		s.abortPurchase(record.ID, 0, paymentSignature)
		return models.Settlement{}, fmt.Errorf("%w: cotas disponíveis insuficientes", ErrConflict)
	}

	mint, err := solana.PublicKeyFromBase58(record.MintAddress)
	if err != nil {
		s.abortPurchase(record.ID, shares, paymentSignature)
		return models.Settlement{}, fmt.Errorf("mint corrompido no registro: %w", err)
	}
	ownerPub, err := solana.PublicKeyFromBase58(record.OwnerAddress)
	if err != nil {
		s.abortPurchase(record.ID, shares, paymentSignature)
		return models.Settlement{}, fmt.Errorf("carteira do proprietário corrompida no registro: %w", err)
	}

	txSig, err := s.SolanaS.SettlePurchase(mint, buyer, ownerPub, shares, required)
	if err != nil {
		s.abortPurchase(record.ID, shares, paymentSignature)
		return models.Settlement{}, fmt.Errorf("falha ao liquidar compra on-chain: %w", err)
	}

	settlement := models.Settlement{
		ID:             uuid.New().String(),
		PropertyID:     record.ID,
		BuyerAddress:   buyerAddress,
		Shares:         shares,
		AmountLamports: required,
		TransactionID:  txSig.String(),
		CreatedAt:      time.Now(),
	}
	if err := s.DB.SaveSettlement(settlement); err != nil {
		// A liquidação já entrou no ledger; o registro interno é apenas
		// rastreamento e a reconciliação corrige eventuais divergências.
		log.Printf("ERRO: liquidação %s confirmada, mas falha ao salvar registro interno: %v", txSig, err)
		return models.Settlement{}, fmt.Errorf("liquidação concluída, mas falha ao registrar internamente: %w", err)
	}

	return settlement, nil
}

// DelistProperty remove permanentemente o registro de um imóvel. Somente o
// proprietário pode deslistar, comprovando a identidade com uma assinatura
// ed25519 sobre DelistMessage, e somente enquanto nenhuma cota foi vendida:
// apagar o registro com cotas em circulação deixaria os detentores sem como
// consultar os termos do imóvel.
func (s *RegistryService) DelistProperty(callerAddress, propertyID, authSignature string) error {
	record, found, err := s.DB.GetProperty(propertyID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, propertyID)
	}

	if callerAddress != record.OwnerAddress {
		return fmt.Errorf("%w: somente o proprietário pode deslistar", ErrUnauthorized)
	}
	ownerPub, err := solana.PublicKeyFromBase58(record.OwnerAddress)
	if err != nil {
		return fmt.Errorf("carteira do proprietário corrompida no registro: %w", err)
	}
	sig, err := solana.SignatureFromBase58(authSignature)
	if err != nil {
		return fmt.Errorf("%w: assinatura de autorização inválida", ErrUnauthorized)
	}
	if !sig.Verify(ownerPub, DelistMessage(propertyID)) {
		return fmt.Errorf("%w: assinatura de autorização não confere", ErrUnauthorized)
	}

	if record.AvailableShares != record.TotalShares {
		return fmt.Errorf(
			"%w: %d cotas já vendidas, deslistagem exige nenhuma venda",
			ErrConflict, record.TotalShares-record.AvailableShares)
	}

	if err := s.DB.DeleteProperty(propertyID); err != nil {
		return err
	}
	log.Printf("Imóvel %s deslistado pelo proprietário %s.", propertyID, callerAddress)
	return nil
}

// GetProperty retorna o registro corrente de um imóvel, sem efeitos colaterais.
func (s *RegistryService) GetProperty(propertyID string) (models.PropertyRecord, error) {
	record, found, err := s.DB.GetProperty(propertyID)
	if err != nil {
		return models.PropertyRecord{}, err
	}
	if !found {
		return models.PropertyRecord{}, fmt.Errorf("%w: %s", ErrNotFound, propertyID)
	}
	return record, nil
}

// GetSettlements retorna o histórico de compras liquidadas de um imóvel.
func (s *RegistryService) GetSettlements(propertyID string) ([]models.Settlement, error) {
	_, found, err := s.DB.GetProperty(propertyID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, propertyID)
	}
	return s.DB.GetSettlementsByPropertyID(propertyID)
}

// verifyPaymentFrom valida o pagamento referenciado: transferência simples,
// enviada pelo chamador, com a custódia como destinatária.
func (s *RegistryService) verifyPaymentFrom(from solana.PublicKey, paymentSignature string) (models.PaymentDetails, error) {
	sig, err := solana.SignatureFromBase58(paymentSignature)
	if err != nil {
		return models.PaymentDetails{}, fmt.Errorf("%w: assinatura de pagamento inválida: %v", ErrMalformedPayment, err)
	}

	payment, err := s.SolanaS.VerifyPayment(sig)
	if err != nil {
		return models.PaymentDetails{}, err
	}

	if !payment.To.Equals(s.SolanaS.CustodyAddress()) {
		return models.PaymentDetails{}, fmt.Errorf("%w: destinatário do pagamento deve ser a custódia", ErrMalformedPayment)
	}
	if !payment.From.Equals(from) {
		return models.PaymentDetails{}, fmt.Errorf("%w: remetente do pagamento deve ser o chamador", ErrMalformedPayment)
	}

	return payment, nil
}

// consumePayment marca a assinatura como utilizada, rejeitando reuso.
func (s *RegistryService) consumePayment(paymentSignature string) error {
	ok, err := s.DB.ConsumePayment(paymentSignature)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: assinatura de pagamento já utilizada", ErrMalformedPayment)
	}
	return nil
}

// abortPurchase desfaz os efeitos locais de uma compra que não chegou ao ledger.
func (s *RegistryService) abortPurchase(propertyID string, reservedShares uint64, paymentSignature string) {
	if reservedShares > 0 {
		if err := s.DB.ReleaseShares(propertyID, reservedShares); err != nil {
			log.Printf("ERRO: falha ao devolver %d cotas do imóvel %s: %v", reservedShares, propertyID, err)
		}
	}
	if err := s.DB.ReleasePayment(paymentSignature); err != nil {
		log.Printf("ERRO: falha ao liberar pagamento %s: %v", paymentSignature, err)
	}
}
