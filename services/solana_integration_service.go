package services

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/ferreirogomes/imovin/models"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// SolanaIntegrationService encapsula as operações on-chain do motor de registro.
// A carteira de custódia assina todas as transações emitidas pelo serviço: ela é
// a autoridade do mint de cada imóvel e retém as cotas não vendidas.
type SolanaIntegrationService struct {
	RPCClient *rpc.Client
	Custody   solana.PrivateKey
}

// NewSolanaIntegrationService cria o serviço a partir do endpoint RPC e da
// chave privada da custódia em Base58.
func NewSolanaIntegrationService(rpcEndpoint, custodyKeyBase58 string) (*SolanaIntegrationService, error) {
	custody, err := solana.PrivateKeyFromBase58(custodyKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("falha ao carregar chave privada da custódia: %w", err)
	}

	return &SolanaIntegrationService{
		RPCClient: rpc.New(rpcEndpoint),
		Custody:   custody,
	}, nil
}

// CustodyAddress retorna a carteira de custódia do motor, destinatária
// obrigatória de todos os pagamentos.
func (s *SolanaIntegrationService) CustodyAddress() solana.PublicKey {
	return s.Custody.PublicKey()
}

// CreateShareMint cria o token fungível que representa as cotas de um imóvel:
// mint SPL com 0 casas decimais (cotas indivisíveis), custódia como autoridade,
// e a oferta inteira cunhada para a ATA da custódia. Tudo em uma única transação.
// O endereço do mint é o identificador do imóvel.
func (s *SolanaIntegrationService) CreateShareMint(supply uint64) (solana.PublicKey, solana.Signature, error) {
	ctx := context.Background()
	mint := solana.NewWallet()
	mintPub := mint.PublicKey()
	custodyPub := s.Custody.PublicKey()

	rent, err := s.RPCClient.GetMinimumBalanceForRentExemption(ctx, token.MINT_SIZE, rpc.CommitmentFinalized)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("falha ao obter aluguel mínimo do mint: %w", err)
	}

	custodyATA, _, err := solana.FindAssociatedTokenAddress(custodyPub, mintPub)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("falha ao encontrar ATA da custódia: %w", err)
	}

	resp, err := s.RPCClient.GetRecentBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("falha ao obter blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewCreateAccountInstruction(
				rent,
				token.MINT_SIZE,
				token.ProgramID,
				custodyPub,
				mintPub,
			).Build(),
			token.NewInitializeMintInstruction(
				0, // cotas são indivisíveis
				custodyPub,
				custodyPub,
				mintPub,
				solana.SysVarRentPubkey,
			).Build(),
			associatedtokenaccount.NewCreateInstruction(
				custodyPub,
				custodyPub,
				mintPub,
			).Build(),
			token.NewMintToInstruction(
				supply,
				mintPub,
				custodyATA,
				custodyPub,
				nil,
			).Build(),
		},
		resp.Value.Blockhash,
		solana.TransactionPayer(custodyPub),
	)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("falha ao criar transação de cunhagem: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(custodyPub) {
			return &s.Custody
		}
		if key.Equals(mintPub) {
			return &mint.PrivateKey
		}
		return nil
	})
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("falha ao assinar transação de cunhagem: %w", err)
	}

	sig, err := s.sendAndConfirm(ctx, tx)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, err
	}
	log.Printf("Mint %s criado com oferta de %d cotas (tx %s).", mintPub, supply, sig)

	return mintPub, sig, nil
}

// VerifyPayment busca uma transação confirmada e a valida como pagamento
// simples: exatamente uma instrução, do SystemProgram, do tipo Transfer.
// Qualquer outra forma (múltiplas instruções, createAccount, transferWithSeed
// etc.) é rejeitada como pagamento malformado, pois poderia desviar fundos ou
// reatribuir contas.
func (s *SolanaIntegrationService) VerifyPayment(signature solana.Signature) (models.PaymentDetails, error) {
	ctx := context.Background()

	out, err := s.RPCClient.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
		Commitment: rpc.CommitmentFinalized,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		return models.PaymentDetails{}, fmt.Errorf("%w: transação de pagamento não encontrada: %v", ErrMalformedPayment, err)
	}
	if out == nil || out.Meta == nil {
		return models.PaymentDetails{}, fmt.Errorf("%w: transação de pagamento sem metadados", ErrMalformedPayment)
	}
	if out.Meta.Err != nil {
		return models.PaymentDetails{}, fmt.Errorf("%w: transação de pagamento falhou on-chain", ErrMalformedPayment)
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return models.PaymentDetails{}, fmt.Errorf("%w: falha ao decodificar transação de pagamento: %v", ErrMalformedPayment, err)
	}

	if len(tx.Message.Instructions) != 1 {
		return models.PaymentDetails{}, fmt.Errorf("%w: pagamento deve conter exatamente uma instrução", ErrMalformedPayment)
	}
	ix := tx.Message.Instructions[0]

	progID, err := tx.Message.ResolveProgramIDIndex(ix.ProgramIDIndex)
	if err != nil {
		return models.PaymentDetails{}, fmt.Errorf("%w: falha ao resolver programa da instrução: %v", ErrMalformedPayment, err)
	}
	if !progID.Equals(system.ProgramID) {
		return models.PaymentDetails{}, fmt.Errorf("%w: pagamento deve usar o SystemProgram", ErrMalformedPayment)
	}

	accounts, err := ix.ResolveInstructionAccounts(&tx.Message)
	if err != nil {
		return models.PaymentDetails{}, fmt.Errorf("%w: falha ao resolver contas da instrução: %v", ErrMalformedPayment, err)
	}

	decoded, err := system.DecodeInstruction(accounts, ix.Data)
	if err != nil {
		return models.PaymentDetails{}, fmt.Errorf("%w: falha ao decodificar instrução de pagamento: %v", ErrMalformedPayment, err)
	}

	transfer, ok := decoded.Impl.(*system.Transfer)
	if !ok {
		return models.PaymentDetails{}, fmt.Errorf("%w: instrução de pagamento deve ser uma transferência simples", ErrMalformedPayment)
	}
	if transfer.Lamports == nil {
		return models.PaymentDetails{}, fmt.Errorf("%w: transferência sem valor", ErrMalformedPayment)
	}

	return models.PaymentDetails{
		From:     transfer.GetFundingAccount().PublicKey,
		To:       transfer.GetRecipientAccount().PublicKey,
		Lamports: *transfer.Lamports,
	}, nil
}

// SettlePurchase liquida uma compra em uma ÚNICA transação com duas instruções:
// transferência de cotas da custódia para o comprador e repasse do pagamento ao
// proprietário. Ou ambas entram no ledger, ou nenhuma.
// A ATA do comprador precisa existir antes da chamada; se não existir, a
// transação inteira falha (precondição externa, não criamos a conta por ele).
func (s *SolanaIntegrationService) SettlePurchase(
	mint, buyer, owner solana.PublicKey,
	shares, paymentLamports uint64,
) (solana.Signature, error) {
	ctx := context.Background()
	custodyPub := s.Custody.PublicKey()

	custodyATA, _, err := solana.FindAssociatedTokenAddress(custodyPub, mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("falha ao encontrar ATA da custódia: %w", err)
	}
	buyerATA, _, err := solana.FindAssociatedTokenAddress(buyer, mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("falha ao encontrar ATA do comprador: %w", err)
	}

	resp, err := s.RPCClient.GetRecentBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("falha ao obter blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			token.NewTransferInstruction(
				shares,
				custodyATA,
				buyerATA,
				custodyPub,
				nil,
			).Build(),
			system.NewTransferInstruction(
				paymentLamports,
				custodyPub,
				owner,
			).Build(),
		},
		resp.Value.Blockhash,
		solana.TransactionPayer(custodyPub),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("falha ao criar transação de liquidação: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(custodyPub) {
			return &s.Custody
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("falha ao assinar transação de liquidação: %w", err)
	}

	sig, err := s.sendAndConfirm(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	log.Printf("Compra liquidada: %d cotas do mint %s para %s, %d lamports para %s (tx %s).",
		shares, mint, buyer, paymentLamports, owner, sig)

	return sig, nil
}

// GetTokenSupply retorna a oferta total de um mint.
func (s *SolanaIntegrationService) GetTokenSupply(mint solana.PublicKey) (uint64, error) {
	out, err := s.RPCClient.GetTokenSupply(context.Background(), mint, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("falha ao obter oferta do mint: %w", err)
	}
	return parseTokenAmount(out.Value)
}

// GetTokenAccountBalance retorna o saldo de uma conta de token.
func (s *SolanaIntegrationService) GetTokenAccountBalance(tokenAccount solana.PublicKey) (uint64, error) {
	out, err := s.RPCClient.GetTokenAccountBalance(context.Background(), tokenAccount, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("falha ao obter saldo da conta de token: %w", err)
	}
	return parseTokenAmount(out.Value)
}

// sendAndConfirm envia a transação e verifica o status da assinatura.
func (s *SolanaIntegrationService) sendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := s.RPCClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("falha ao enviar transação: %w", err)
	}
	log.Printf("Transação enviada: %s", sig)

	if _, err := s.RPCClient.GetSignatureStatuses(ctx, true, sig); err != nil {
		log.Printf("Erro ao verificar status da transação %s: %v", sig, err)
	}

	return sig, nil
}

func parseTokenAmount(value *rpc.UiTokenAmount) (uint64, error) {
	if value == nil {
		return 0, fmt.Errorf("resposta de saldo vazia")
	}
	amount, err := strconv.ParseUint(value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("falha ao parsear saldo %q: %w", value.Amount, err)
	}
	return amount, nil
}
