package blockchain_listener

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/ferreirogomes/imovin/storage"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// BlockchainListener observa a atividade da carteira de custódia na Solana
// para manter o registro interno sincronizado com o ledger. O saldo da ATA da
// custódia em cada mint é a verdade sobre quantas cotas ainda estão disponíveis.
type BlockchainListener struct {
	RPCClient *rpc.Client
	WSClient  *ws.Client
	DB        *storage.DB
	Custody   solana.PublicKey
}

// NewBlockchainListener cria uma nova instância do listener.
func NewBlockchainListener(rpcEndpoint, wsEndpoint string, db *storage.DB, custody solana.PublicKey) *BlockchainListener {
	wsClient, err := ws.Connect(context.Background(), wsEndpoint)
	if err != nil {
		log.Fatalf("Falha ao conectar ao WebSocket Solana: %v", err)
	}

	return &BlockchainListener{
		RPCClient: rpc.New(rpcEndpoint),
		WSClient:  wsClient,
		DB:        db,
		Custody:   custody,
	}
}

// StartListening reconcilia o estado inicial e depois escuta eventos que
// mencionam a custódia, reconciliando a cada transação finalizada.
func (l *BlockchainListener) StartListening() {
	log.Println("Iniciando listener da blockchain...")

	l.ReconcileProperties()

	sub, err := l.WSClient.LogsSubscribeMentions(l.Custody, rpc.CommitmentFinalized)
	if err != nil {
		log.Printf("Falha ao subscrever a logs da custódia: %v", err)
		return
	}
	defer sub.Unsubscribe()

	for {
		got, err := sub.Recv(context.Background())
		if err != nil {
			log.Printf("Erro ao receber evento de log: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		if got.Value.Err == nil {
			log.Printf("Transação finalizada envolvendo a custódia (Signature: %s). Reconciliando...", got.Value.Signature)
			l.ReconcileProperties()
		} else {
			log.Printf("Transação %s falhou: %v", got.Value.Signature, got.Value.Err)
		}
	}
}

// ReconcileProperties compara available_shares de cada imóvel com o saldo da
// ATA da custódia no mint correspondente e corrige divergências no banco.
func (l *BlockchainListener) ReconcileProperties() {
	properties, err := l.DB.GetAllProperties()
	if err != nil {
		log.Printf("Falha ao listar imóveis para reconciliação: %v", err)
		return
	}

	for _, p := range properties {
		mint, err := solana.PublicKeyFromBase58(p.MintAddress)
		if err != nil {
			log.Printf("MintAddress inválido no registro %s: %v", p.ID, err)
			continue
		}

		custodyATA, _, err := solana.FindAssociatedTokenAddress(l.Custody, mint)
		if err != nil {
			log.Printf("Falha ao encontrar ATA da custódia para o mint %s: %v", p.MintAddress, err)
			continue
		}

		chainShares, err := l.custodyBalance(custodyATA)
		if err != nil {
			log.Printf("Falha ao obter saldo da custódia para o imóvel %s: %v", p.ID, err)
			continue
		}

		if chainShares != p.AvailableShares {
			log.Printf("ERRO: divergência no imóvel %s: %d cotas no registro, %d na custódia on-chain. Corrigindo pelo ledger.",
				p.ID, p.AvailableShares, chainShares)
			if err := l.DB.SetAvailableShares(p.ID, chainShares); err != nil {
				log.Printf("Falha ao corrigir cotas do imóvel %s: %v", p.ID, err)
			}
		}
	}
}

// custodyBalance retorna o saldo de cotas de uma conta de token da custódia.
func (l *BlockchainListener) custodyBalance(tokenAccount solana.PublicKey) (uint64, error) {
	out, err := l.RPCClient.GetTokenAccountBalance(context.Background(), tokenAccount, rpc.CommitmentFinalized)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(out.Value.Amount, 10, 64)
}
