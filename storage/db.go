package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/ferreirogomes/imovin/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
)

// DB representa a conexão com o banco de dados PostgreSQL.
type DB struct {
	*sqlx.DB
}

// NewDB conecta-se ao PostgreSQL e executa as migrações.
func NewDB(dataSourceName string) (*DB, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar ao banco de dados: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("falha ao pingar o banco de dados: %w", err)
	}
	log.Println("Conexão com PostgreSQL estabelecida com sucesso.")

	if err := runMigrations(db.DB); err != nil {
		return nil, fmt.Errorf("falha ao executar migrações: %w", err)
	}

	return &DB{db}, nil
}

// migrationsDir é relativo ao diretório de execução do serviço.
var migrationsDir = "./storage/migrations"

// runMigrations executa as migrações usando sql-migrate.
func runMigrations(db *sql.DB) error {
	migrations := &migrate.FileMigrationSource{
		Dir: migrationsDir,
	}

	n, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
	if err != nil {
		return fmt.Errorf("erro ao aplicar migrações: %w", err)
	}
	if n > 0 {
		log.Printf("Aplicadas %d migrações ao banco de dados.", n)
	} else {
		log.Println("Nenhuma migração nova para aplicar.")
	}
	return nil
}

// SaveProperty insere o registro de um imóvel listado.
func (d *DB) SaveProperty(p models.PropertyRecord) error {
	query := `INSERT INTO properties
		(id, address, symbol, total_shares, available_shares, price_per_share, mint_address, owner_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := d.Exec(query,
		p.ID, p.Address, p.Symbol, p.TotalShares, p.AvailableShares,
		p.PricePerShare, p.MintAddress, p.OwnerAddress, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("falha ao salvar imóvel: %w", err)
	}
	return nil
}

// GetProperty busca um imóvel pelo ID (endereço do mint).
func (d *DB) GetProperty(id string) (models.PropertyRecord, bool, error) {
	var p models.PropertyRecord
	err := d.Get(&p, `SELECT * FROM properties WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PropertyRecord{}, false, nil
	}
	if err != nil {
		return models.PropertyRecord{}, false, fmt.Errorf("falha ao buscar imóvel: %w", err)
	}
	return p, true, nil
}

// GetAllProperties retorna todos os imóveis listados, usado pela reconciliação.
func (d *DB) GetAllProperties() ([]models.PropertyRecord, error) {
	var ps []models.PropertyRecord
	if err := d.Select(&ps, `SELECT * FROM properties ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("falha ao listar imóveis: %w", err)
	}
	return ps, nil
}

// DeleteProperty remove permanentemente o registro de um imóvel deslistado.
func (d *DB) DeleteProperty(id string) error {
	_, err := d.Exec(`DELETE FROM properties WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("falha ao deletar imóvel: %w", err)
	}
	return nil
}

// ReserveShares decrementa available_shares de forma condicional.
// A condição available_shares >= $2 é reavaliada pelo banco no momento da
// escrita, então duas compras concorrentes nunca ultrapassam a oferta disponível.
// Retorna false quando não há cotas suficientes.
func (d *DB) ReserveShares(id string, shares uint64) (bool, error) {
	res, err := d.Exec(
		`UPDATE properties SET available_shares = available_shares - $2
		 WHERE id = $1 AND available_shares >= $2`, id, shares)
	if err != nil {
		return false, fmt.Errorf("falha ao reservar cotas: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("falha ao verificar reserva de cotas: %w", err)
	}
	return n == 1, nil
}

// ReleaseShares devolve cotas reservadas quando a liquidação on-chain falha.
func (d *DB) ReleaseShares(id string, shares uint64) error {
	_, err := d.Exec(
		`UPDATE properties SET available_shares = LEAST(available_shares + $2, total_shares)
		 WHERE id = $1`, id, shares)
	if err != nil {
		return fmt.Errorf("falha ao devolver cotas: %w", err)
	}
	return nil
}

// SetAvailableShares sobrescreve available_shares com o valor observado
// on-chain durante a reconciliação.
func (d *DB) SetAvailableShares(id string, shares uint64) error {
	_, err := d.Exec(
		`UPDATE properties SET available_shares = $2
		 WHERE id = $1 AND $2 <= total_shares`, id, shares)
	if err != nil {
		return fmt.Errorf("falha ao atualizar cotas disponíveis: %w", err)
	}
	return nil
}

// SaveSettlement registra uma compra liquidada.
func (d *DB) SaveSettlement(s models.Settlement) error {
	query := `INSERT INTO settlements
		(id, property_id, buyer_address, shares, amount_lamports, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := d.Exec(query,
		s.ID, s.PropertyID, s.BuyerAddress, s.Shares, s.AmountLamports, s.TransactionID, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("falha ao salvar liquidação: %w", err)
	}
	return nil
}

// GetSettlementsByPropertyID retorna o histórico de compras de um imóvel.
func (d *DB) GetSettlementsByPropertyID(propertyID string) ([]models.Settlement, error) {
	var ss []models.Settlement
	err := d.Select(&ss,
		`SELECT * FROM settlements WHERE property_id = $1 ORDER BY created_at`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar liquidações: %w", err)
	}
	return ss, nil
}

// ConsumePayment marca uma assinatura de pagamento como utilizada.
// Retorna false se a assinatura já financiou outra operação.
func (d *DB) ConsumePayment(signature string) (bool, error) {
	res, err := d.Exec(
		`INSERT INTO consumed_payments (signature) VALUES ($1) ON CONFLICT DO NOTHING`,
		signature)
	if err != nil {
		return false, fmt.Errorf("falha ao consumir pagamento: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("falha ao verificar consumo de pagamento: %w", err)
	}
	return n == 1, nil
}

// ReleasePayment libera uma assinatura consumida quando a operação que ela
// financiaria foi abortada antes de qualquer efeito on-chain.
func (d *DB) ReleasePayment(signature string) error {
	_, err := d.Exec(`DELETE FROM consumed_payments WHERE signature = $1`, signature)
	if err != nil {
		return fmt.Errorf("falha ao liberar pagamento: %w", err)
	}
	return nil
}
