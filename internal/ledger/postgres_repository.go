package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
	"github.com/protegacloudpay/cloudpay/internal/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(cred *Credentials) (*PostgresRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "ledger_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}
	return nil
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, txn *domain.Transaction, event *OutboxEvent) error {
	itemsJSON, err := json.Marshal(txn.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction items: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO transactions
	          (id, merchant_id, customer_id, payment_method_id, amount, tax, total, items, fingerprint_hash, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`

	_, insertErr := tx.ExecContext(ctx, query,
		txn.ID,
		txn.MerchantID,
		txn.CustomerID,
		txn.PaymentMethodID,
		txn.Amount,
		txn.Tax,
		txn.Total,
		itemsJSON,
		txn.FingerprintHash,
		txn.Status)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert transaction: %w", insertErr)
	}

	if event != nil {
		outboxQuery := `INSERT INTO transaction_outbox (aggregate_id, event_type, payload, created_at)
		                VALUES ($1, $2, $3, NOW())`
		if _, err := tx.ExecContext(ctx, outboxQuery, event.AggregateID, event.EventType, event.Payload); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const transactionColumns = `id, merchant_id, customer_id, payment_method_id, amount, tax, total, items, status, created_at, updated_at`

func scanTransaction(scan func(...any) error) (*domain.Transaction, error) {
	var txn domain.Transaction
	var itemsJSON []byte
	err := scan(
		&txn.ID,
		&txn.MerchantID,
		&txn.CustomerID,
		&txn.PaymentMethodID,
		&txn.Amount,
		&txn.Tax,
		&txn.Total,
		&itemsJSON,
		&txn.Status,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &txn.Items); err != nil {
		return nil, fmt.Errorf("unmarshal transaction items: %w", err)
	}
	return &txn, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	txn, err := scanTransaction(r.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction by id: %w", err)
	}
	return txn, nil
}

func (r *PostgresRepository) ListByMerchant(ctx context.Context, merchantID string, skip, limit int) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
	          FROM transactions WHERE merchant_id = $1
	          ORDER BY created_at DESC OFFSET $2 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, merchantID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions by merchant: %w", err)
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return txns, nil
}

func (r *PostgresRepository) Stats(ctx context.Context, merchantID string) (domain.MerchantStats, error) {
	query := `SELECT
	            COUNT(*) FILTER (WHERE status = 'completed'),
	            COALESCE(SUM(total) FILTER (WHERE status = 'completed'), 0),
	            COUNT(DISTINCT customer_id) FILTER (WHERE status = 'completed'),
	            COUNT(*) FILTER (WHERE status = 'failed'),
	            COUNT(*)
	          FROM transactions WHERE merchant_id = $1`

	var stats domain.MerchantStats
	var completed, total int
	err := r.db.QueryRowContext(ctx, query, merchantID).Scan(
		&completed,
		&stats.Revenue,
		&stats.Customers,
		&stats.FraudAttempts,
		&total,
	)
	if err != nil {
		return domain.MerchantStats{}, fmt.Errorf("query merchant stats: %w", err)
	}

	stats.TotalTransactions = completed
	stats.Fees = stats.Revenue * domain.FeeRate
	if completed > 0 {
		stats.AvgTransaction = stats.Revenue / float64(completed)
	}
	if total > 0 {
		stats.ApprovalRate = float64(completed) / float64(total) * 100
	}
	return stats, nil
}

func (r *PostgresRepository) GetUnpublishedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM transaction_outbox WHERE published_at IS NULL
	          ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *PostgresRepository) MarkEventPublished(ctx context.Context, eventID int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE transaction_outbox SET published_at = NOW() WHERE id = $1 AND published_at IS NULL`,
		eventID)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
