package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/protegacloudpay/cloudpay/internal/domain"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

const itemColumns = `id, name, barcode, price, category, stock, created_at, updated_at`

func (s *SQLiteStore) List(ctx context.Context, merchantID string) ([]*domain.InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory WHERE merchant_id = $1 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	var items []*domain.InventoryItem
	for rows.Next() {
		item := &domain.InventoryItem{}
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Barcode,
			&item.Price,
			&item.Category,
			&item.Stock,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) GetByBarcode(ctx context.Context, merchantID, barcode string) (*domain.InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory WHERE merchant_id = $1 AND barcode = $2`

	item := &domain.InventoryItem{}
	err := s.db.QueryRowContext(ctx, query, merchantID, barcode).Scan(
		&item.ID,
		&item.Name,
		&item.Barcode,
		&item.Price,
		&item.Category,
		&item.Stock,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item by barcode: %w", err)
	}
	return item, nil
}

func (s *SQLiteStore) Create(ctx context.Context, merchantID string, item *domain.InventoryItem) error {
	query := `INSERT INTO inventory (merchant_id, name, barcode, price, category, stock, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`

	result, err := s.db.ExecContext(ctx, query,
		merchantID, item.Name, item.Barcode, item.Price, item.Category, item.Stock)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBarcode
		}
		return fmt.Errorf("failed to insert inventory item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted id: %w", err)
	}
	item.ID = id
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, merchantID string, item *domain.InventoryItem) error {
	query := `UPDATE inventory
	          SET name = $1, barcode = $2, price = $3, category = $4, stock = $5, updated_at = CURRENT_TIMESTAMP
	          WHERE merchant_id = $6 AND id = $7`

	result, err := s.db.ExecContext(ctx, query,
		item.Name, item.Barcode, item.Price, item.Category, item.Stock, merchantID, item.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBarcode
		}
		return fmt.Errorf("failed to update inventory item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, merchantID string, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM inventory WHERE merchant_id = $1 AND id = $2`, merchantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete inventory item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
