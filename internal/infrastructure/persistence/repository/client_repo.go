package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/fourvoice/billing-backend/internal/application/port"
	"github.com/fourvoice/billing-backend/internal/domain/entity"
)

// ClientRepository implements port.ClientRepository
type ClientRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *sql.DB, logger *zap.Logger) port.ClientRepository {
	return &ClientRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new saved client
func (r *ClientRepository) Create(ctx context.Context, client *entity.Client) error {
	query := `INSERT INTO clients (name, email, phone, address) VALUES (?, ?, ?, ?)`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		client.Name, client.Email, client.Phone, client.Address)
	if err != nil {
		r.logger.Error("Failed to create client", zap.Error(err))
		return fmt.Errorf("failed to create client: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	client.ID = id
	return nil
}

// GetByID retrieves a client by id, nil when absent
func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*entity.Client, error) {
	query := `SELECT id, name, email, phone, address, created_at FROM clients WHERE id = ?`

	var client entity.Client
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&client.ID, &client.Name, &client.Email, &client.Phone, &client.Address, &client.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get client", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}

// List returns all saved clients ordered by name
func (r *ClientRepository) List(ctx context.Context) ([]*entity.Client, error) {
	query := `SELECT id, name, email, phone, address, created_at FROM clients ORDER BY name`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list clients", zap.Error(err))
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*entity.Client
	for rows.Next() {
		var client entity.Client
		if err := rows.Scan(
			&client.ID, &client.Name, &client.Email, &client.Phone, &client.Address, &client.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, &client)
	}
	return clients, rows.Err()
}

// Verify interface compliance
var _ port.ClientRepository = (*ClientRepository)(nil)
