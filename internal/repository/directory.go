package repository

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

// DirectoryRepository serves the reference tables: shippers, users and locations.
type DirectoryRepository interface {
	ListShippers(ctx context.Context) ([]*entity.Shipper, error)
	ListUsers(ctx context.Context) ([]*entity.User, error)
	UpsertShipper(ctx context.Context, shipperID, name string) error
	GetOrCreateLocation(ctx context.Context, loc *entity.Location) (int64, error)
}

type directoryRepository struct {
	pool   DBPool
	logger *slog.Logger
}

func NewDirectoryRepository(pool DBPool, logger *slog.Logger) DirectoryRepository {
	return &directoryRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *directoryRepository) ListShippers(ctx context.Context) ([]*entity.Shipper, error) {
	rows, err := r.pool.Query(ctx, `SELECT shipper_id, name, created_at FROM shippers ORDER BY shipper_id`)
	if err != nil {
		r.logger.Error("failed to list shippers", "error", err)
		return nil, dbError("list shippers", err)
	}
	defer rows.Close()

	out := make([]*entity.Shipper, 0)
	for rows.Next() {
		var s entity.Shipper
		if err := rows.Scan(&s.ShipperID, &s.Name, &s.CreatedAt); err != nil {
			return nil, dbError("scan shipper", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list shippers", err)
	}
	return out, nil
}

func (r *directoryRepository) ListUsers(ctx context.Context) ([]*entity.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, role, created_at FROM users ORDER BY id`)
	if err != nil {
		r.logger.Error("failed to list users", "error", err)
		return nil, dbError("list users", err)
	}
	defer rows.Close()

	out := make([]*entity.User, 0)
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, dbError("scan user", err)
		}
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list users", err)
	}
	return out, nil
}

// UpsertShipper creates the shipper if missing. An empty name keeps any stored name.
func (r *directoryRepository) UpsertShipper(ctx context.Context, shipperID, name string) error {
	if name == "" {
		name = shipperID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO shippers (shipper_id, name) VALUES ($1, $2)
		ON CONFLICT (shipper_id) DO NOTHING`, shipperID, name)
	if err != nil {
		return dbError("upsert shipper", err)
	}
	return nil
}

func (r *directoryRepository) GetOrCreateLocation(ctx context.Context, loc *entity.Location) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO locations (name, company_name, company_address, city, state)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name, company_address) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		loc.Name, loc.CompanyName, loc.CompanyAddress, loc.City, loc.State,
	).Scan(&id)
	if err != nil {
		r.logger.Error("failed to upsert location", "name", loc.Name, "error", err)
		return 0, dbError("get or create location", err)
	}
	loc.ID = id
	return id, nil
}
