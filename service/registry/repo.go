package registry

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/marcosotomac/LAST-KFC/model"
)

// ErrNotFound is returned when no connection record matches.
var ErrNotFound = errors.New("connection not found")

type IRepo interface {
	CreateConnection(ctx context.Context, conn model.Connection) error
	// GetByConnectionID is the reverse lookup: connection ids are globally
	// unique but the primary key is tenant-scoped.
	GetByConnectionID(ctx context.Context, connectionID string) (model.Connection, error)
	RenewLease(ctx context.Context, tenantID, connectionID string, expiresAt, lastPing time.Time) error
	DeleteConnection(ctx context.Context, tenantID, connectionID string) error
	ListByTenant(ctx context.Context, tenantID string, role string) ([]model.Connection, error)
}

func NewRepo(db *sqlx.DB) IRepo {
	return &repo{
		db: db,
	}
}

type repo struct {
	db *sqlx.DB
}

var createConnectionQuery = `INSERT INTO connections
	(tenant_id, connection_id, user_id, role, connected_at, expires_at, last_ping)
	VALUES
	(:tenant_id, :connection_id, :user_id, :role, :connected_at, :expires_at, :last_ping)`

func (r repo) CreateConnection(ctx context.Context, conn model.Connection) error {
	_, err := r.db.NamedExecContext(ctx, createConnectionQuery, conn)
	return err
}

var getByConnectionIDQuery = "SELECT * FROM connections WHERE connection_id = ?"

func (r repo) GetByConnectionID(ctx context.Context, connectionID string) (model.Connection, error) {
	var res model.Connection
	err := r.db.GetContext(ctx, &res, getByConnectionIDQuery, connectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Connection{}, ErrNotFound
	}
	return res, err
}

var renewLeaseQuery = "UPDATE connections SET expires_at = ?, last_ping = ? WHERE tenant_id = ? AND connection_id = ?"

func (r repo) RenewLease(ctx context.Context, tenantID, connectionID string, expiresAt, lastPing time.Time) error {
	_, err := r.db.ExecContext(ctx, renewLeaseQuery, expiresAt, lastPing, tenantID, connectionID)
	return err
}

var deleteConnectionQuery = "DELETE FROM connections WHERE tenant_id = ? AND connection_id = ?"

func (r repo) DeleteConnection(ctx context.Context, tenantID, connectionID string) error {
	_, err := r.db.ExecContext(ctx, deleteConnectionQuery, tenantID, connectionID)
	return err
}

var listByTenantQuery = "SELECT * FROM connections WHERE tenant_id = ? AND expires_at > ?"
var listByTenantRoleQuery = "SELECT * FROM connections WHERE tenant_id = ? AND expires_at > ? AND role = ?"

func (r repo) ListByTenant(ctx context.Context, tenantID string, role string) ([]model.Connection, error) {
	now := time.Now().UTC()
	var res []model.Connection
	var err error
	if role == "" {
		err = r.db.SelectContext(ctx, &res, listByTenantQuery, tenantID, now)
	} else {
		err = r.db.SelectContext(ctx, &res, listByTenantRoleQuery, tenantID, now, role)
	}
	return res, err
}
