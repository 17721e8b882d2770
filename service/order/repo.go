package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/marcosotomac/LAST-KFC/model"
)

// ErrNotFound is returned when an order does not exist for the tenant.
var ErrNotFound = errors.New("order not found")

// OrderUpdate is a typed partial update. Nil fields are left untouched, which
// keeps store writes limited to fields this core actually owns.
type OrderUpdate struct {
	Status        *model.OrderStatus
	Trace         *model.Trace
	PendingTokens *model.TokenMap
	UpdatedAt     *time.Time
}

type IRepo interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order model.Order) error
	GetOrder(ctx context.Context, tenantID, orderID string) (model.Order, error)
	ListOrders(ctx context.Context, tenantID string, status model.OrderStatus, limit int) ([]model.Order, error)
	UpdateOrder(ctx context.Context, tenantID, orderID string, update OrderUpdate) error
	TenantExists(ctx context.Context, tenantID string) (bool, error)
	CreateOutbox(ctx context.Context, outbox model.Outbox) error
	GetPendingOutbox(ctx context.Context, limit int) ([]model.Outbox, error)
	MarkDoneOutboxes(ctx context.Context, ids []int64) error
}

func NewRepo(db *sqlx.DB) IRepo {
	return &repo{
		db: db,
	}
}

type repo struct {
	db *sqlx.DB
}

type txKey struct{}

// ext resolves the executor for a query: the transaction carried in ctx by
// Transact, or the pool. Statements issued inside a Transact closure must all
// land on the same connection or the commit covers nothing.
func (r repo) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.db
}

var getOrderQuery = "SELECT * FROM orders WHERE tenant_id = ? AND order_id = ?"

func (r repo) GetOrder(ctx context.Context, tenantID, orderID string) (model.Order, error) {
	var res model.Order
	err := sqlx.GetContext(ctx, r.ext(ctx), &res, getOrderQuery, tenantID, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNotFound
	}
	return res, err
}

var createOrderQuery = `INSERT INTO orders
	(tenant_id, order_id, status, items, customer_name, customer_phone,
	 delivery_address, notes, total_amount, trace, pending_tokens, created_at, updated_at)
	VALUES
	(:tenant_id, :order_id, :status, :items, :customer_name, :customer_phone,
	 :delivery_address, :notes, :total_amount, :trace, :pending_tokens, :created_at, :updated_at)`

func (r repo) CreateOrder(ctx context.Context, order model.Order) error {
	_, err := sqlx.NamedExecContext(ctx, r.ext(ctx), createOrderQuery, order)
	return err
}

var listOrdersQuery = "SELECT * FROM orders WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ?"
var listOrdersByStatusQuery = "SELECT * FROM orders WHERE tenant_id = ? AND status = ? ORDER BY created_at DESC LIMIT ?"

func (r repo) ListOrders(ctx context.Context, tenantID string, status model.OrderStatus, limit int) ([]model.Order, error) {
	var res []model.Order
	var err error
	if status == "" {
		err = sqlx.SelectContext(ctx, r.ext(ctx), &res, listOrdersQuery, tenantID, limit)
	} else {
		err = sqlx.SelectContext(ctx, r.ext(ctx), &res, listOrdersByStatusQuery, tenantID, status, limit)
	}
	return res, err
}

// UpdateOrder applies a last-write-wins unconditional update. Concurrent
// writers on the same order are not serialized; see the workflow docs.
func (r repo) UpdateOrder(ctx context.Context, tenantID, orderID string, update OrderUpdate) error {
	var sets []string
	var args []interface{}

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if update.Trace != nil {
		sets = append(sets, "trace = ?")
		args = append(args, *update.Trace)
	}
	if update.PendingTokens != nil {
		sets = append(sets, "pending_tokens = ?")
		args = append(args, *update.PendingTokens)
	}
	if update.UpdatedAt != nil {
		sets = append(sets, "updated_at = ?")
		args = append(args, *update.UpdatedAt)
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE orders SET %s WHERE tenant_id = ? AND order_id = ?", strings.Join(sets, ", "))
	args = append(args, tenantID, orderID)

	res, err := r.ext(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

var tenantExistsQuery = "SELECT count(*) FROM tenants WHERE tenant_id = ?"

func (r repo) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	var res int
	err := sqlx.GetContext(ctx, r.ext(ctx), &res, tenantExistsQuery, tenantID)
	return res > 0, err
}

// Transact runs fn atomically. The transaction rides in the context, so repo
// calls made inside fn execute on it; an error from fn rolls everything back.
func (r repo) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

var createOutboxQuery = "INSERT INTO event_outboxes(content) VALUES (:content)"

func (r repo) CreateOutbox(ctx context.Context, outbox model.Outbox) error {
	_, err := sqlx.NamedExecContext(ctx, r.ext(ctx), createOutboxQuery, outbox)
	return err
}

var getPendingOutboxQuery = "SELECT * FROM event_outboxes WHERE status = ? LIMIT ?"

func (r repo) GetPendingOutbox(ctx context.Context, limit int) ([]model.Outbox, error) {
	var res []model.Outbox
	err := sqlx.SelectContext(ctx, r.ext(ctx), &res, getPendingOutboxQuery, model.OutboxPending, limit)
	return res, err
}

var markDoneOutboxesQuery = "UPDATE event_outboxes SET status = ? WHERE id IN (?)"

func (r repo) MarkDoneOutboxes(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(markDoneOutboxesQuery, model.OutboxCompleted, ids)
	if err != nil {
		return err
	}

	_, err = r.ext(ctx).ExecContext(ctx, query, args...)
	return err
}
