package registry

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcosotomac/LAST-KFC/model"
)

// IService tracks live observer connections per tenant. Leases expire after
// the TTL unless renewed by a ping; expired rows are swept by the store, not
// by this core.
type IService interface {
	Register(ctx context.Context, tenantID, connectionID, userID, role string) (model.Connection, error)
	Renew(ctx context.Context, connectionID string) (model.Connection, error)
	Remove(ctx context.Context, connectionID string) error
	ListByTenant(ctx context.Context, tenantID string, role string) ([]model.Connection, error)
}

func NewService(repo IRepo, ttl time.Duration, log *logrus.Entry) IService {
	return &service{
		repo: repo,
		ttl:  ttl,
		log:  log,
	}
}

type service struct {
	repo IRepo
	ttl  time.Duration
	log  *logrus.Entry
}

func (s *service) Register(ctx context.Context, tenantID, connectionID, userID, role string) (model.Connection, error) {
	if userID == "" {
		userID = "anonymous"
	}
	if role == "" {
		role = "customer"
	}

	now := time.Now().UTC()
	conn := model.Connection{
		TenantID:     tenantID,
		ConnectionID: connectionID,
		UserID:       userID,
		Role:         role,
		ConnectedAt:  now,
		ExpiresAt:    now.Add(s.ttl),
		LastPing:     now,
	}

	if err := s.repo.CreateConnection(ctx, conn); err != nil {
		return model.Connection{}, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":     tenantID,
		"connection_id": connectionID,
		"role":          role,
	}).Info("connection registered")
	return conn, nil
}

func (s *service) Renew(ctx context.Context, connectionID string) (model.Connection, error) {
	conn, err := s.repo.GetByConnectionID(ctx, connectionID)
	if err != nil {
		return model.Connection{}, err
	}

	now := time.Now().UTC()
	conn.ExpiresAt = now.Add(s.ttl)
	conn.LastPing = now

	err = s.repo.RenewLease(ctx, conn.TenantID, conn.ConnectionID, conn.ExpiresAt, conn.LastPing)
	if err != nil {
		return model.Connection{}, err
	}
	return conn, nil
}

// Remove deletes a connection record. A connection that is already gone is
// not an error; disconnects and lazy cleanup race with the TTL sweep.
func (s *service) Remove(ctx context.Context, connectionID string) error {
	conn, err := s.repo.GetByConnectionID(ctx, connectionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.repo.DeleteConnection(ctx, conn.TenantID, conn.ConnectionID); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":     conn.TenantID,
		"connection_id": connectionID,
	}).Info("connection removed")
	return nil
}

// ListByTenant returns the tenant's live connections. The store query already
// excludes expired leases; the check here also drops rows that expired between
// the query and this call.
func (s *service) ListByTenant(ctx context.Context, tenantID string, role string) ([]model.Connection, error) {
	conns, err := s.repo.ListByTenant(ctx, tenantID, role)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	live := conns[:0]
	for _, conn := range conns {
		if conn.Expired(now) {
			continue
		}
		live = append(live, conn)
	}
	return live, nil
}
