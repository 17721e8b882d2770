package model

import "time"

// Connection is a live observer connection. The primary key is
// (tenant_id, connection_id); connection_id alone is globally unique and
// secondary-indexed for reverse lookup.
type Connection struct {
	TenantID     string    `db:"tenant_id"`
	ConnectionID string    `db:"connection_id"`
	UserID       string    `db:"user_id"`
	Role         string    `db:"role"`
	ConnectedAt  time.Time `db:"connected_at"`
	ExpiresAt    time.Time `db:"expires_at"`
	LastPing     time.Time `db:"last_ping"`
}

func (c Connection) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
