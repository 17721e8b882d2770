package model

import "time"

// Tenant is the top-level ownership boundary. Tenant management itself lives
// outside this core; only existence checks are needed here.
type Tenant struct {
	TenantID  string    `db:"tenant_id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}
