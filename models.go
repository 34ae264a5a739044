package access

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel    `bun:"table:users,alias:usr"`
	ID               uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email            string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Name             string     `bun:"name,notnull" json:"name,omitempty"`
	Role             UserRole   `bun:"role,notnull" json:"role,omitempty"`
	PasswordHash     string     `bun:"password_hash,notnull" json:"-"`
	HasPostingAccess bool       `bun:"has_posting_access,notnull" json:"has_posting_access"`
	LastLogin        *time.Time `bun:"last_login,nullzero" json:"last_login,omitempty"`
	CreatedAt        *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// RequestStatus is the lifecycle status of an access request
type RequestStatus = string

const (
	// RequestStatusPending is the initial status, awaiting an admin decision
	RequestStatusPending RequestStatus = "pending"
	// RequestStatusApproved is the terminal status for granted requests
	RequestStatusApproved RequestStatus = "approved"
	// RequestStatusDenied is the terminal status for rejected requests
	RequestStatusDenied RequestStatus = "denied"
)

// AccessRequest is a user's petition for event posting access
type AccessRequest struct {
	bun.BaseModel `bun:"table:access_requests,alias:acr"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID     `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User         `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Reason        string        `bun:"reason,notnull" json:"reason,omitempty"`
	Status        RequestStatus `bun:"status,notnull,default:'pending'" json:"status,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsDecided reports whether the request reached a terminal status
func (r *AccessRequest) IsDecided() bool {
	return r != nil && r.Status != RequestStatusPending
}
