package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PrincipalTypeUser is the principal type of user role mappings
const PrincipalTypeUser = "USER"

// TokenNeverExpires is the ttl of tokens that do not expire
const TokenNeverExpires = -1

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero" json:"id,omitempty"`
	Username       string         `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	EmailVerified  bool           `bun:"email_verified" json:"emailVerified"`
	IP             string         `bun:"ip" json:"ip,omitempty"`
	FirstName      string         `bun:"first_name" json:"firstName,omitempty"`
	LastName       string         `bun:"last_name" json:"lastName,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	LoginAttempts  int            `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedInAt,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated,omitempty"`

	// Roles holds role names when the user is loaded including roles
	Roles []string `bun:"-" json:"roles,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// HasRole reports whether the loaded role names include name
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, role := range u.Roles {
		if role == name {
			return true
		}
	}
	return false
}

// EmailDomain returns the part of the email after the @
func (u *User) EmailDomain() string {
	if u == nil {
		return ""
	}
	at := strings.LastIndex(u.Email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(u.Email[at+1:]))
}

// AccessToken is an opaque bearer token bound to a user
type AccessToken struct {
	bun.BaseModel `bun:"table:access_tokens,alias:atk"`
	ID            string    `bun:"id,pk" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull" json:"userId"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	TTL           int       `bun:"ttl,notnull" json:"ttl"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created"`
}

// ExpiresAt returns when the token expires, false if it never does
func (t *AccessToken) ExpiresAt() (time.Time, bool) {
	if t == nil || t.TTL < 0 {
		return time.Time{}, false
	}
	return t.CreatedAt.Add(time.Duration(t.TTL) * time.Second), true
}

// Validate reports whether the token is still usable at now
func (t *AccessToken) Validate(now time.Time) bool {
	if t == nil || t.ID == "" {
		return false
	}
	if t.TTL == TokenNeverExpires {
		return true
	}
	if t.TTL <= 0 {
		return false
	}
	expiresAt, _ := t.ExpiresAt()
	return now.Before(expiresAt)
}

// Role is a named group of permissions
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:role"`
	ID            uuid.UUID  `bun:"id,pk,nullzero" json:"id"`
	Name          string     `bun:"name,notnull,unique" json:"name"`
	Description   string     `bun:"description" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"modified,omitempty"`
}

// RoleMapping assigns a role to a principal
type RoleMapping struct {
	bun.BaseModel `bun:"table:role_mappings,alias:rm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero" json:"id"`
	PrincipalType string     `bun:"principal_type,notnull" json:"principalType"`
	PrincipalID   string     `bun:"principal_id,notnull" json:"principalId"`
	RoleID        uuid.UUID  `bun:"role_id,notnull" json:"roleId"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created,omitempty"`
}

// NewUserRoleMapping builds the mapping of a user to a role
func NewUserRoleMapping(userID, roleID uuid.UUID) *RoleMapping {
	return &RoleMapping{
		PrincipalType: PrincipalTypeUser,
		PrincipalID:   userID.String(),
		RoleID:        roleID,
	}
}

// RoleMappingFilter selects role mappings to destroy
type RoleMappingFilter struct {
	PrincipalType string
	PrincipalID   string
	RoleID        uuid.UUID
}
