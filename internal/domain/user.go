package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role discriminates the three account kinds. Role-specific fields live on
// User itself; only the columns for the active role are populated.
type Role string

const (
	RoleEnterprise Role = "enterprise"
	RoleIndividual Role = "individual"
	RoleEmployee   Role = "employee"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`

	// enterprise
	CompanyName    *string `json:"company_name,omitempty"`
	Sector         *string `json:"sector,omitempty"`
	RegistryNumber *string `json:"registry_number,omitempty"`

	// individual and employee
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Position  *string `json:"position,omitempty"`

	// employee
	EnterpriseID    *uuid.UUID `json:"enterprise_id,omitempty"`
	InvitationToken *uuid.UUID `json:"-"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserSession struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	RefreshTokenHash string     `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevokedReason    *string    `json:"revoked_reason,omitempty"`
}

// DisplayName resolves the human-readable name for any account kind.
// This is the single place the role switch lives.
func (u *User) DisplayName() string {
	switch u.Role {
	case RoleEnterprise:
		if u.CompanyName != nil && *u.CompanyName != "" {
			return *u.CompanyName
		}
	case RoleIndividual, RoleEmployee:
		first, last := "", ""
		if u.FirstName != nil {
			first = *u.FirstName
		}
		if u.LastName != nil {
			last = *u.LastName
		}
		name := strings.TrimSpace(first + " " + last)
		if name != "" {
			return name
		}
	}
	return u.Username
}

// Initials derives the two-letter avatar shown next to a display name.
func Initials(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "??"
	}

	parts := strings.Fields(name)
	if len(parts) >= 2 {
		return strings.ToUpper(string([]rune(parts[0])[0]) + string([]rune(parts[1])[0]))
	}

	runes := []rune(name)
	if len(runes) == 1 {
		return strings.ToUpper(string(runes[0]))
	}
	return strings.ToUpper(string(runes[:2]))
}
