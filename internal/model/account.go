package model

import "time"

// Auth methods recognized by the service. Local accounts carry a password
// hash; provider accounts carry a provider subject id instead.
const (
	AuthMethodLocal  = "local"
	AuthMethodGoogle = "google"
	AuthMethodGitHub = "github"
)

// Roles stored on an account. Admin unlocks the maintenance endpoints.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account represents one user identity as stored in the `accounts` table.
// Email is unique per auth method, not globally: a local account and a
// provider account may share the same address.
//
// Fields:
//  ID                – primary key identifier of the account.
//  Name              – display name.
//  Email             – lowercased email address.
//  PasswordHash      – bcrypt hash; empty unless AuthMethod is local.
//  Avatar            – cached avatar URL (provider accounts).
//  AuthMethod        – local | google | github.
//  ProviderSubject   – external subject id; empty for local accounts.
//  Role              – user | admin.
//  EmailVerified     – whether the email has been confirmed.
//  VerificationToken – pending single-use email verification token ("" when none).
//  CreatedAt         – timestamp of creation.
//  UpdatedAt         – timestamp of last update.
type Account struct {
	ID                uint64
	Name              string
	Email             string
	PasswordHash      string
	Avatar            string
	AuthMethod        string
	ProviderSubject   string
	Role              string
	EmailVerified     bool
	VerificationToken string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsLocal reports whether the account authenticates with a password.
func (a Account) IsLocal() bool { return a.AuthMethod == AuthMethodLocal }

// IdentityLink maps an external provider identity to an account. The pair
// (Provider, ProviderSubject) is unique across the table; a link is created
// on first successful provider sign-in and never mutated afterwards.
//
// Fields:
//  ID              – primary key identifier.
//  AccountID       – the account this identity resolves to.
//  Provider        – provider name (google, github).
//  ProviderSubject – the provider's stable subject id for the user.
//  CreatedAt       – timestamp of creation.
type IdentityLink struct {
	ID              uint64
	AccountID       uint64
	Provider        string
	ProviderSubject string
	CreatedAt       time.Time
}
