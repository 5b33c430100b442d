package repository

import (
	"context"
	"database/sql"

	"github.com/moviesaw/auth-service/internal/model"
)

// IdentityLinkRepo maps external provider identities to accounts. The
// `identity_links` table carries a unique key on (provider, provider_subject)
// so the database, not application code, arbitrates concurrent first-time
// sign-ins for the same external identity.
type IdentityLinkRepo struct{ DB *sql.DB }

func NewIdentityLinkRepo(db *sql.DB) *IdentityLinkRepo { return &IdentityLinkRepo{DB: db} }

// FindLinkedAccount resolves a (provider, subject) pair to its account.
// Returns ErrNotFound when no link exists.
func (r *IdentityLinkRepo) FindLinkedAccount(ctx context.Context, provider, subject string) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT a.id, a.name, a.email, a.password_hash, a.avatar, a.auth_method,
		        a.provider_subject, a.role, a.email_verified, a.verification_token,
		        a.created_at, a.updated_at
		 FROM identity_links l
		 JOIN accounts a ON a.id = l.account_id
		 WHERE l.provider = ? AND l.provider_subject = ?
		 LIMIT 1`,
		provider, subject)
	return scanAccount(row)
}

// Link inserts a single identity link for an existing account. The insert is
// the atomic unique-constrained write the merge flow relies on: a duplicate
// (provider, subject) pair fails with ErrAlreadyLinked instead of silently
// pointing two accounts at one identity.
func (r *IdentityLinkRepo) Link(ctx context.Context, accountID uint64, provider, subject string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO identity_links (account_id, provider, provider_subject) VALUES (?, ?, ?)`,
		accountID, provider, subject)
	if err != nil && isDuplicateKey(err) {
		return ErrAlreadyLinked
	}
	return err
}

// CreateProviderAccount inserts a brand-new provider-backed account together
// with its identity link in one transaction. If the link insert loses a race
// against a concurrent first-time sign-in, the whole transaction rolls back
// so no orphaned account survives, and the caller re-resolves the winner via
// FindLinkedAccount. Provider accounts store no password hash; the email
// verified flag mirrors the provider's own assertion.
func (r *IdentityLinkRepo) CreateProviderAccount(ctx context.Context, name, email, avatar, provider, subject string, emailVerified bool) (a model.Account, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Account{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (name, email, avatar, auth_method, provider_subject, role, email_verified, verification_token)
		 VALUES (?, ?, ?, ?, ?, ?, ?, '')`,
		name, email, avatar, provider, subject, model.RoleUser, emailVerified)
	if err != nil {
		if isDuplicateKey(err) {
			// Same provider method + email pair already exists. Treat like a
			// lost link race; the caller re-resolves.
			err = ErrAlreadyLinked
		}
		return model.Account{}, err
	}
	var id int64
	id, err = res.LastInsertId()
	if err != nil {
		return model.Account{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO identity_links (account_id, provider, provider_subject) VALUES (?, ?, ?)`,
		uint64(id), provider, subject)
	if err != nil {
		if isDuplicateKey(err) {
			err = ErrAlreadyLinked
		}
		return model.Account{}, err
	}

	a = model.Account{
		ID:              uint64(id),
		Name:            name,
		Email:           email,
		Avatar:          avatar,
		AuthMethod:      provider,
		ProviderSubject: subject,
		Role:            model.RoleUser,
		EmailVerified:   emailVerified,
	}
	return a, err
}

// DeleteForAccount removes every link pointing at an account. Used when an
// admin deletes the account so the link table does not accumulate orphans.
func (r *IdentityLinkRepo) DeleteForAccount(ctx context.Context, accountID uint64) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM identity_links WHERE account_id = ?`, accountID)
	return err
}
