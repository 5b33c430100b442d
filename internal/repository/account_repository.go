package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/moviesaw/auth-service/internal/model"
	"github.com/moviesaw/auth-service/internal/utils"
)

// mysqlDuplicateKey is the server error number for a unique-key violation.
const mysqlDuplicateKey = 1062

// isDuplicateKey reports whether err is a MySQL duplicate-key failure.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateKey
}

// accountColumns is the select list shared by every account query.
const accountColumns = `id, name, email, password_hash, avatar, auth_method,
	provider_subject, role, email_verified, verification_token, created_at, updated_at`

// AccountRepo is the credential store: one row per account in the `accounts`
// table. Uniqueness is enforced by the (email, auth_method) key so the same
// address may exist once per sign-in method.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// CreateLocal inserts a password-backed account. The password is stored as a
// bcrypt hash, never in plaintext. The account starts unverified with a
// freshly generated verification token which the caller is expected to
// dispatch. Returns ErrDuplicateAccount when a local account with this email
// already exists.
func (r *AccountRepo) CreateLocal(ctx context.Context, name, email, password string, cost int) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.Account{}, err
	}
	token, err := utils.NewVerificationToken()
	if err != nil {
		return model.Account{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO accounts (name, email, password_hash, auth_method, role, email_verified, verification_token)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		name, email, hash, model.AuthMethodLocal, model.RoleUser, token)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Account{}, ErrDuplicateAccount
		}
		return model.Account{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Account{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? LIMIT 1`, id)
	return scanAccount(row)
}

// FindByEmailAndMethod fetches the account registered under a specific auth
// method for a normalized email.
func (r *AccountRepo) FindByEmailAndMethod(ctx context.Context, email, method string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ? AND auth_method = ? LIMIT 1`,
		email, method)
	return scanAccount(row)
}

// FindByEmail fetches an account for the email under any auth method. When
// several methods share the address the local account wins, so provider
// sign-ins auto-link to the credential-backed identity first.
func (r *AccountRepo) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?
		 ORDER BY auth_method = ? DESC, id ASC LIMIT 1`,
		email, model.AuthMethodLocal)
	return scanAccount(row)
}

// VerifyPassword checks a plaintext password against the account's stored
// hash. Only local accounts carry a hash; for provider accounts the check is
// meaningless and fails with ErrUnsupportedAuthMethod.
func (r *AccountRepo) VerifyPassword(a model.Account, password string) (bool, error) {
	if !a.IsLocal() {
		return false, ErrUnsupportedAuthMethod
	}
	return utils.VerifyPassword(a.PasswordHash, password), nil
}

// RotateVerificationToken replaces the pending verification token of an
// unverified account with a fresh value and returns it. The previous token
// stops confirming the moment the update lands. Fails with
// ErrAlreadyVerified when the account no longer needs verification.
func (r *AccountRepo) RotateVerificationToken(ctx context.Context, id uint64) (string, error) {
	token, err := utils.NewVerificationToken()
	if err != nil {
		return "", err
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET verification_token = ? WHERE id = ? AND email_verified = 0`,
		token, id)
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return "", err
		}
		return "", ErrAlreadyVerified
	}
	return token, nil
}

// ConfirmVerification consumes a pending verification token for a local
// account. The conditional update makes the token single-use: a replayed or
// replaced token matches zero rows. The follow-up read only decides which
// error to report.
func (r *AccountRepo) ConfirmVerification(ctx context.Context, email, token string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if token == "" {
		return ErrInvalidVerification
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET email_verified = 1, verification_token = ''
		 WHERE email = ? AND auth_method = ? AND email_verified = 0 AND verification_token = ?`,
		email, model.AuthMethodLocal, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	a, err := r.FindByEmailAndMethod(ctx, email, model.AuthMethodLocal)
	if err != nil {
		return err
	}
	if a.EmailVerified {
		return ErrAlreadyVerified
	}
	return ErrInvalidVerification
}

// UpdateProfile refreshes the cached display name and avatar, used
// opportunistically after a provider sign-in. Empty values leave the stored
// ones untouched.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uint64, name, avatar string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE accounts
		 SET name = IF(? = '', name, ?), avatar = IF(? = '', avatar, ?)
		 WHERE id = ?`,
		name, name, avatar, avatar, id)
	return err
}

// Delete removes an account row. Identity links and session state are owned
// by other stores and must be reconciled by the caller.
func (r *AccountRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanAccount reads one account row, normalizing nullable columns and
// mapping sql.ErrNoRows onto ErrNotFound.
func scanAccount(row *sql.Row) (model.Account, error) {
	var (
		a       model.Account
		hash    sql.NullString
		subject sql.NullString
		avatar  sql.NullString
		verTok  sql.NullString
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &hash, &avatar, &a.AuthMethod,
		&subject, &a.Role, &a.EmailVerified, &verTok, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, err
	}
	a.PasswordHash = hash.String
	a.ProviderSubject = subject.String
	a.Avatar = avatar.String
	a.VerificationToken = verTok.String
	return a, nil
}
