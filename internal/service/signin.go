// Package service contains the flows that span multiple stores. The only
// one with real teeth is the provider sign-in merge: reconciling an external
// identity against existing accounts without ever minting a duplicate.
package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/moviesaw/auth-service/internal/model"
	"github.com/moviesaw/auth-service/internal/repository"
)

// ErrLinkingRequiresVerification is returned when an account already exists
// for the identity's email under another method and the provider does not
// assert the email as verified. The user must authenticate by the existing
// method before the identities can be joined.
var ErrLinkingRequiresVerification = errors.New("linking requires a provider-verified email")

// ExternalIdentity is a provider-asserted identity, normalized across
// providers by the OAuth handlers.
type ExternalIdentity struct {
	Provider      string // model.AuthMethodGoogle or model.AuthMethodGitHub
	Subject       string // provider's stable user id
	Email         string
	Name          string
	Avatar        string
	EmailVerified bool // whether the provider vouches for the email
}

// AccountStore is the slice of the credential store the merge flow needs.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (model.Account, error)
	UpdateProfile(ctx context.Context, id uint64, name, avatar string) error
}

// LinkStore is the identity link table plus the combined account+link
// creation used for first-time provider registrations. Link and
// CreateProviderAccount must be atomic unique-constrained writes that fail
// with repository.ErrAlreadyLinked on collision.
type LinkStore interface {
	FindLinkedAccount(ctx context.Context, provider, subject string) (model.Account, error)
	Link(ctx context.Context, accountID uint64, provider, subject string) error
	CreateProviderAccount(ctx context.Context, name, email, avatar, provider, subject string, emailVerified bool) (model.Account, error)
}

// ProviderSignIn resolves an external identity to exactly one account,
// creating the account and/or identity link as needed.
type ProviderSignIn struct {
	Accounts AccountStore
	Links    LinkStore
	Log      *logrus.Logger
}

// signInAttempts bounds the re-resolution loop. Two is enough for any single
// lost race; the third round only covers pathological interleavings.
const signInAttempts = 3

// SignIn implements the merge order:
//
//  1. An identity link already exists: that account wins, full stop. The
//     cached profile is refreshed best-effort.
//  2. An account exists for the email under a different method: auto-link
//     only when the provider asserts the email is verified, otherwise the
//     sign-in is rejected and the user must use the existing method.
//  3. Nothing matches: register a fresh provider-backed account and link in
//     one atomic write.
//
// Steps 2 and 3 can lose a race against a concurrent sign-in for the same
// never-seen identity. The unique constraints turn the loser's write into
// repository.ErrAlreadyLinked, and the loop falls back to step 1 where the
// winner's account is found. That is what keeps "two concurrent first-time
// sign-ins create one account" true.
func (s *ProviderSignIn) SignIn(ctx context.Context, id ExternalIdentity) (model.Account, error) {
	for attempt := 0; attempt < signInAttempts; attempt++ {
		acct, err := s.Links.FindLinkedAccount(ctx, id.Provider, id.Subject)
		if err == nil {
			if perr := s.Accounts.UpdateProfile(ctx, acct.ID, id.Name, id.Avatar); perr != nil && s.Log != nil {
				s.Log.WithError(perr).WithField("account_id", acct.ID).Warn("profile refresh failed")
			}
			return acct, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, err
		}

		acct, err = s.Accounts.FindByEmail(ctx, id.Email)
		switch {
		case err == nil:
			if acct.AuthMethod == id.Provider {
				// Same provider, different subject sharing the email. The
				// account's provider slot is taken; this is a conflict, not
				// a merge.
				return model.Account{}, repository.ErrAlreadyLinked
			}
			if !id.EmailVerified {
				return model.Account{}, ErrLinkingRequiresVerification
			}
			if lerr := s.Links.Link(ctx, acct.ID, id.Provider, id.Subject); lerr != nil {
				if errors.Is(lerr, repository.ErrAlreadyLinked) {
					continue // lost a race, re-resolve
				}
				return model.Account{}, lerr
			}
			return acct, nil

		case errors.Is(err, repository.ErrNotFound):
			acct, err = s.Links.CreateProviderAccount(ctx,
				id.Name, id.Email, id.Avatar, id.Provider, id.Subject, id.EmailVerified)
			if err != nil {
				if errors.Is(err, repository.ErrAlreadyLinked) {
					continue // concurrent first sign-in won, re-resolve
				}
				return model.Account{}, err
			}
			return acct, nil

		default:
			return model.Account{}, err
		}
	}
	return model.Account{}, repository.ErrAlreadyLinked
}
