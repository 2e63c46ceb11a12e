package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
)

type CredentialKind int

const (
	CredentialPassword CredentialKind = iota + 1
	CredentialToken
)

// Credential is what a connecting session presents: a password checked
// against the stored hash, or an access token issued earlier.
type Credential struct {
	Kind   CredentialKind
	Secret string
}

// Verifier checks credentials against the users table and the JWT secret.
type Verifier struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	jwtSecret []byte
}

func NewVerifier(db *sql.DB, repos repomanager.RepositoryManager, jwtSecret []byte) *Verifier {
	return &Verifier{db: db, repos: repos, jwtSecret: jwtSecret}
}

// Verify returns nil when cred proves the caller is user. Rejections wrap
// common.ErrorUnauthorized; token problems additionally wrap the token error.
func (v *Verifier) Verify(ctx context.Context, user string, cred Credential) error {
	switch cred.Kind {
	case CredentialToken:
		name, err := GetUserNameFromToken(cred.Secret, v.jwtSecret)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
		}
		if name != user {
			return fmt.Errorf("%w: token issued to another user", common.ErrorUnauthorized)
		}
		return nil

	case CredentialPassword:
		u, err := v.repos.Users(v.db).GetUserByLogin(ctx, user)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		ok, err := VerifyPassword(cred.Secret, u.PasswordHash)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		if !ok {
			return common.ErrorUnauthorized
		}
		return nil

	default:
		return fmt.Errorf("%w: unsupported credential kind %d", common.ErrorUnauthorized, cred.Kind)
	}
}
