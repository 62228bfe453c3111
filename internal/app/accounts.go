package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"docintake/internal/util"
	"docintake/pkg/auth"
	"docintake/pkg/domain"
	"docintake/pkg/store"
)

// NewAccount is the input of CreateAccount. Empty optional fields take the
// account defaults.
type NewAccount struct {
	Email    string
	Password string
	Name     string
	Language string
	Timezone string
}

// CreateAccount registers an account with a salted PBKDF2 password hash.
func (a *App) CreateAccount(in NewAccount) (domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return domain.Account{}, ErrEmailRequired
	}
	if in.Password == "" {
		return domain.Account{}, ErrPasswordRequired
	}
	exists, err := a.store.HasAccountEmail(email)
	if err != nil {
		return domain.Account{}, err
	}
	if exists {
		return domain.Account{}, ErrEmailAlreadyExists
	}
	hash, salt, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	now := time.Now().UTC()
	acct := domain.Account{
		ID:                util.NewID(),
		Name:              name,
		Email:             email,
		Password:          hash,
		PasswordSalt:      salt,
		InterfaceLanguage: defaultString(in.Language, "en-US"),
		InterfaceTheme:    domain.DefaultInterfaceTheme,
		Timezone:          defaultString(in.Timezone, "UTC"),
		LastLoginIP:       domain.DefaultLastLoginIP,
		LastActiveAt:      now,
		Status:            domain.AccountActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := a.store.SaveAccount(acct); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Account{}, ErrEmailAlreadyExists
		}
		return domain.Account{}, fmt.Errorf("save account: %w", err)
	}
	a.logger.Info("account created", "account_id", acct.ID)
	return acct, nil
}

// Authenticate returns the account when the password matches its stored hash.
func (a *App) Authenticate(email, password string) (domain.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.Account{}, ErrInvalidCredentials
	}
	acct, ok, err := a.store.GetAccountByEmail(email)
	if err != nil {
		return domain.Account{}, err
	}
	if !ok || !auth.CheckPassword(password, acct.Password, acct.PasswordSalt) {
		return domain.Account{}, ErrInvalidCredentials
	}
	switch acct.Status {
	case domain.AccountBlocked, domain.AccountInactive:
		return domain.Account{}, ErrAccountDisabled
	}
	return acct, nil
}

func defaultString(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}
