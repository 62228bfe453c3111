package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docintake/pkg/domain"
)

// SaveAccount registers or updates an account.
func (s *GormStore) SaveAccount(a domain.Account) error {
	model := accountToModel(a)
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "email", "password", "password_salt", "interface_language", "interface_theme",
			"timezone", "last_login_at", "last_login_ip", "last_active_at", "status", "updated_at",
		}),
	}).Create(&model).Error
	return translate(err)
}

// HasAccountEmail checks if email exists.
func (s *GormStore) HasAccountEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&AccountModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetAccountByEmail looks up an account by email.
func (s *GormStore) GetAccountByEmail(email string) (domain.Account, bool, error) {
	var model AccountModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, false, nil
		}
		return domain.Account{}, false, err
	}
	return accountFromModel(model), true, nil
}

// GetAccountByID returns an account by ID.
func (s *GormStore) GetAccountByID(id string) (domain.Account, bool, error) {
	var model AccountModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, false, nil
		}
		return domain.Account{}, false, err
	}
	return accountFromModel(model), true, nil
}

func accountToModel(a domain.Account) AccountModel {
	return AccountModel{
		ID:                a.ID,
		Name:              a.Name,
		Email:             a.Email,
		Password:          a.Password,
		PasswordSalt:      a.PasswordSalt,
		InterfaceLanguage: a.InterfaceLanguage,
		InterfaceTheme:    a.InterfaceTheme,
		Timezone:          a.Timezone,
		LastLoginAt:       a.LastLoginAt,
		LastLoginIP:       a.LastLoginIP,
		LastActiveAt:      a.LastActiveAt,
		Status:            string(a.Status),
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func accountFromModel(m AccountModel) domain.Account {
	status, ok := domain.ParseAccountStatus(m.Status)
	if !ok {
		status = domain.AccountActive
	}
	return domain.Account{
		ID:                m.ID,
		Name:              m.Name,
		Email:             m.Email,
		Password:          m.Password,
		PasswordSalt:      m.PasswordSalt,
		InterfaceLanguage: m.InterfaceLanguage,
		InterfaceTheme:    m.InterfaceTheme,
		Timezone:          m.Timezone,
		LastLoginAt:       m.LastLoginAt,
		LastLoginIP:       m.LastLoginIP,
		LastActiveAt:      m.LastActiveAt,
		Status:            status,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
