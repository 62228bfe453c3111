package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docintake/pkg/domain"
)

// SaveMessage inserts a catalogue entry or updates the one sharing its code
// and language.
func (s *GormStore) SaveMessage(msg domain.Message) error {
	model := messageToModel(msg)
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}, {Name: "language"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "description", "category", "is_active", "updated_at"}),
	}).Create(&model).Error
	return translate(err)
}

// GetMessage returns the entry for code and language regardless of its
// active flag.
func (s *GormStore) GetMessage(code, language string) (domain.Message, bool, error) {
	var model MessageModel
	if err := s.db.Where("code = ? AND language = ?", code, language).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Message{}, false, nil
		}
		return domain.Message{}, false, err
	}
	return messageFromModel(model), true, nil
}

// ListActiveMessages returns active entries of one language, most recently
// updated first.
func (s *GormStore) ListActiveMessages(language string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.Where("language = ? AND is_active = ?", language, true).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res, nil
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:          msg.ID,
		Code:        msg.Code,
		Language:    msg.Language,
		Text:        msg.Text,
		Description: msg.Description,
		Category:    msg.Category,
		IsActive:    msg.IsActive,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:          m.ID,
		Code:        m.Code,
		Language:    m.Language,
		Text:        m.Text,
		Description: m.Description,
		Category:    m.Category,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
