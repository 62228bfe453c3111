package store

import (
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"docintake/pkg/domain"
)

// SaveUploadBatch writes a batch, its documents and the upload receipt in one
// transaction. The receipt shares the batch id.
func (s *GormStore) SaveUploadBatch(batch domain.DocumentBatch, docs []domain.Document) error {
	return translate(s.db.Transaction(func(tx *gorm.DB) error {
		batchModel := batchToModel(batch)
		if err := tx.Create(&batchModel).Error; err != nil {
			return err
		}
		if len(docs) > 0 {
			models := make([]DocumentModel, 0, len(docs))
			for _, d := range docs {
				models = append(models, documentToModel(d))
			}
			if err := tx.Create(&models).Error; err != nil {
				return err
			}
		}
		return tx.Create(&UploadModel{ID: batch.ID}).Error
	}))
}

// GetBatch returns a document batch by ID.
func (s *GormStore) GetBatch(id string) (domain.DocumentBatch, bool, error) {
	var model DocumentBatchModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DocumentBatch{}, false, nil
		}
		return domain.DocumentBatch{}, false, err
	}
	return batchFromModel(model), true, nil
}

// GetDocument returns a document by ID.
func (s *GormStore) GetDocument(id string) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// ListDocumentsByBatch returns the documents of a batch in upload order.
func (s *GormStore) ListDocumentsByBatch(batchID string) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Where("batch_id = ?", batchID).Order("created_at ASC").Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

func batchToModel(b domain.DocumentBatch) DocumentBatchModel {
	return DocumentBatchModel{
		ID:                  b.ID,
		BatchName:           b.BatchName,
		BatchSize:           b.BatchSize,
		CreatedBy:           b.CreatedBy,
		ProcessingStartedAt: b.ProcessingStartedAt,
		ParsingCompletedAt:  b.ParsingCompletedAt,
		CompletedAt:         b.CompletedAt,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}

func batchFromModel(m DocumentBatchModel) domain.DocumentBatch {
	return domain.DocumentBatch{
		ID:                  m.ID,
		BatchName:           m.BatchName,
		BatchSize:           m.BatchSize,
		CreatedBy:           m.CreatedBy,
		ProcessingStartedAt: m.ProcessingStartedAt,
		ParsingCompletedAt:  m.ParsingCompletedAt,
		CompletedAt:         m.CompletedAt,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func documentToModel(d domain.Document) DocumentModel {
	var metadata datatypes.JSONMap
	if len(d.DocMetadata) > 0 {
		metadata = datatypes.JSONMap{}
		for k, v := range d.DocMetadata {
			metadata[k] = v
		}
	}
	return DocumentModel{
		ID:                   d.ID,
		BatchID:              d.BatchID,
		Name:                 d.Name,
		Extension:            d.Extension,
		StorageKey:           d.StorageKey,
		SizeBytes:            d.SizeBytes,
		Password:             d.Password,
		ProcessRuleID:        d.ProcessRuleID,
		CreatedBy:            d.CreatedBy,
		DocType:              d.DocType,
		DocMetadata:          metadata,
		DocLanguage:          d.DocLanguage,
		ProcessingStartedAt:  d.ProcessingStartedAt,
		ParsingCompletedAt:   d.ParsingCompletedAt,
		CleaningCompletedAt:  d.CleaningCompletedAt,
		SplittingCompletedAt: d.SplittingCompletedAt,
		CompletedAt:          d.CompletedAt,
		IsPaused:             d.IsPaused,
		PausedBy:             d.PausedBy,
		PausedAt:             d.PausedAt,
		Archived:             d.Archived,
		ArchivedReason:       d.ArchivedReason,
		ArchivedBy:           d.ArchivedBy,
		ArchivedAt:           d.ArchivedAt,
		Enabled:              d.Enabled,
		DisabledAt:           d.DisabledAt,
		DisabledBy:           d.DisabledBy,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	var metadata map[string]any
	if len(m.DocMetadata) > 0 {
		metadata = make(map[string]any, len(m.DocMetadata))
		for k, v := range m.DocMetadata {
			metadata[k] = v
		}
	}
	return domain.Document{
		ID:                   m.ID,
		BatchID:              m.BatchID,
		Name:                 m.Name,
		Extension:            m.Extension,
		StorageKey:           m.StorageKey,
		SizeBytes:            m.SizeBytes,
		Password:             m.Password,
		ProcessRuleID:        m.ProcessRuleID,
		CreatedBy:            m.CreatedBy,
		DocType:              m.DocType,
		DocMetadata:          metadata,
		DocLanguage:          m.DocLanguage,
		ProcessingStartedAt:  m.ProcessingStartedAt,
		ParsingCompletedAt:   m.ParsingCompletedAt,
		CleaningCompletedAt:  m.CleaningCompletedAt,
		SplittingCompletedAt: m.SplittingCompletedAt,
		CompletedAt:          m.CompletedAt,
		IsPaused:             m.IsPaused,
		PausedBy:             m.PausedBy,
		PausedAt:             m.PausedAt,
		Archived:             m.Archived,
		ArchivedReason:       m.ArchivedReason,
		ArchivedBy:           m.ArchivedBy,
		ArchivedAt:           m.ArchivedAt,
		Enabled:              m.Enabled,
		DisabledAt:           m.DisabledAt,
		DisabledBy:           m.DisabledBy,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}
