package store

import (
	"errors"
	"fmt"
	"slices"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docintake/pkg/domain"
)

// SaveDataset stores or updates a dataset after checking provider and
// indexing technique against the known values.
func (s *GormStore) SaveDataset(d domain.Dataset) error {
	if d.Provider == "" {
		d.Provider = domain.ProviderVendor
	}
	if !slices.Contains(domain.DatasetProviders, d.Provider) {
		return fmt.Errorf("invalid dataset provider %q", d.Provider)
	}
	if !slices.Contains(domain.IndexingTechniques, d.IndexingTechnique) {
		return fmt.Errorf("invalid indexing technique %q", d.IndexingTechnique)
	}
	model := datasetToModel(d)
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "provider", "data_source_type", "indexing_technique", "index_struct",
			"updated_by", "embedding_model", "embedding_model_provider", "collection_binding_id",
			"retrieval_model", "updated_at",
		}),
	}).Create(&model).Error
	return translate(err)
}

// GetDataset retrieves a dataset.
func (s *GormStore) GetDataset(id string) (domain.Dataset, bool, error) {
	var model DatasetModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Dataset{}, false, nil
		}
		return domain.Dataset{}, false, err
	}
	return datasetFromModel(model), true, nil
}

// ListDatasetsByTenant returns a tenant's datasets, newest first.
func (s *GormStore) ListDatasetsByTenant(tenantID string) ([]domain.Dataset, error) {
	var models []DatasetModel
	if err := s.db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Dataset, 0, len(models))
	for _, m := range models {
		res = append(res, datasetFromModel(m))
	}
	return res, nil
}

func datasetToModel(d domain.Dataset) DatasetModel {
	retrieval := datatypes.JSONMap{}
	for k, v := range d.RetrievalModel {
		retrieval[k] = v
	}
	return DatasetModel{
		ID:                     d.ID,
		TenantID:               d.TenantID,
		Name:                   d.Name,
		Description:            d.Description,
		Provider:               d.Provider,
		DataSourceType:         d.DataSourceType,
		IndexingTechnique:      d.IndexingTechnique,
		IndexStruct:            d.IndexStruct,
		CreatedBy:              d.CreatedBy,
		UpdatedBy:              d.UpdatedBy,
		EmbeddingModel:         d.EmbeddingModel,
		EmbeddingModelProvider: d.EmbeddingModelProvider,
		CollectionBindingID:    d.CollectionBindingID,
		RetrievalModel:         retrieval,
		CreatedAt:              d.CreatedAt,
		UpdatedAt:              d.UpdatedAt,
	}
}

func datasetFromModel(m DatasetModel) domain.Dataset {
	retrieval := map[string]any{}
	for k, v := range m.RetrievalModel {
		retrieval[k] = v
	}
	return domain.Dataset{
		ID:                     m.ID,
		TenantID:               m.TenantID,
		Name:                   m.Name,
		Description:            m.Description,
		Provider:               m.Provider,
		DataSourceType:         m.DataSourceType,
		IndexingTechnique:      m.IndexingTechnique,
		IndexStruct:            m.IndexStruct,
		CreatedBy:              m.CreatedBy,
		UpdatedBy:              m.UpdatedBy,
		EmbeddingModel:         m.EmbeddingModel,
		EmbeddingModelProvider: m.EmbeddingModelProvider,
		CollectionBindingID:    m.CollectionBindingID,
		RetrievalModel:         retrieval,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}
