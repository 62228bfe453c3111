package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type AccountModel struct {
	ID                string `gorm:"primaryKey;size:36"`
	Name              string `gorm:"size:255;not null"`
	Email             string `gorm:"size:255;not null;uniqueIndex:account_email_idx"`
	Password          string `gorm:"size:255"`
	PasswordSalt      string `gorm:"size:255"`
	InterfaceLanguage string `gorm:"size:255"`
	InterfaceTheme    string `gorm:"size:255"`
	Timezone          string `gorm:"size:255"`
	LastLoginAt       *time.Time
	LastLoginIP       string `gorm:"size:255"`
	LastActiveAt      time.Time
	Status            string    `gorm:"size:16;not null;default:active"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (AccountModel) TableName() string { return "accounts" }

type DatasetModel struct {
	ID                     string `gorm:"primaryKey;size:36"`
	TenantID               string `gorm:"size:36;not null;index:dataset_tenant_idx"`
	Name                   string `gorm:"size:255;not null"`
	Description            string `gorm:"type:text"`
	Provider               string `gorm:"size:255;not null;default:vendor"`
	DataSourceType         string `gorm:"size:255"`
	IndexingTechnique      string `gorm:"size:255"`
	IndexStruct            string `gorm:"type:text"`
	CreatedBy              string `gorm:"size:36;not null"`
	UpdatedBy              string `gorm:"size:36"`
	EmbeddingModel         string `gorm:"size:255"`
	EmbeddingModelProvider string `gorm:"size:255"`
	CollectionBindingID    string `gorm:"size:36"`
	RetrievalModel         datatypes.JSONMap
	CreatedAt              time.Time `gorm:"not null"`
	UpdatedAt              time.Time `gorm:"not null"`
}

func (DatasetModel) TableName() string { return "datasets" }

type DocumentBatchModel struct {
	ID                  string `gorm:"primaryKey;size:36"`
	BatchName           string `gorm:"size:255;not null"`
	BatchSize           int    `gorm:"not null"`
	CreatedBy           string `gorm:"size:36"`
	ProcessingStartedAt *time.Time
	ParsingCompletedAt  *time.Time
	CompletedAt         *time.Time
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

func (DocumentBatchModel) TableName() string { return "document_batches" }

type DocumentModel struct {
	ID                   string `gorm:"primaryKey;size:36;index:document_batch_idx,priority:2"`
	BatchID              string `gorm:"size:36;not null;index:document_batch_idx,priority:1"`
	Name                 string `gorm:"size:255;not null"`
	Extension            string `gorm:"size:16"`
	StorageKey           string `gorm:"size:512"`
	SizeBytes            int64
	Password             string `gorm:"size:255"`
	ProcessRuleID        string `gorm:"size:36"`
	CreatedBy            string `gorm:"size:36"`
	DocType              string `gorm:"size:40"`
	DocMetadata          datatypes.JSONMap
	DocLanguage          string `gorm:"size:255"`
	ProcessingStartedAt  *time.Time
	ParsingCompletedAt   *time.Time
	CleaningCompletedAt  *time.Time
	SplittingCompletedAt *time.Time
	CompletedAt          *time.Time
	IsPaused             bool   `gorm:"not null"`
	PausedBy             string `gorm:"size:36"`
	PausedAt             *time.Time
	Archived             bool   `gorm:"not null"`
	ArchivedReason       string `gorm:"size:255"`
	ArchivedBy           string `gorm:"size:36"`
	ArchivedAt           *time.Time
	Enabled              bool `gorm:"not null"`
	DisabledAt           *time.Time
	DisabledBy           string    `gorm:"size:36"`
	CreatedAt            time.Time `gorm:"not null"`
	UpdatedAt            time.Time `gorm:"not null"`
}

func (DocumentModel) TableName() string { return "documents" }

type MessageModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Code        string    `gorm:"size:10;not null;uniqueIndex:unique_message_code,priority:1"`
	Language    string    `gorm:"size:20;not null;uniqueIndex:unique_message_code,priority:2"`
	Text        string    `gorm:"size:300;not null"`
	Description string    `gorm:"type:text"`
	Category    string    `gorm:"size:255"`
	IsActive    bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null;index"`
}

func (MessageModel) TableName() string { return "message_catalogue" }

type UploadModel struct {
	ID string `gorm:"primaryKey;size:36"`
}

func (UploadModel) TableName() string { return "uploads" }

func allModels() []any {
	return []any{
		&AccountModel{},
		&DatasetModel{},
		&DocumentBatchModel{},
		&DocumentModel{},
		&MessageModel{},
		&UploadModel{},
	}
}
