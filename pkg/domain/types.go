package domain

import "time"

type AccountStatus string

const (
	AccountPending       AccountStatus = "pending"
	AccountUninitialized AccountStatus = "uninitialized"
	AccountActive        AccountStatus = "active"
	AccountInactive      AccountStatus = "inactive"
	AccountBlocked       AccountStatus = "blocked"
)

// ParseAccountStatus maps a stored value to a known status.
func ParseAccountStatus(raw string) (AccountStatus, bool) {
	switch AccountStatus(raw) {
	case AccountPending, AccountUninitialized, AccountActive, AccountInactive, AccountBlocked:
		return AccountStatus(raw), true
	default:
		return "", false
	}
}

const (
	DefaultInterfaceTheme = "default"
	DefaultLastLoginIP    = "From UI"
)

type Account struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Email             string        `json:"email"`
	Password          string        `json:"-"`
	PasswordSalt      string        `json:"-"`
	InterfaceLanguage string        `json:"interfaceLanguage"`
	InterfaceTheme    string        `json:"interfaceTheme"`
	Timezone          string        `json:"timezone"`
	LastLoginAt       *time.Time    `json:"lastLoginAt,omitempty"`
	LastLoginIP       string        `json:"lastLoginIp"`
	LastActiveAt      time.Time     `json:"lastActiveAt"`
	Status            AccountStatus `json:"status"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Dataset providers.
const (
	ProviderVendor   = "vendor"
	ProviderExternal = "external"
)

// Indexing techniques. An empty technique means not indexed yet.
const (
	IndexingHighQuality = "high_quality"
	IndexingEconomy     = "economy"
)

var (
	DatasetProviders   = []string{ProviderVendor, ProviderExternal}
	IndexingTechniques = []string{IndexingHighQuality, IndexingEconomy, ""}
)

type Dataset struct {
	ID                     string         `json:"id"`
	TenantID               string         `json:"tenantId"`
	Name                   string         `json:"name"`
	Description            string         `json:"description,omitempty"`
	Provider               string         `json:"provider"`
	DataSourceType         string         `json:"dataSourceType,omitempty"`
	IndexingTechnique      string         `json:"indexingTechnique,omitempty"`
	IndexStruct            string         `json:"indexStruct,omitempty"`
	CreatedBy              string         `json:"createdBy"`
	UpdatedBy              string         `json:"updatedBy,omitempty"`
	EmbeddingModel         string         `json:"embeddingModel,omitempty"`
	EmbeddingModelProvider string         `json:"embeddingModelProvider,omitempty"`
	CollectionBindingID    string         `json:"collectionBindingId,omitempty"`
	RetrievalModel         map[string]any `json:"retrievalModel"`
	CreatedAt              time.Time      `json:"createdAt"`
	UpdatedAt              time.Time      `json:"updatedAt"`
}

type DocumentBatch struct {
	ID                  string     `json:"id"`
	BatchName           string     `json:"batchName"`
	BatchSize           int        `json:"batchSize"`
	CreatedBy           string     `json:"createdBy,omitempty"`
	ProcessingStartedAt *time.Time `json:"processingStartedAt,omitempty"`
	ParsingCompletedAt  *time.Time `json:"parsingCompletedAt,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Document is one uploaded file and its processing-state markers.
type Document struct {
	ID                   string         `json:"id"`
	BatchID              string         `json:"batchId"`
	Name                 string         `json:"name"`
	Extension            string         `json:"extension"`
	StorageKey           string         `json:"-"`
	SizeBytes            int64          `json:"sizeBytes"`
	Password             string         `json:"-"`
	ProcessRuleID        string         `json:"processRuleId,omitempty"`
	CreatedBy            string         `json:"createdBy,omitempty"`
	DocType              string         `json:"docType,omitempty"`
	DocMetadata          map[string]any `json:"docMetadata,omitempty"`
	DocLanguage          string         `json:"docLanguage,omitempty"`
	ProcessingStartedAt  *time.Time     `json:"processingStartedAt,omitempty"`
	ParsingCompletedAt   *time.Time     `json:"parsingCompletedAt,omitempty"`
	CleaningCompletedAt  *time.Time     `json:"cleaningCompletedAt,omitempty"`
	SplittingCompletedAt *time.Time     `json:"splittingCompletedAt,omitempty"`
	CompletedAt          *time.Time     `json:"completedAt,omitempty"`
	IsPaused             bool           `json:"isPaused"`
	PausedBy             string         `json:"pausedBy,omitempty"`
	PausedAt             *time.Time     `json:"pausedAt,omitempty"`
	Archived             bool           `json:"archived"`
	ArchivedReason       string         `json:"archivedReason,omitempty"`
	ArchivedBy           string         `json:"archivedBy,omitempty"`
	ArchivedAt           *time.Time     `json:"archivedAt,omitempty"`
	Enabled              bool           `json:"enabled"`
	DisabledAt           *time.Time     `json:"disabledAt,omitempty"`
	DisabledBy           string         `json:"disabledBy,omitempty"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

// Upload is the receipt of one upload request.
type Upload struct {
	ID string `json:"id"`
}
