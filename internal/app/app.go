package app

import (
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"docintake/internal/housekeeping"
	"docintake/pkg/storage"
	"docintake/pkg/store"
)

// ProcessMessage is the fixed reply of the process endpoint.
const ProcessMessage = "Hi there , How r u"

// Config holds runtime configuration for the core application.
type Config struct {
	Store             store.Store
	Objects           storage.ObjectStore
	Cleaner           *housekeeping.Cleaner
	Logger            *slog.Logger
	UploadExtensions  []string
	AllowedExtensions []string
	Language          string
	TempDir           string
	AppName           string
	Version           string
}

// App is the core application service wiring together storage and domain logic.
type App struct {
	store       store.Store
	objects     storage.ObjectStore
	cleaner     *housekeeping.Cleaner
	logger      *slog.Logger
	uploadExts  []string
	allowedExts []string
	language    string
	tempDir     string
	appName     string
	version     string
}

// New constructs the application. Objects may be nil for callers that never
// accept uploads, such as the account CLI.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cleaner := cfg.Cleaner
	if cleaner == nil {
		cleaner = housekeeping.NewCleaner(true, logger)
	}
	tempDir := strings.TrimSpace(cfg.TempDir)
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = "en"
	}
	uploadExts := normalizeExtensions(cfg.UploadExtensions)
	if len(uploadExts) == 0 {
		uploadExts = []string{"pdf"}
	}
	allowedExts := normalizeExtensions(cfg.AllowedExtensions)
	if len(allowedExts) == 0 {
		allowedExts = []string{"pdf", "png"}
	}
	return &App{
		store:       cfg.Store,
		objects:     cfg.Objects,
		cleaner:     cleaner,
		logger:      logger,
		uploadExts:  uploadExts,
		allowedExts: allowedExts,
		language:    language,
		tempDir:     tempDir,
		appName:     cfg.AppName,
		version:     cfg.Version,
	}, nil
}

// InitDB creates or updates the schema when the store supports migrations.
func (a *App) InitDB() error {
	m, ok := a.store.(store.Migrator)
	if !ok {
		return nil
	}
	return m.Migrate()
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" || slices.Contains(out, ext) {
			continue
		}
		out = append(out, ext)
	}
	return out
}

func extensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// originalFilename is the base name as the client sent it.
func originalFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "document"
	}
	return name
}

// storageName is the ASCII-safe form of name used on disk and in object keys.
func storageName(name string) string {
	safe := sanitizeFilename(name)
	if strings.TrimSuffix(safe, path.Ext(safe)) != "" {
		return safe
	}
	if ext := extensionOf(name); ext != "" && sanitizeFilename(ext) == ext {
		return "document." + ext
	}
	return "document"
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if r <= 0x7f {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
				b.WriteRune(r)
				lastUnderscore = false
				continue
			}
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
