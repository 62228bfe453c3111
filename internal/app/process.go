package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"

	"docintake/internal/util"
)

// ProcessResult is the reply to a processed document.
type ProcessResult struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
}

// ProcessDocument stages a single document in a private temp directory,
// inspects it and schedules the directory for background removal.
func (a *App) ProcessDocument(ctx context.Context, name string, r io.Reader) (ProcessResult, error) {
	if strings.TrimSpace(name) == "" || r == nil {
		return ProcessResult{}, ErrDocumentRequired
	}
	ext := extensionOf(name)
	if !slices.Contains(a.allowedExts, ext) {
		return ProcessResult{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, name)
	}
	logger := util.LoggerFromContext(ctx)
	logger.Info("processing document", "filename", name)

	dir, err := os.MkdirTemp(a.tempDir, "process-")
	if err != nil {
		return ProcessResult{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer a.cleaner.Schedule(dir)

	filename := originalFilename(name)
	staged := filepath.Join(dir, storageName(filename))
	if err := writeFile(ctx, staged, r); err != nil {
		return ProcessResult{}, err
	}

	pages := 0
	if ext == "pdf" {
		n, err := countPDFPages(staged)
		if err != nil {
			logger.Warn("pdf inspection failed", "filename", filename, "err", err)
		}
		pages = n
	}
	return ProcessResult{Message: ProcessMessage, Filename: filename, Pages: pages}, nil
}

func writeFile(ctx context.Context, dst string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close staged file: %w", err)
	}
	return nil
}

// countPDFPages reads the page count from the document catalogue. The parser
// panics on some malformed inputs, so panics are reported as errors.
func countPDFPages(path string) (pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = 0, fmt.Errorf("parse pdf: %v", rec)
		}
	}()
	file, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()
	return reader.NumPage(), nil
}
