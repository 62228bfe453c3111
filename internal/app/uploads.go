package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"docintake/internal/util"
	"docintake/pkg/domain"
)

// UploadFile is one file part of an upload request.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// UploadItem carries optional per-document metadata, matched to files by index.
type UploadItem struct {
	DocType     string         `json:"docType"`
	DocLanguage string         `json:"docLanguage"`
	Metadata    map[string]any `json:"metadata"`
}

// UploadRequest is a batch of documents with their open passwords. Passwords
// and items are matched to files by index.
type UploadRequest struct {
	BatchName string
	CreatedBy string
	Passwords []string
	Items     []UploadItem
	Files     []UploadFile
}

// UploadReceipt is returned after a batch has been stored.
type UploadReceipt struct {
	Message string `json:"message"`
	BatchID string `json:"batchId"`
	Count   int    `json:"count"`
}

// BatchView is a batch together with its documents.
type BatchView struct {
	domain.DocumentBatch
	Documents []domain.Document `json:"documents"`
}

// SaveUploads validates the request, stores every file concurrently and
// records the batch. Stored objects are removed again when any step fails.
func (a *App) SaveUploads(ctx context.Context, req UploadRequest) (UploadReceipt, error) {
	if a.objects == nil {
		return UploadReceipt{}, errors.New("object store not configured")
	}
	if len(req.Files) == 0 {
		return UploadReceipt{}, ErrNoDocuments
	}
	if len(req.Passwords) == 0 {
		return UploadReceipt{}, ErrPasswordsRequired
	}
	if len(req.Items) > 0 && len(req.Items) != len(req.Files) {
		return UploadReceipt{}, ErrItemsMismatch
	}
	for _, f := range req.Files {
		if !slices.Contains(a.uploadExts, extensionOf(f.Name)) {
			return UploadReceipt{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, f.Name)
		}
	}

	logger := util.LoggerFromContext(ctx)
	logger.Info("upload received", "documents", len(req.Files))

	batchID := util.NewID()
	names := uniqueNames(req.Files)
	now := time.Now().UTC()
	docs := make([]domain.Document, len(req.Files))
	for i, f := range req.Files {
		// keep submission order visible through created_at
		createdAt := now.Add(time.Duration(i) * time.Microsecond)
		docID := util.NewID()
		doc := domain.Document{
			ID:         docID,
			BatchID:    batchID,
			Name:       names[i],
			Extension:  extensionOf(names[i]),
			StorageKey: buildStorageKey(batchID, docID, names[i]),
			SizeBytes:  f.Size,
			CreatedBy:  req.CreatedBy,
			Enabled:    true,
			CreatedAt:  createdAt,
			UpdatedAt:  createdAt,
		}
		if i < len(req.Passwords) {
			doc.Password = req.Passwords[i]
		}
		if len(req.Items) > 0 {
			item := req.Items[i]
			doc.DocType = item.DocType
			doc.DocLanguage = item.DocLanguage
			doc.DocMetadata = item.Metadata
		}
		docs[i] = doc
	}

	var (
		mu     sync.Mutex
		stored []string
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := range docs {
		g.Go(func() error {
			doc := docs[i]
			logger.Info("saving document", "name", doc.Name)
			if err := a.objects.Put(gctx, doc.StorageKey, req.Files[i].Body, doc.SizeBytes, contentTypeFor(req.Files[i])); err != nil {
				return fmt.Errorf("save file %s: %w", doc.Name, err)
			}
			mu.Lock()
			stored = append(stored, doc.StorageKey)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.deleteObjects(stored)
		return UploadReceipt{}, err
	}

	batchName := strings.TrimSpace(req.BatchName)
	if batchName == "" {
		batchName = "batch-" + batchID[:8]
	}
	batch := domain.DocumentBatch{
		ID:        batchID,
		BatchName: batchName,
		BatchSize: len(docs),
		CreatedBy: req.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveUploadBatch(batch, docs); err != nil {
		a.deleteObjects(stored)
		return UploadReceipt{}, fmt.Errorf("save batch: %w", err)
	}

	message := fmt.Sprintf("Saved list: %d", len(docs))
	logger.Info(message, "batch_id", batchID)
	return UploadReceipt{Message: message, BatchID: batchID, Count: len(docs)}, nil
}

// GetBatch returns a batch with its documents.
func (a *App) GetBatch(id string) (BatchView, error) {
	batch, ok, err := a.store.GetBatch(id)
	if err != nil {
		return BatchView{}, err
	}
	if !ok {
		return BatchView{}, ErrBatchNotFound
	}
	docs, err := a.store.ListDocumentsByBatch(id)
	if err != nil {
		return BatchView{}, err
	}
	return BatchView{DocumentBatch: batch, Documents: docs}, nil
}

func (a *App) deleteObjects(keys []string) {
	for _, key := range keys {
		if err := a.objects.Delete(context.Background(), key); err != nil {
			a.logger.Warn("delete stored object failed", "key", key, "err", err)
		}
	}
}

// uniqueNames keeps the client file names and suffixes repeats with _1, _2, ...
func uniqueNames(files []UploadFile) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, len(files))
	for i, f := range files {
		name := originalFilename(f.Name)
		ext := path.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		candidate := name
		for n := 1; ; n++ {
			if _, dup := seen[candidate]; !dup {
				break
			}
			candidate = stem + "_" + strconv.Itoa(n) + ext
		}
		seen[candidate] = struct{}{}
		out[i] = candidate
	}
	return out
}

func buildStorageKey(batchID, docID, name string) string {
	return path.Join("uploads", batchID, docID, storageName(name))
}

func contentTypeFor(f UploadFile) string {
	if ct := strings.TrimSpace(f.ContentType); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(path.Ext(strings.ToLower(f.Name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
