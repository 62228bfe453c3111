package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"docintake/internal/housekeeping"
	"docintake/pkg/auth"
	"docintake/pkg/domain"
	"docintake/pkg/storage"
	"docintake/pkg/store"
)

type testEnv struct {
	app     *App
	store   *store.GormStore
	files   *storage.FileStore
	cleaner *housekeeping.Cleaner
	tempDir string
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, objects storage.ObjectStore) testEnv {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewGormStore(store.DriverSQLite, filepath.Join(dir, "app.db"), store.WithPool(1, 0))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	files, err := storage.NewFileStore(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if objects == nil {
		objects = files
	}
	tempDir := filepath.Join(dir, "tmp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	cleaner := housekeeping.NewCleaner(true, quietLogger())
	a, err := New(Config{
		Store:            s,
		Objects:          objects,
		Cleaner:          cleaner,
		Logger:           quietLogger(),
		UploadExtensions: []string{"PDF"},
		Language:         "en",
		TempDir:          tempDir,
		AppName:          "invoice-infer",
		Version:          "1.2.3",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := a.InitDB(); err != nil {
		t.Fatalf("init db: %v", err)
	}
	return testEnv{app: a, store: s, files: files, cleaner: cleaner, tempDir: tempDir}
}

func TestNewRequiresStores(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without store")
	}
}

func TestCreateAccountStoresVerifiableHash(t *testing.T) {
	env := newTestEnv(t, nil)
	created, err := env.app.CreateAccount(NewAccount{Email: "  Alice@Example.com ", Password: "s3cret"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	got, ok, err := env.store.GetAccountByEmail("alice@example.com")
	if err != nil || !ok {
		t.Fatalf("expected stored account, ok=%v err=%v", ok, err)
	}
	if got.ID != created.ID {
		t.Fatalf("id = %q, want %q", got.ID, created.ID)
	}
	if !auth.CheckPassword("s3cret", got.Password, got.PasswordSalt) {
		t.Fatalf("stored hash must verify against the original password")
	}
	if auth.CheckPassword("other", got.Password, got.PasswordSalt) {
		t.Fatalf("a different password must not verify")
	}
	if got.Name != "alice" || got.InterfaceLanguage != "en-US" || got.Timezone != "UTC" {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if got.Status != domain.AccountActive || got.InterfaceTheme != domain.DefaultInterfaceTheme || got.LastLoginIP != domain.DefaultLastLoginIP {
		t.Fatalf("unexpected account state: %+v", got)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.app.CreateAccount(NewAccount{Password: "x"}); !errors.Is(err, ErrEmailRequired) {
		t.Fatalf("expected ErrEmailRequired, got %v", err)
	}
	if _, err := env.app.CreateAccount(NewAccount{Email: "a@b.c"}); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got %v", err)
	}
	if _, err := env.app.CreateAccount(NewAccount{Email: "a@b.c", Password: "x", Name: "Ann", Language: "de-DE", Timezone: "Europe/Berlin"}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := env.app.CreateAccount(NewAccount{Email: "A@B.C", Password: "y"}); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.app.CreateAccount(NewAccount{Email: "bob@example.com", Password: "pw"}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := env.app.Authenticate("BOB@example.com", "pw"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := env.app.Authenticate("bob@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.app.Authenticate("nobody@example.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func pdfFile(name, body string) UploadFile {
	return UploadFile{Name: name, Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestSaveUploadsReportsDocumentCount(t *testing.T) {
	env := newTestEnv(t, nil)
	receipt, err := env.app.SaveUploads(context.Background(), UploadRequest{
		CreatedBy: "tester",
		Passwords: []string{"p1", "", "p3"},
		Items: []UploadItem{
			{DocType: "invoice", DocLanguage: "en"},
			{DocType: "invoice"},
			{DocType: "receipt", Metadata: map[string]any{"vendor": "acme"}},
		},
		Files: []UploadFile{
			pdfFile("invoice.pdf", "one"),
			pdfFile("invoice.pdf", "two"),
			pdfFile("scan 3.PDF", "three"),
		},
	})
	if err != nil {
		t.Fatalf("save uploads: %v", err)
	}
	if receipt.Count != 3 || receipt.Message != "Saved list: 3" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	view, err := env.app.GetBatch(receipt.BatchID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if view.BatchSize != 3 || len(view.Documents) != 3 {
		t.Fatalf("unexpected batch: %+v", view)
	}
	wantNames := []string{"invoice.pdf", "invoice_1.pdf", "scan 3.PDF"}
	wantBodies := []string{"one", "two", "three"}
	for i, doc := range view.Documents {
		if doc.Name != wantNames[i] {
			t.Fatalf("document %d name = %q, want %q", i, doc.Name, wantNames[i])
		}
		if !doc.Enabled || doc.CreatedBy != "tester" {
			t.Fatalf("unexpected document state: %+v", doc)
		}
		p, err := env.files.Path(doc.StorageKey)
		if err != nil {
			t.Fatalf("resolve %s: %v", doc.StorageKey, err)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read stored file: %v", err)
		}
		if string(data) != wantBodies[i] {
			t.Fatalf("stored body = %q, want %q", data, wantBodies[i])
		}
	}
	if view.Documents[0].Password != "p1" || view.Documents[2].DocMetadata["vendor"] != "acme" {
		t.Fatalf("passwords and items must follow file order: %+v", view.Documents)
	}
}

func TestSaveUploadsKeepsNonASCIIFilenames(t *testing.T) {
	env := newTestEnv(t, nil)
	names := []string{"報告.pdf", "Счёт.pdf", "résumé.pdf", "報告.pdf"}
	files := make([]UploadFile, len(names))
	for i, name := range names {
		files[i] = pdfFile(name, fmt.Sprintf("body-%d", i))
	}
	receipt, err := env.app.SaveUploads(context.Background(), UploadRequest{Passwords: []string{"p"}, Files: files})
	if err != nil {
		t.Fatalf("save uploads: %v", err)
	}
	view, err := env.app.GetBatch(receipt.BatchID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	wantNames := []string{"報告.pdf", "Счёт.pdf", "résumé.pdf", "報告_1.pdf"}
	keys := make(map[string]struct{}, len(view.Documents))
	for i, doc := range view.Documents {
		if doc.Name != wantNames[i] {
			t.Fatalf("document %d name = %q, want %q", i, doc.Name, wantNames[i])
		}
		if doc.Extension != "pdf" {
			t.Fatalf("document %d extension = %q", i, doc.Extension)
		}
		if _, dup := keys[doc.StorageKey]; dup {
			t.Fatalf("storage key %q reused", doc.StorageKey)
		}
		keys[doc.StorageKey] = struct{}{}
		p, err := env.files.Path(doc.StorageKey)
		if err != nil {
			t.Fatalf("resolve %s: %v", doc.StorageKey, err)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read stored file: %v", err)
		}
		if string(data) != fmt.Sprintf("body-%d", i) {
			t.Fatalf("stored body = %q", data)
		}
	}
}

func TestUploadNaming(t *testing.T) {
	got := uniqueNames([]UploadFile{{Name: `C:\scans\報告.pdf`}, {Name: "../報告.pdf"}, {Name: ""}})
	want := []string{"報告.pdf", "報告_1.pdf", "document"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("uniqueNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	tests := map[string]string{
		"報告.pdf":     "document.pdf",
		"résumé.pdf":  "r_sum_.pdf",
		"scan 3.PDF":  "scan_3.PDF",
		"報告":         "document",
		"invoice.pdf": "invoice.pdf",
	}
	for name, want := range tests {
		if got := storageName(name); got != want {
			t.Fatalf("storageName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSaveUploadsValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	tests := []struct {
		name string
		req  UploadRequest
		want error
	}{
		{"no documents", UploadRequest{Passwords: []string{"p"}}, ErrNoDocuments},
		{"no passwords", UploadRequest{Files: []UploadFile{pdfFile("a.pdf", "x")}}, ErrPasswordsRequired},
		{"extension", UploadRequest{Passwords: []string{"p"}, Files: []UploadFile{pdfFile("a.png", "x")}}, ErrUnsupportedFileType},
		{"items", UploadRequest{Passwords: []string{"p"}, Items: []UploadItem{{}, {}}, Files: []UploadFile{pdfFile("a.pdf", "x")}}, ErrItemsMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.app.SaveUploads(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

type flakyObjects struct {
	mu      sync.Mutex
	put     []string
	deleted []string
}

func (f *flakyObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if strings.Contains(key, "broken") {
		return errors.New("disk full")
	}
	_, _ = io.Copy(io.Discard, r)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put = append(f.put, key)
	return nil
}

func (f *flakyObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func TestSaveUploadsRemovesStoredObjectsOnFailure(t *testing.T) {
	objects := &flakyObjects{}
	env := newTestEnv(t, objects)
	_, err := env.app.SaveUploads(context.Background(), UploadRequest{
		Passwords: []string{""},
		Files:     []UploadFile{pdfFile("good.pdf", "a"), pdfFile("broken.pdf", "b")},
	})
	if err == nil {
		t.Fatalf("expected upload failure")
	}
	objects.mu.Lock()
	defer objects.mu.Unlock()
	if len(objects.put) != len(objects.deleted) {
		t.Fatalf("every stored object must be deleted: put=%v deleted=%v", objects.put, objects.deleted)
	}
}

func TestGetBatchNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.app.GetBatch("missing"); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestListMessagesActiveForLanguageNewestFirst(t *testing.T) {
	env := newTestEnv(t, nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []domain.Message{
		{Code: "E001", Language: "en", Text: "old", IsActive: true, UpdatedAt: base},
		{Code: "E002", Language: "en", Text: "newest", IsActive: true, UpdatedAt: base.Add(2 * time.Hour)},
		{Code: "E003", Language: "en", Text: "inactive", IsActive: false, UpdatedAt: base.Add(3 * time.Hour)},
		{Code: "E001", Language: "fr", Text: "ancien", IsActive: true, UpdatedAt: base.Add(4 * time.Hour)},
		{Code: "E004", Language: "en", Text: "middle", IsActive: true, UpdatedAt: base.Add(time.Hour)},
	}
	for _, m := range msgs {
		if err := env.store.SaveMessage(m); err != nil {
			t.Fatalf("save message: %v", err)
		}
	}

	got, err := env.app.ListMessages("")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	var texts []string
	for _, m := range got {
		texts = append(texts, m.Text)
	}
	if strings.Join(texts, ",") != "newest,middle,old" {
		t.Fatalf("texts = %v, want newest,middle,old", texts)
	}

	fr, err := env.app.ListMessages("fr")
	if err != nil || len(fr) != 1 || fr[0].Text != "ancien" {
		t.Fatalf("unexpected fr messages: %v %v", fr, err)
	}
	m, ok, err := env.app.GetMessage("E002", "")
	if err != nil || !ok || m.Text != "newest" {
		t.Fatalf("get message: %+v %v %v", m, ok, err)
	}
}

// buildPDF renders a minimal PDF with the given number of empty pages.
func buildPDF(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}
	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for range pages {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestProcessDocumentCountsPagesAndCleansUp(t *testing.T) {
	env := newTestEnv(t, nil)
	res, err := env.app.ProcessDocument(context.Background(), "invoice.pdf", bytes.NewReader(buildPDF(2)))
	if err != nil {
		t.Fatalf("process document: %v", err)
	}
	if res.Message != ProcessMessage || res.Filename != "invoice.pdf" || res.Pages != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	env.cleaner.Wait()
	entries, err := os.ReadDir(env.tempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected staged files to be removed, found %d entries", len(entries))
	}
}

func TestProcessDocumentReportsOriginalFilename(t *testing.T) {
	env := newTestEnv(t, nil)
	res, err := env.app.ProcessDocument(context.Background(), "Счёт-фактура.pdf", bytes.NewReader(buildPDF(1)))
	if err != nil {
		t.Fatalf("process document: %v", err)
	}
	if res.Filename != "Счёт-фактура.pdf" || res.Pages != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	env.cleaner.Wait()
}

func TestProcessDocumentToleratesUnreadablePDF(t *testing.T) {
	env := newTestEnv(t, nil)
	res, err := env.app.ProcessDocument(context.Background(), "broken.pdf", strings.NewReader("not a pdf"))
	if err != nil {
		t.Fatalf("process document: %v", err)
	}
	if res.Pages != 0 || res.Message != ProcessMessage {
		t.Fatalf("unexpected result: %+v", res)
	}
	res, err = env.app.ProcessDocument(context.Background(), "scan.png", strings.NewReader("png"))
	if err != nil || res.Pages != 0 {
		t.Fatalf("png should be accepted without inspection: %+v %v", res, err)
	}
	env.cleaner.Wait()
}

func TestProcessDocumentRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.app.ProcessDocument(context.Background(), "notes.txt", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}
	if _, err := env.app.ProcessDocument(context.Background(), "", strings.NewReader("x")); !errors.Is(err, ErrDocumentRequired) {
		t.Fatalf("expected ErrDocumentRequired, got %v", err)
	}
}

func TestDiagnostics(t *testing.T) {
	env := newTestEnv(t, nil)
	health := env.app.Health()
	if health.PID != os.Getpid() || health.Status != "ok" || health.Version != "1.2.3" || health.AppName != "invoice-infer" {
		t.Fatalf("unexpected health: %+v", health)
	}

	threads := env.app.Threads()
	if threads.GoroutineNum == 0 || threads.GoroutineNum != len(threads.Goroutines) {
		t.Fatalf("unexpected goroutines: %+v", threads)
	}
	if threads.ThreadNum <= 0 {
		t.Fatalf("expected at least one thread, got %d", threads.ThreadNum)
	}
	if threads.Goroutines[0].State == "" {
		t.Fatalf("goroutine state must be parsed: %+v", threads.Goroutines[0])
	}

	pool, err := env.app.PoolInfo()
	if err != nil {
		t.Fatalf("pool info: %v", err)
	}
	if pool.PoolSize != 1 || pool.MaxOpenConnections != 1 || pool.RecycleTime != 3600 || pool.ConnectionTimeout != 30 {
		t.Fatalf("unexpected pool info: %+v", pool)
	}
}
