package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"docintake/internal/app"
	"docintake/internal/config"
	"docintake/internal/housekeeping"
	"docintake/internal/server"
	"docintake/internal/util"
	"docintake/pkg/storage"
	"docintake/pkg/store"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("intake: %v", err)
	}
}

type createUserOptions struct {
	configPath string
	email      string
	password   string
	name       string
	language   string
	timezone   string
}

// run dispatches to serve (default), init-db or create-user.
func run(args []string, stdout io.Writer) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}
	switch command {
	case "serve":
		configPath, err := parseConfigFlag("serve", args)
		if err != nil {
			return err
		}
		return serve(configPath)
	case "init-db":
		configPath, err := parseConfigFlag("init-db", args)
		if err != nil {
			return err
		}
		return initDB(configPath, stdout)
	case "create-user":
		opts, err := parseCreateUserFlags(args)
		if err != nil {
			return err
		}
		return createUser(opts, stdout)
	default:
		return fmt.Errorf("unknown command %q (want serve, init-db or create-user)", command)
	}
}

func parseConfigFlag(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML config file (default config.yaml)")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return *configPath, nil
}

func parseCreateUserFlags(args []string) (createUserOptions, error) {
	var opts createUserOptions
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to the YAML config file (default config.yaml)")
	fs.StringVar(&opts.email, "email", "", "account email (required)")
	fs.StringVar(&opts.password, "password", "", "account password (required)")
	fs.StringVar(&opts.name, "name", "", "display name, defaults to the email local part")
	fs.StringVar(&opts.language, "language", "en-US", "interface language")
	fs.StringVar(&opts.timezone, "timezone", "UTC", "account timezone")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if strings.TrimSpace(opts.email) == "" {
		return opts, errors.New("create-user: --email is required")
	}
	if opts.password == "" {
		return opts, errors.New("create-user: --password is required")
	}
	return opts, nil
}

// bootstrap loads configuration, installs the logger and opens the store.
func bootstrap(configPath string) (config.FileConfig, *slog.Logger, *store.GormStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("load config: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("load timezone: %w", err)
	}
	time.Local = loc
	logLevel := cfg.LogLevel
	if cfg.Debug {
		logLevel = "debug"
	}
	logger := util.InitLogger(util.LogConfig{
		Level:      logLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogFileMaxSizeMB,
		MaxBackups: cfg.LogFileBackupCount,
		Location:   loc,
	})
	st, err := store.NewGormStore(cfg.DBType, cfg.DSN(),
		store.WithPool(cfg.DBPoolSize, cfg.DBMaxOverflow),
		store.WithRecycle(cfg.PoolRecycle()),
		store.WithPoolTimeout(cfg.PoolTimeout()),
		store.WithPrePing(cfg.DBPoolPrePing),
		store.WithEcho(cfg.DBEcho),
	)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, logger, st, nil
}

func newObjectStore(cfg config.FileConfig) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.StorageMinio:
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		return storage.NewFileStore(cfg.UploadsDir)
	}
}

func newApp(cfg config.FileConfig, logger *slog.Logger, st store.Store, objects storage.ObjectStore, cleaner *housekeeping.Cleaner) (*app.App, error) {
	return app.New(app.Config{
		Store:             st,
		Objects:           objects,
		Cleaner:           cleaner,
		Logger:            logger,
		UploadExtensions:  cfg.UploadExtensions,
		AllowedExtensions: cfg.AllowedExtensions,
		Language:          cfg.Language,
		TempDir:           cfg.TempDir,
		AppName:           cfg.AppName,
		Version:           cfg.APIVersion,
	})
}

func serve(configPath string) error {
	cfg, logger, st, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer st.Close()

	objects, err := newObjectStore(cfg)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	cleaner := housekeeping.NewCleaner(cfg.CleanupTempFiles, logger)
	appCore, err := newApp(cfg, logger, st, objects, cleaner)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	if err := appCore.InitDB(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	httpServer, err := server.New(server.Config{
		App: appCore,
		Headers: util.AppHeaders{
			Version:  cfg.APIVersion,
			Env:      cfg.DeploymentEnv,
			Timezone: cfg.Timezone,
			Language: cfg.Language,
		},
		MaxContentLength:         cfg.MaxContentLength,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		UploadRateLimitPerMinute: cfg.UploadRateLimit,
		TrustedProxies:           cfg.TrustedProxies,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	defer httpServer.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      httpServer.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("intake server listening", "addr", srv.Addr, "env", cfg.DeploymentEnv, "db", cfg.DBType, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	cleaner.Wait()
	return nil
}

func initDB(configPath string, stdout io.Writer) error {
	_, _, st, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(stdout, "Database initialized")
	return nil
}

func createUser(opts createUserOptions, stdout io.Writer) error {
	cfg, logger, st, err := bootstrap(opts.configPath)
	if err != nil {
		return err
	}
	defer st.Close()
	appCore, err := newApp(cfg, logger, st, nil, nil)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	if err := appCore.InitDB(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	acct, err := appCore.CreateAccount(app.NewAccount{
		Email:    opts.email,
		Password: opts.password,
		Name:     opts.name,
		Language: opts.language,
		Timezone: opts.timezone,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Account created: %s (%s)\n", acct.ID, acct.Email)
	return nil
}
