package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"jwz/internal/config"
	"jwz/internal/database"
	"jwz/internal/repository"
	"jwz/internal/store"
	"jwz/internal/ulid"
)

// JWZApp is the application layer between the CLI and the
// Repository/Store: it constructs every dependency from config,
// exposes operations the CLI calls with raw parsed arguments, and
// manages resource lifetime on Close.
type JWZApp struct {
	cfg     *config.Config
	store   *repository.Store
	Logger  Logger
	logFile *os.File
}

// NewJWZApp opens the store at storeDir (which must already be
// Initialize'd) using retry/log settings from cfg. command identifies
// the CLI command being run, for the log handler's opID column.
func NewJWZApp(ctx context.Context, cfg *config.Config, storeDir, command string) (*JWZApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + command
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	retry := database.NewRetryPolicy(cfg.Retry.MaxAttempts, cfg.Retry.MinBackoff(), cfg.Retry.MaxBackoff())
	s, err := repository.Open(ctx, storeDir, retry, store.RealClock{}, ulid.New())
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	return &JWZApp{
		cfg:     cfg,
		store:   s,
		Logger:  &slogAdapter{l: logger},
		logFile: logFile,
	}, nil
}

// Close releases the store's resources and the log file.
func (a *JWZApp) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = err
	}
	if err := a.logFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Repository exposes the underlying Repository for commands that need
// more than the high-level operations below.
func (a *JWZApp) Repository() *repository.Repository { return a.store.Repository }

// DefaultSearchLimit returns the configured fallback result limit for
// commands that don't specify their own --limit.
func (a *JWZApp) DefaultSearchLimit() int { return a.cfg.Search.DefaultLimit }

// CreateTopic creates a new topic.
func (a *JWZApp) CreateTopic(ctx context.Context, name, description string) (string, error) {
	a.Logger.Info("creating topic", "name", name)
	id, err := a.store.Repository.CreateTopic(ctx, name, description)
	if err != nil {
		a.Logger.Error("create topic failed", "name", name, "error", err)
		return "", err
	}
	return id, nil
}

// Post creates a new message, optionally replying to parentID.
func (a *JWZApp) Post(ctx context.Context, topic, parentID, body string, sender *store.Sender, git *store.VersionContext) (string, error) {
	a.Logger.Info("posting message", "topic", topic, "parent", parentID)
	id, err := a.store.Repository.CreateMessage(ctx, topic, parentID, body, sender, git)
	if err != nil {
		a.Logger.Error("post failed", "topic", topic, "error", err)
		return "", err
	}
	return id, nil
}

// Show fetches a message by id-or-prefix.
func (a *JWZApp) Show(ctx context.Context, idOrPrefix string) (store.Message, error) {
	return a.store.Repository.FetchMessage(ctx, idOrPrefix)
}

// List returns a topic's root messages.
func (a *JWZApp) List(ctx context.Context, topic string, limit int) ([]store.Message, error) {
	return a.store.Repository.ListMessages(ctx, topic, limit)
}

// Thread returns a message and all its transitive replies.
func (a *JWZApp) Thread(ctx context.Context, idOrPrefix string) ([]store.Message, error) {
	return a.store.Repository.Thread(ctx, idOrPrefix)
}

// Replies returns a message's immediate children.
func (a *JWZApp) Replies(ctx context.Context, idOrPrefix string) ([]store.Message, error) {
	return a.store.Repository.Replies(ctx, idOrPrefix)
}

// Search runs a full-text search, optionally scoped to one topic.
func (a *JWZApp) Search(ctx context.Context, query, topic string, limit int) ([]store.Message, error) {
	return a.store.Repository.Search(ctx, query, topic, limit)
}

// PutBlob stores blob content and returns its content-addressed id.
func (a *JWZApp) PutBlob(ctx context.Context, data []byte, mimeType string) (string, error) {
	return a.store.Repository.PutBlob(ctx, data, mimeType)
}

// GetBlob fetches a blob's bytes by id.
func (a *JWZApp) GetBlob(ctx context.Context, id string) ([]byte, error) {
	return a.store.Repository.GetBlob(ctx, id)
}

// FetchBlob fetches a blob's metadata by id.
func (a *JWZApp) FetchBlob(ctx context.Context, id string) (store.Blob, error) {
	return a.store.Repository.FetchBlob(ctx, id)
}

// AttachBlob links a blob to a message.
func (a *JWZApp) AttachBlob(ctx context.Context, messageID, blobID, name string) error {
	return a.store.Repository.AttachBlob(ctx, messageID, blobID, name)
}
