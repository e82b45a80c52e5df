// Package sharelink implements anonymous link access to files.
//
// A shared link is a capability: whoever presents the token gets the
// link's permission on its file, no account needed. Links always carry an
// expiry, may require a password and may cap the number of downloads.
//
// Token validation is strictly ordered so a caller probing a link always
// learns the most fundamental failure first: unknown token, then expiry,
// then missing password, then wrong password. Only a fully validated
// request touches the counters.
package sharelink

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/skyvault/skyvault/internal/logger"
	"github.com/skyvault/skyvault/pkg/blob"
	"github.com/skyvault/skyvault/pkg/store"
)

// tokenBytes is the entropy of a link token. 16 bytes hex-encode to a
// 32-character token.
const tokenBytes = 16

// createRetries bounds the regeneration attempts on a token collision.
const createRetries = 3

// CreateOptions describes a link to be created.
type CreateOptions struct {
	Permission store.Permission

	// ExpiresAt is required; links never live forever.
	ExpiresAt time.Time

	// MaxDownloads caps successful downloads. Nil means uncapped.
	MaxDownloads *int

	// Password protects the link when non-empty. Only a salted hash is
	// stored.
	Password string
}

// PublicInfo is what an anonymous visitor may learn about a linked file.
type PublicInfo struct {
	FileName         string
	ContentType      string
	Size             int64
	Permission       store.Permission
	ExpiresAt        time.Time
	Views            int
	RequiresPassword bool
}

// Engine manages shared links and anonymous access through them.
type Engine struct {
	store store.MetadataStore
	blobs blob.BlobStore

	// now is swapped out in tests.
	now func() time.Time
}

// NewEngine creates a shared link engine.
func NewEngine(metadata store.MetadataStore, blobs blob.BlobStore) *Engine {
	return &Engine{store: metadata, blobs: blobs, now: time.Now}
}

// Create issues a new link for the file. Owner-only; trashed files cannot
// be linked. Token collisions are regenerated transparently.
func (e *Engine) Create(ctx context.Context, ownerID string, fileID uuid.UUID, opts CreateOptions) (*store.SharedLink, error) {
	file, err := e.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != ownerID {
		return nil, store.NewError(store.ErrPermissionDenied, "you do not have permission to share this file")
	}
	if file.Trashed() {
		return nil, store.ErrFileNotFound
	}

	if opts.ExpiresAt.IsZero() {
		return nil, store.NewError(store.ErrConflict, "an expiration date is required")
	}
	if !opts.ExpiresAt.After(e.now()) {
		return nil, store.NewError(store.ErrConflict, "the expiration date must be in the future")
	}
	if opts.MaxDownloads != nil && *opts.MaxDownloads <= 0 {
		return nil, store.NewError(store.ErrConflict, "the download limit must be positive")
	}

	passwordHash := ""
	if opts.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash link password: %w", err)
		}
		passwordHash = string(hash)
	}

	for attempt := 0; attempt < createRetries; attempt++ {
		token, err := newToken()
		if err != nil {
			return nil, err
		}

		link := &store.SharedLink{
			ID:           uuid.New(),
			FileID:       fileID,
			OwnerID:      ownerID,
			Token:        token,
			Permission:   opts.Permission,
			ExpiresAt:    opts.ExpiresAt.UTC(),
			MaxDownloads: opts.MaxDownloads,
			PasswordHash: passwordHash,
			Active:       true,
			CreatedAt:    e.now().UTC(),
		}

		err = e.store.CreateLink(ctx, link)
		if err == nil {
			logger.Debug("sharelink: created link %s for file %s", link.ID, fileID)
			return link, nil
		}
		if !store.IsCode(err, store.ErrConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to generate a unique link token after %d attempts", createRetries)
}

// Validate resolves a token and checks it end to end. The checks run in a
// fixed order: unknown token or dead file, expiry, password required,
// wrong password.
func (e *Engine) Validate(ctx context.Context, token, password string) (*store.SharedLink, error) {
	link, _, err := e.resolve(ctx, token, password)
	return link, err
}

// check runs the expiry and password gates on a loaded link.
func (e *Engine) check(link *store.SharedLink, password string) error {
	if link.Expired(e.now()) {
		return store.NewError(store.ErrExpired, "this shared link has expired")
	}

	if link.PasswordProtected() {
		if password == "" {
			return store.NewError(store.ErrInvalidCredential, "a password is required to access this file")
		}
		if bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(password)) != nil {
			return store.NewError(store.ErrInvalidCredential, "the password provided is not valid")
		}
	}

	return nil
}

// PublicInfo returns what an anonymous visitor may see about a link
// before entering a password. Each successful call counts as a view.
func (e *Engine) PublicInfo(ctx context.Context, token string) (*PublicInfo, error) {
	link, err := e.store.GetLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	file, err := e.store.GetFile(ctx, link.FileID)
	if err != nil {
		if store.IsCode(err, store.ErrNotFound) {
			return nil, store.ErrLinkNotFound
		}
		return nil, err
	}
	if file.Trashed() {
		return nil, store.ErrLinkNotFound
	}

	if link.Expired(e.now()) {
		return nil, store.NewError(store.ErrExpired, "this shared link has expired")
	}

	if err := e.store.IncrementLinkViews(ctx, link.ID); err != nil {
		logger.Warn("sharelink: failed to count view on link %s: %v", link.ID, err)
	}

	return &PublicInfo{
		FileName:         file.Name,
		ContentType:      file.ContentType,
		Size:             file.Size,
		Permission:       link.Permission,
		ExpiresAt:        link.ExpiresAt,
		Views:            link.Views + 1,
		RequiresPassword: link.PasswordProtected(),
	}, nil
}

// Stream opens the file content for in-place viewing (preview). Counts as
// a view, not a download, and is allowed at every permission level.
func (e *Engine) Stream(ctx context.Context, token, password string) (io.ReadCloser, *store.File, error) {
	link, file, err := e.resolve(ctx, token, password)
	if err != nil {
		return nil, nil, err
	}

	if err := e.store.IncrementLinkViews(ctx, link.ID); err != nil {
		logger.Warn("sharelink: failed to count view on link %s: %v", link.ID, err)
	}

	content, err := e.open(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	return content, file, nil
}

// Download opens the file content for download. Requires a Download-level
// link and consumes one unit of the download cap; the cap check and the
// counter increment are a single atomic store operation, so concurrent
// downloads never overshoot the cap.
func (e *Engine) Download(ctx context.Context, token, password string) (io.ReadCloser, *store.File, error) {
	link, file, err := e.resolve(ctx, token, password)
	if err != nil {
		return nil, nil, err
	}

	if !link.Permission.AllowsDownload() {
		return nil, nil, store.NewError(store.ErrPermissionDenied, "this shared link does not allow downloads")
	}

	if err := e.store.IncrementLinkDownloads(ctx, link.ID); err != nil {
		return nil, nil, err
	}

	content, err := e.open(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	return content, file, nil
}

// Delete removes a link permanently. Owner-only.
func (e *Engine) Delete(ctx context.Context, ownerID string, linkID uuid.UUID) error {
	link, err := e.store.GetLink(ctx, linkID)
	if err != nil {
		return err
	}
	if link.OwnerID != ownerID {
		return store.NewError(store.ErrPermissionDenied, "you do not have permission to delete this shared link")
	}
	return e.store.DeleteLink(ctx, linkID)
}

// List returns the owner's active links, newest first.
func (e *Engine) List(ctx context.Context, ownerID string) ([]store.SharedLink, error) {
	return e.store.ListLinks(ctx, ownerID)
}

// resolve validates the token and loads the linked file. A link whose
// file has gone missing or moved to the trash reads as not found before
// the expiry and password checks run, so a dead link never confirms that
// its token is otherwise valid.
func (e *Engine) resolve(ctx context.Context, token, password string) (*store.SharedLink, *store.File, error) {
	link, err := e.store.GetLinkByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	file, err := e.store.GetFile(ctx, link.FileID)
	if err != nil {
		if store.IsCode(err, store.ErrNotFound) {
			return nil, nil, store.ErrLinkNotFound
		}
		return nil, nil, err
	}
	if file.Trashed() {
		return nil, nil, store.ErrLinkNotFound
	}

	if err := e.check(link, password); err != nil {
		return nil, nil, err
	}

	return link, file, nil
}

// open fetches the file content blob.
func (e *Engine) open(ctx context.Context, file *store.File) (io.ReadCloser, error) {
	content, _, err := e.blobs.Get(ctx, file.StoredKey)
	if errors.Is(err, blob.ErrNotFound) {
		logger.Error("sharelink: file %s references missing blob %s", file.ID, file.StoredKey)
		return nil, store.NewError(store.ErrStorageInconsistency, "the file content is no longer available")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file content: %w", err)
	}
	return content, nil
}

// newToken generates a random URL-safe token.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate link token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
