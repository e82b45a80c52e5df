package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// MetadataStore Interface
// ============================================================================

// MetadataStore provides metadata management for the storage engine.
//
// The metadata store manages users, folders, files, versions, shares and
// shared links but does NOT manage file content. Content is stored
// separately in a blob store and referenced by the StoredKey fields.
//
// This separation allows:
//   - Independent scaling of metadata and content storage
//   - Flexible content backends (memory, S3-compatible storage)
//   - Safe soft-delete semantics (trash keeps the blob until purge)
//
// Design Principles:
//   - Consistent error handling: business failures are returned as *Error
//   - Context-aware: all operations respect cancellation and timeouts
//   - Constraint enforcement lives here: uniqueness of the file name triple
//     and of sibling folder names, single active share per (target, user),
//     and atomic counter increments are store-level contracts so that the
//     engines above stay race-free without application-side locking
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type MetadataStore interface {
	// ========================================================================
	// Users
	// ========================================================================

	// CreateUser inserts a user. Returns ErrConflict if the id is taken.
	CreateUser(ctx context.Context, user *User) error

	// GetUser returns the user with the given id, or ErrNotFound.
	GetUser(ctx context.Context, id string) (*User, error)

	// UpdateUserPlan changes the user's subscription plan.
	UpdateUserPlan(ctx context.Context, id string, plan Plan) error

	// ========================================================================
	// Folders
	// ========================================================================

	// CreateFolder inserts a folder. Returns ErrConflict if a sibling with
	// the same name (case-insensitive) already exists under the same owner
	// and parent.
	CreateFolder(ctx context.Context, folder *Folder) error

	// GetFolder returns the folder with the given id, or ErrNotFound.
	GetFolder(ctx context.Context, id uuid.UUID) (*Folder, error)

	// RenameFolder changes the folder's name. Returns ErrConflict if the new
	// name collides with a sibling.
	RenameFolder(ctx context.Context, id uuid.UUID, newName string) error

	// SetFolderFavorite sets or clears the favorite flag.
	SetFolderFavorite(ctx context.Context, id uuid.UUID, favorite bool) error

	// ListFolderChildren returns the owner's folders directly under parentID
	// (nil for root-level folders), sorted by name.
	ListFolderChildren(ctx context.Context, ownerID string, parentID *uuid.UUID) ([]Folder, error)

	// ListFolders returns all folders owned by the user, sorted by name.
	ListFolders(ctx context.Context, ownerID string) ([]Folder, error)

	// ========================================================================
	// Files
	// ========================================================================

	// CreateFile inserts a file row. Returns ErrAlreadyExists if a
	// non-deleted file with the same (owner, folder, name) triple exists.
	// Callers on the upload path catch that code and retry as a
	// version-create to close the check-then-insert race.
	CreateFile(ctx context.Context, file *File) error

	// GetFile returns the file with the given id (trashed included), or
	// ErrNotFound.
	GetFile(ctx context.Context, id uuid.UUID) (*File, error)

	// FindFileByName returns the non-deleted file matching the identity
	// triple, or ErrNotFound.
	FindFileByName(ctx context.Context, ownerID string, folderID *uuid.UUID, name string) (*File, error)

	// UpdateFileContent overwrites the file's name, stored key, content type
	// and size in place and bumps UpdatedAt. Used by the version engine;
	// history rows are created separately.
	UpdateFileContent(ctx context.Context, id uuid.UUID, name, storedKey, contentType string, size int64) error

	// RenameFile changes the display name. Returns ErrAlreadyExists if the
	// new name collides with the identity triple of another non-deleted file.
	RenameFile(ctx context.Context, id uuid.UUID, newName string) error

	// SetFileFavorite sets or clears the favorite flag.
	SetFileFavorite(ctx context.Context, id uuid.UUID, favorite bool) error

	// ListFiles returns the owner's non-deleted files, sorted by name.
	ListFiles(ctx context.Context, ownerID string) ([]File, error)

	// ListFolderFiles returns the non-deleted files inside a folder, sorted
	// by name.
	ListFolderFiles(ctx context.Context, folderID uuid.UUID) ([]File, error)

	// SumFileSizes returns the total size in bytes of ALL file rows owned by
	// the user, soft-deleted rows included. Trashed files keep counting
	// against the quota until purged.
	SumFileSizes(ctx context.Context, ownerID string) (int64, error)

	// SoftDeleteFile marks the file deleted at the given time and clears the
	// favorite flag. Returns ErrNotFound if the file is missing or already
	// trashed.
	SoftDeleteFile(ctx context.Context, id uuid.UUID, at time.Time) error

	// RestoreFile clears the soft-delete marker. Returns ErrNotFound if the
	// file is not trashed, ErrConflict if a non-deleted file has since taken
	// the same identity triple.
	RestoreFile(ctx context.Context, id uuid.UUID) error

	// DeleteFile removes the file row and its version rows permanently.
	// Blob cleanup is the caller's responsibility.
	DeleteFile(ctx context.Context, id uuid.UUID) error

	// ListTrashed returns the owner's soft-deleted files with DeletedAt at
	// or after deletedAfter, newest deletion first. A zero deletedAfter
	// returns the owner's whole trash.
	ListTrashed(ctx context.Context, ownerID string, deletedAfter time.Time) ([]File, error)

	// ListTrashedBefore returns soft-deleted files whose DeletedAt is at or
	// before threshold. Used by the retention purge.
	ListTrashedBefore(ctx context.Context, threshold time.Time) ([]File, error)

	// ========================================================================
	// File Versions
	// ========================================================================

	// CreateVersion inserts a version snapshot.
	CreateVersion(ctx context.Context, version *FileVersion) error

	// GetVersion returns the version with the given id (soft-deleted
	// included), or ErrNotFound.
	GetVersion(ctx context.Context, id uuid.UUID) (*FileVersion, error)

	// ListVersions returns the file's non-soft-deleted versions, newest
	// first.
	ListVersions(ctx context.Context, fileID uuid.UUID) ([]FileVersion, error)

	// ListAllVersions returns every version row of the file, soft-deleted
	// rows included. Used by the purge path to collect blob keys.
	ListAllVersions(ctx context.Context, fileID uuid.UUID) ([]FileVersion, error)

	// SoftDeleteVersion flags the version deleted at the given time. The row
	// and its blob stay in place.
	SoftDeleteVersion(ctx context.Context, id uuid.UUID, at time.Time) error

	// UpdateVersionDescription replaces the version's free-text description.
	UpdateVersionDescription(ctx context.Context, id uuid.UUID, description string) error

	// ========================================================================
	// Shares
	// ========================================================================

	// CreateFileShare inserts a share. Returns ErrConflict if a non-revoked
	// share already exists for the same (file, user) pair.
	CreateFileShare(ctx context.Context, share *FileShare) error

	// GetFileShare returns the non-revoked share granting userID access to
	// fileID, or ErrNotFound.
	GetFileShare(ctx context.Context, fileID uuid.UUID, userID string) (*FileShare, error)

	// RevokeFileShare flags the active share revoked. The row is kept for
	// audit history.
	RevokeFileShare(ctx context.Context, fileID uuid.UUID, userID string) error

	// UpdateFileSharePermission changes the permission of the active share.
	UpdateFileSharePermission(ctx context.Context, fileID uuid.UUID, userID string, permission Permission) error

	// ListFileSharesWith returns all non-revoked file shares granted to the
	// user, newest first.
	ListFileSharesWith(ctx context.Context, userID string) ([]FileShare, error)

	// CreateFolderShare inserts a folder share. Same conflict contract as
	// CreateFileShare.
	CreateFolderShare(ctx context.Context, share *FolderShare) error

	// GetFolderShare returns the non-revoked share granting userID access to
	// folderID, or ErrNotFound.
	GetFolderShare(ctx context.Context, folderID uuid.UUID, userID string) (*FolderShare, error)

	// RevokeFolderShare flags the active folder share revoked.
	RevokeFolderShare(ctx context.Context, folderID uuid.UUID, userID string) error

	// ListFolderSharesWith returns all non-revoked folder shares granted to
	// the user, newest first.
	ListFolderSharesWith(ctx context.Context, userID string) ([]FolderShare, error)

	// ========================================================================
	// Shared Links
	// ========================================================================

	// CreateLink inserts a shared link. The token carries a global unique
	// index; ErrConflict on collision (callers regenerate and retry).
	CreateLink(ctx context.Context, link *SharedLink) error

	// GetLink returns the link with the given id, or ErrNotFound.
	GetLink(ctx context.Context, id uuid.UUID) (*SharedLink, error)

	// GetLinkByToken returns the active link with the given token, or
	// ErrNotFound. Inactive links never authenticate.
	GetLinkByToken(ctx context.Context, token string) (*SharedLink, error)

	// DeleteLink removes the link row permanently.
	DeleteLink(ctx context.Context, id uuid.UUID) error

	// ListLinks returns the owner's active links, newest first.
	ListLinks(ctx context.Context, ownerID string) ([]SharedLink, error)

	// IncrementLinkViews atomically increments the view counter.
	IncrementLinkViews(ctx context.Context, id uuid.UUID) error

	// IncrementLinkDownloads atomically increments the download counter.
	// When the link carries a MaxDownloads cap, the check and the increment
	// happen in one atomic step; ErrRateLimited is returned at the cap and
	// the counter never exceeds it, even under concurrent calls.
	IncrementLinkDownloads(ctx context.Context, id uuid.UUID) error

	// ========================================================================
	// Lifecycle
	// ========================================================================

	// Close releases store resources. The store must not be used afterwards.
	Close() error
}
