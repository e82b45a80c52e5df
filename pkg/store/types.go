package store

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Subscription Plans
// ============================================================================

// Plan identifies a subscription tier. Tiers are ordered by storage limit
// and version capability; the mapping from plan to limits lives in the
// quota package's plan catalog, not here.
type Plan int

const (
	PlanFree Plan = iota
	PlanPremium
	PlanBusiness
)

func (p Plan) String() string {
	switch p {
	case PlanFree:
		return "free"
	case PlanPremium:
		return "premium"
	case PlanBusiness:
		return "business"
	default:
		return "unknown"
	}
}

// ParsePlan converts a plan name to a Plan. The second return value reports
// whether the name was recognized.
func ParsePlan(name string) (Plan, bool) {
	switch name {
	case "free":
		return PlanFree, true
	case "premium":
		return PlanPremium, true
	case "business":
		return PlanBusiness, true
	default:
		return PlanFree, false
	}
}

// ============================================================================
// Share Permissions
// ============================================================================

// Permission is an ordered capability level for shares and shared links.
// Higher values include the capabilities of lower ones: a Download grant
// implies View, an Edit grant implies Download.
type Permission int

const (
	PermissionView Permission = iota
	PermissionDownload
	PermissionEdit
)

func (p Permission) String() string {
	switch p {
	case PermissionView:
		return "view"
	case PermissionDownload:
		return "download"
	case PermissionEdit:
		return "edit"
	default:
		return "unknown"
	}
}

// AllowsDownload reports whether this capability level permits downloading
// file content.
func (p Permission) AllowsDownload() bool {
	return p >= PermissionDownload
}

// ============================================================================
// Entities
// ============================================================================

// User is the owner of files, folders, shares and links. The ID is issued
// by the external identity provider and treated as opaque.
type User struct {
	ID        string    `json:"id"`
	Plan      Plan      `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

// Folder is a node in a per-owner folder tree. A nil ParentID marks a root
// folder. Folder names are unique among siblings of the same owner
// (case-insensitive).
type Folder struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	OwnerID   string     `json:"owner_id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Favorite  bool       `json:"favorite"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// File is the metadata row for an uploaded file. Content lives in the blob
// store under StoredKey. The (OwnerID, FolderID, Name) triple is unique
// among non-deleted files and is the identity used to detect re-uploads.
//
// A non-nil DeletedAt means the file is in the trash. The row stays in
// place and is excluded from normal listings until restored or purged.
type File struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	StoredKey   string     `json:"stored_key"`
	ContentType string     `json:"content_type"`
	Size        int64      `json:"size"`
	OwnerID     string     `json:"owner_id"`
	FolderID    *uuid.UUID `json:"folder_id,omitempty"`
	Favorite    bool       `json:"favorite"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Trashed reports whether the file is currently soft-deleted.
func (f *File) Trashed() bool {
	return f.DeletedAt != nil
}

// FileVersion is an immutable snapshot of a file's content metadata, taken
// when a same-named file is re-uploaded or when a version is restored
// (the pre-restore state is snapshotted first). Only Description and the
// soft-delete flag may change after creation. The backing blob is never
// removed when a version is soft-deleted.
type FileVersion struct {
	ID          uuid.UUID  `json:"id"`
	FileID      uuid.UUID  `json:"file_id"`
	Name        string     `json:"name"`
	StoredKey   string     `json:"stored_key"`
	ContentType string     `json:"content_type"`
	Size        int64      `json:"size"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	Description string     `json:"description,omitempty"`
	Deleted     bool       `json:"deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// FileShare grants a user access to a single file. Revocation is soft: the
// row is flagged, never removed, so the grant history stays auditable.
// At most one non-revoked share exists per (FileID, SharedWithID) pair.
type FileShare struct {
	ID           uuid.UUID  `json:"id"`
	FileID       uuid.UUID  `json:"file_id"`
	OwnerID      string     `json:"owner_id"`
	SharedWithID string     `json:"shared_with_id"`
	Permission   Permission `json:"permission"`
	Revoked      bool       `json:"revoked"`
	CreatedAt    time.Time  `json:"created_at"`
}

// FolderShare is the folder-scoped counterpart of FileShare. A folder share
// also grants access to the folder's immediate children (files in the
// folder, direct subfolders) but is not walked further up or down the tree.
type FolderShare struct {
	ID           uuid.UUID  `json:"id"`
	FolderID     uuid.UUID  `json:"folder_id"`
	OwnerID      string     `json:"owner_id"`
	SharedWithID string     `json:"shared_with_id"`
	Permission   Permission `json:"permission"`
	Revoked      bool       `json:"revoked"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SharedLink is an anonymous capability token scoped to one file. Links are
// deleted explicitly or left to expire; an expired link simply stops
// authenticating, there is no background purge.
type SharedLink struct {
	ID           uuid.UUID  `json:"id"`
	FileID       uuid.UUID  `json:"file_id"`
	OwnerID      string     `json:"owner_id"`
	Token        string     `json:"token"`
	Permission   Permission `json:"permission"`
	ExpiresAt    time.Time  `json:"expires_at"`
	MaxDownloads *int       `json:"max_downloads,omitempty"`
	Downloads    int        `json:"downloads"`
	Views        int        `json:"views"`
	PasswordHash string     `json:"password_hash,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Expired reports whether the link's expiry timestamp has passed.
func (l *SharedLink) Expired(now time.Time) bool {
	return l.ExpiresAt.Before(now)
}

// PasswordProtected reports whether a password must be supplied to use
// the link.
func (l *SharedLink) PasswordProtected() bool {
	return l.PasswordHash != ""
}
