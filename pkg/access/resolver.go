// Package access resolves what a user may do with a file or folder.
//
// A grant comes from exactly one of three sources, checked in order:
//
//  1. Ownership. Owners hold every capability on their own resources.
//  2. A direct, non-revoked share on the resource itself.
//  3. A non-revoked share on the immediate parent: the containing folder
//     for a file, the parent folder for a folder. Folder grants reach the
//     folder's immediate contents and nothing deeper; the tree is never
//     walked.
//
// The resolver is read-only. Granting and revoking lives in the files
// service; anonymous link access bypasses the resolver entirely and is
// handled by the sharelink engine.
package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/skyvault/skyvault/pkg/store"
)

// Source identifies where a grant came from.
type Source int

const (
	SourceOwner Source = iota
	SourceFileShare
	SourceFolderShare
)

func (s Source) String() string {
	switch s {
	case SourceOwner:
		return "owner"
	case SourceFileShare:
		return "file share"
	case SourceFolderShare:
		return "folder share"
	default:
		return "unknown"
	}
}

// Grant is a resolved capability on a single resource.
type Grant struct {
	// Permission is the capability level. Meaningless when Owner is set;
	// owners are not permission-checked.
	Permission store.Permission

	// Owner marks an ownership grant.
	Owner bool

	// Source records which rule produced the grant.
	Source Source
}

// AllowsDownload reports whether the grant permits downloading content.
func (g *Grant) AllowsDownload() bool {
	return g.Owner || g.Permission.AllowsDownload()
}

// AllowsEdit reports whether the grant permits modifying the resource.
func (g *Grant) AllowsEdit() bool {
	return g.Owner || g.Permission >= store.PermissionEdit
}

// Resolver answers access questions against the metadata store.
type Resolver struct {
	store store.MetadataStore
}

// NewResolver creates a resolver backed by the given metadata store.
func NewResolver(metadata store.MetadataStore) *Resolver {
	return &Resolver{store: metadata}
}

// ResolveFile returns the user's grant on the file, or a PermissionDenied
// error when no rule applies. Trashed files resolve for their owner only;
// shares and folder grants do not reach into the trash.
func (r *Resolver) ResolveFile(ctx context.Context, userID string, fileID uuid.UUID) (*Grant, error) {
	file, err := r.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return r.resolveFile(ctx, userID, file)
}

// ResolveFileRecord is ResolveFile for callers that already loaded the
// file row.
func (r *Resolver) ResolveFileRecord(ctx context.Context, userID string, file *store.File) (*Grant, error) {
	return r.resolveFile(ctx, userID, file)
}

func (r *Resolver) resolveFile(ctx context.Context, userID string, file *store.File) (*Grant, error) {
	if file.OwnerID == userID {
		return &Grant{Owner: true, Source: SourceOwner}, nil
	}

	if file.Trashed() {
		return nil, store.NewError(store.ErrPermissionDenied, "you do not have permission to access this file")
	}

	share, err := r.store.GetFileShare(ctx, file.ID, userID)
	if err == nil {
		return &Grant{Permission: share.Permission, Source: SourceFileShare}, nil
	}
	if !store.IsCode(err, store.ErrNotFound) {
		return nil, err
	}

	if file.FolderID != nil {
		folderShare, err := r.store.GetFolderShare(ctx, *file.FolderID, userID)
		if err == nil {
			return &Grant{Permission: folderShare.Permission, Source: SourceFolderShare}, nil
		}
		if !store.IsCode(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return nil, store.NewError(store.ErrPermissionDenied, "you do not have permission to access this file")
}

// ResolveFolder returns the user's grant on the folder, or a
// PermissionDenied error. Folder access comes from ownership, a direct
// folder share, or a share on the immediate parent; grandparent shares
// do not reach down.
func (r *Resolver) ResolveFolder(ctx context.Context, userID string, folderID uuid.UUID) (*Grant, error) {
	folder, err := r.store.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}

	if folder.OwnerID == userID {
		return &Grant{Owner: true, Source: SourceOwner}, nil
	}

	share, err := r.store.GetFolderShare(ctx, folderID, userID)
	if err == nil {
		return &Grant{Permission: share.Permission, Source: SourceFolderShare}, nil
	}
	if !store.IsCode(err, store.ErrNotFound) {
		return nil, err
	}

	if folder.ParentID != nil {
		parentShare, err := r.store.GetFolderShare(ctx, *folder.ParentID, userID)
		if err == nil {
			return &Grant{Permission: parentShare.Permission, Source: SourceFolderShare}, nil
		}
		if !store.IsCode(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return nil, store.NewError(store.ErrPermissionDenied, "you do not have permission to access this folder")
}

// RequireFileOwner loads the file and verifies the caller owns it.
// Operations like delete, share management and version management are
// owner-only regardless of any share permission.
func (r *Resolver) RequireFileOwner(ctx context.Context, userID string, fileID uuid.UUID) (*store.File, error) {
	file, err := r.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != userID {
		return nil, store.NewError(store.ErrPermissionDenied, "you do not have permission to access this file")
	}
	return file, nil
}

// RequireFolderOwner loads the folder and verifies the caller owns it.
func (r *Resolver) RequireFolderOwner(ctx context.Context, userID string, folderID uuid.UUID) (*store.Folder, error) {
	folder, err := r.store.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.OwnerID != userID {
		return nil, store.NewError(store.ErrPermissionDenied, "you do not have permission to access this folder")
	}
	return folder, nil
}
