package testing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/pkg/store"
)

// CreateUser inserts a user and fails the test on error.
func CreateUser(t *testing.T, s store.MetadataStore, id string, plan store.Plan) *store.User {
	t.Helper()

	user := &store.User{ID: id, Plan: plan}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

// CreateFolder inserts a folder and fails the test on error.
func CreateFolder(t *testing.T, s store.MetadataStore, ownerID, name string, parentID *uuid.UUID) *store.Folder {
	t.Helper()

	folder := &store.Folder{
		ID:       uuid.New(),
		Name:     name,
		OwnerID:  ownerID,
		ParentID: parentID,
	}
	require.NoError(t, s.CreateFolder(context.Background(), folder))
	return folder
}

// CreateFile inserts a file row and fails the test on error.
func CreateFile(t *testing.T, s store.MetadataStore, ownerID, name string, folderID *uuid.UUID, size int64) *store.File {
	t.Helper()

	file := &store.File{
		ID:          uuid.New(),
		Name:        name,
		StoredKey:   uuid.NewString(),
		ContentType: "application/octet-stream",
		Size:        size,
		OwnerID:     ownerID,
		FolderID:    folderID,
	}
	require.NoError(t, s.CreateFile(context.Background(), file))
	return file
}

// CreateVersion inserts a version row and fails the test on error.
func CreateVersion(t *testing.T, s store.MetadataStore, fileID uuid.UUID, createdBy string, createdAt time.Time) *store.FileVersion {
	t.Helper()

	version := &store.FileVersion{
		ID:          uuid.New(),
		FileID:      fileID,
		Name:        "snapshot",
		StoredKey:   uuid.NewString(),
		ContentType: "application/octet-stream",
		Size:        1,
		CreatedBy:   createdBy,
		CreatedAt:   createdAt,
	}
	require.NoError(t, s.CreateVersion(context.Background(), version))
	return version
}

// CreateLink inserts a shared link and fails the test on error.
func CreateLink(t *testing.T, s store.MetadataStore, ownerID string, fileID uuid.UUID, token string) *store.SharedLink {
	t.Helper()

	link := &store.SharedLink{
		ID:         uuid.New(),
		FileID:     fileID,
		OwnerID:    ownerID,
		Token:      token,
		Permission: store.PermissionDownload,
		ExpiresAt:  time.Now().Add(24 * time.Hour).UTC(),
		Active:     true,
	}
	require.NoError(t, s.CreateLink(context.Background(), link))
	return link
}

// intPtr returns a pointer to an int value.
func intPtr(v int) *int {
	return &v
}
