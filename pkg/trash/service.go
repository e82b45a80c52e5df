// Package trash implements the soft-delete lifecycle for files.
//
// Deleting a file moves it to the trash: the metadata row is flagged with
// a deletion timestamp and drops out of normal listings, but the row and
// the content blob stay in place. Within the retention window the owner
// can restore the file or purge it explicitly; after the window the
// background collector purges it for good.
//
// Trashed files keep consuming storage quota until they are purged.
package trash

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skyvault/skyvault/internal/logger"
	"github.com/skyvault/skyvault/pkg/blob"
	"github.com/skyvault/skyvault/pkg/store"
)

// DefaultRetention is how long trashed files are kept before permanent
// deletion.
const DefaultRetention = 30 * 24 * time.Hour

// DefaultReminderWindow is how close to permanent deletion a trashed file
// must be before it shows up in expiring-soon scans.
const DefaultReminderWindow = 2 * 24 * time.Hour

// Item is a trashed file together with its purge schedule.
type Item struct {
	File store.File

	// PermanentDeleteDate is when the retention window closes.
	PermanentDeleteDate time.Time

	// DaysRemaining is the number of days until permanent deletion,
	// rounded up. Zero means the file is due for purge.
	DaysRemaining int
}

// Service manages the trash of all users.
type Service struct {
	store     store.MetadataStore
	blobs     blob.BlobStore
	retention time.Duration

	// now is swapped out in tests.
	now func() time.Time
}

// NewService creates a trash service. A non-positive retention falls back
// to DefaultRetention.
func NewService(metadata store.MetadataStore, blobs blob.BlobStore, retention time.Duration) *Service {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Service{
		store:     metadata,
		blobs:     blobs,
		retention: retention,
		now:       time.Now,
	}
}

// Retention returns the configured retention window.
func (s *Service) Retention() time.Duration {
	return s.retention
}

// SoftDelete moves the file to the trash. Owner-only: shares grant no
// delete rights. The favorite flag is cleared so the file does not
// resurface in favorite listings after a restore.
func (s *Service) SoftDelete(ctx context.Context, userID string, fileID uuid.UUID) error {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if file.OwnerID != userID {
		return store.NewError(store.ErrPermissionDenied, "you do not have permission to delete this file")
	}
	if file.Trashed() {
		return store.ErrFileNotFound
	}

	return s.store.SoftDeleteFile(ctx, fileID, s.now().UTC())
}

// Restore brings a trashed file back. Fails with Expired once the
// retention window has closed and with Conflict when another file has
// taken the name in the meantime.
func (s *Service) Restore(ctx context.Context, userID string, fileID uuid.UUID) error {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if file.OwnerID != userID {
		return store.NewError(store.ErrPermissionDenied, "you do not have permission to restore this file")
	}
	if !file.Trashed() {
		return store.ErrFileNotFound
	}

	if s.now().After(file.DeletedAt.Add(s.retention)) {
		return store.NewError(store.ErrExpired, "the retention period for this file has expired")
	}

	return s.store.RestoreFile(ctx, fileID)
}

// PermanentlyDelete purges a trashed file immediately: version rows, the
// metadata row and every blob the file ever referenced. Owner-only.
func (s *Service) PermanentlyDelete(ctx context.Context, userID string, fileID uuid.UUID) error {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if file.OwnerID != userID {
		return store.NewError(store.ErrPermissionDenied, "you do not have permission to delete this file")
	}
	if !file.Trashed() {
		return store.ErrFileNotFound
	}

	return s.purge(ctx, file)
}

// EmptyTrash purges every trashed file of the user, expired rows
// included. Files that fail to purge are logged and skipped; the rest of
// the trash is still emptied.
func (s *Service) EmptyTrash(ctx context.Context, userID string) (int, error) {
	trashed, err := s.store.ListTrashed(ctx, userID, time.Time{})
	if err != nil {
		return 0, err
	}

	purged := 0
	for i := range trashed {
		if err := s.purge(ctx, &trashed[i]); err != nil {
			logger.Error("trash: failed to purge file %s: %v", trashed[i].ID, err)
			continue
		}
		purged++
	}
	return purged, nil
}

// List returns the user's trash, newest deletion first, with the purge
// schedule computed for each entry. Files past the retention window do
// not appear even when the purge job has not caught up with them yet.
func (s *Service) List(ctx context.Context, userID string) ([]Item, error) {
	now := s.now()
	trashed, err := s.store.ListTrashed(ctx, userID, now.Add(-s.retention))
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(trashed))
	for i := range trashed {
		items = append(items, s.itemOf(trashed[i], now))
	}
	return items, nil
}

// ExpiringSoon returns the user's trashed files whose permanent deletion
// falls within the reminder window. Used to warn users before content is
// lost for good.
func (s *Service) ExpiringSoon(ctx context.Context, userID string, window time.Duration) ([]Item, error) {
	if window <= 0 {
		window = DefaultReminderWindow
	}

	items, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	soon := make([]Item, 0)
	for _, item := range items {
		if !item.PermanentDeleteDate.After(now.Add(window)) {
			soon = append(soon, item)
		}
	}
	return soon, nil
}

// PurgeExpired permanently deletes every trashed file across all users
// whose retention window has closed. Called by the background collector.
// Per-file failures are logged and skipped so one bad row never stalls
// the whole purge.
func (s *Service) PurgeExpired(ctx context.Context) (purged, failed int, err error) {
	threshold := s.now().Add(-s.retention)
	expired, err := s.store.ListTrashedBefore(ctx, threshold)
	if err != nil {
		return 0, 0, err
	}

	for i := range expired {
		if err := ctx.Err(); err != nil {
			return purged, failed, err
		}

		file := &expired[i]
		if err := s.purge(ctx, file); err != nil {
			logger.Error("trash: failed to purge expired file %s: %v", file.ID, err)
			failed++
			continue
		}
		purged++
	}
	return purged, failed, nil
}

// purge removes the file row, its versions and all referenced blobs.
//
// Metadata goes first: a leftover blob is invisible garbage, while a
// metadata row pointing at a deleted blob is a storage inconsistency.
// Blob deletion failures are therefore logged, not returned.
func (s *Service) purge(ctx context.Context, file *store.File) error {
	keys := map[string]struct{}{}
	if file.StoredKey != "" {
		keys[file.StoredKey] = struct{}{}
	}

	versions, err := s.store.ListAllVersions(ctx, file.ID)
	if err != nil {
		return err
	}
	for i := range versions {
		if versions[i].StoredKey != "" {
			keys[versions[i].StoredKey] = struct{}{}
		}
	}

	if err := s.store.DeleteFile(ctx, file.ID); err != nil {
		return err
	}

	for key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			logger.Warn("trash: failed to delete blob %s for file %s: %v", key, file.ID, err)
		}
	}

	logger.Debug("trash: purged file %s (%d blobs)", file.ID, len(keys))
	return nil
}

// itemOf computes the purge schedule for a trashed file.
func (s *Service) itemOf(file store.File, now time.Time) Item {
	deleteDate := file.DeletedAt.Add(s.retention)

	remaining := deleteDate.Sub(now)
	days := 0
	if remaining > 0 {
		days = int((remaining + 24*time.Hour - 1) / (24 * time.Hour))
	}

	return Item{
		File:                file,
		PermanentDeleteDate: deleteDate,
		DaysRemaining:       days,
	}
}
