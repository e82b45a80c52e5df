package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/skyvault/skyvault/pkg/store"
)

func cloneFile(f *store.File) *store.File {
	out := *f
	out.FolderID = cloneUUIDPtr(f.FolderID)
	out.DeletedAt = cloneTimePtr(f.DeletedAt)
	return &out
}

func (s *MemoryMetadataStore) CreateFile(ctx context.Context, file *store.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := fileNameKey(file.OwnerID, file.FolderID, file.Name)
	if _, ok := s.fileNames[key]; ok {
		return store.NewError(store.ErrAlreadyExists, "a file with the same name already exists in this folder")
	}

	f := cloneFile(file)
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = now
	}

	s.files[f.ID] = f
	s.fileNames[key] = f.ID
	return nil
}

func (s *MemoryMetadataStore) GetFile(ctx context.Context, id uuid.UUID) (*store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return nil, store.ErrFileNotFound
	}

	return cloneFile(f), nil
}

func (s *MemoryMetadataStore) FindFileByName(ctx context.Context, ownerID string, folderID *uuid.UUID, name string) (*store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.fileNames[fileNameKey(ownerID, folderID, name)]
	if !ok {
		return nil, store.ErrFileNotFound
	}

	return cloneFile(s.files[id]), nil
}

func (s *MemoryMetadataStore) UpdateFileContent(ctx context.Context, id uuid.UUID, name, storedKey, contentType string, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return store.ErrFileNotFound
	}

	// Content updates may change the name (re-upload under a new filename
	// is still the same identity when the triple matches), so the name
	// index follows along.
	if !f.Trashed() && f.Name != name {
		oldKey := fileNameKey(f.OwnerID, f.FolderID, f.Name)
		newKey := fileNameKey(f.OwnerID, f.FolderID, name)
		if other, taken := s.fileNames[newKey]; taken && other != f.ID {
			return store.NewError(store.ErrAlreadyExists, "a file with the same name already exists in this folder")
		}
		delete(s.fileNames, oldKey)
		s.fileNames[newKey] = f.ID
	}

	f.Name = name
	f.StoredKey = storedKey
	f.ContentType = contentType
	f.Size = size
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryMetadataStore) RenameFile(ctx context.Context, id uuid.UUID, newName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok || f.Trashed() {
		return store.ErrFileNotFound
	}

	oldKey := fileNameKey(f.OwnerID, f.FolderID, f.Name)
	newKey := fileNameKey(f.OwnerID, f.FolderID, newName)

	if newKey != oldKey {
		if _, taken := s.fileNames[newKey]; taken {
			return store.NewError(store.ErrAlreadyExists, "a file with the same name already exists in this folder")
		}
		delete(s.fileNames, oldKey)
		s.fileNames[newKey] = f.ID
	}

	f.Name = newName
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryMetadataStore) SetFileFavorite(ctx context.Context, id uuid.UUID, favorite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok || f.Trashed() {
		return store.ErrFileNotFound
	}

	f.Favorite = favorite
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryMetadataStore) ListFiles(ctx context.Context, ownerID string) ([]store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.File
	for _, f := range s.files {
		if f.OwnerID == ownerID && !f.Trashed() {
			out = append(out, *cloneFile(f))
		}
	}

	sortFilesByName(out)
	return out, nil
}

func (s *MemoryMetadataStore) ListFolderFiles(ctx context.Context, folderID uuid.UUID) ([]store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.File
	for _, f := range s.files {
		if f.FolderID != nil && *f.FolderID == folderID && !f.Trashed() {
			out = append(out, *cloneFile(f))
		}
	}

	sortFilesByName(out)
	return out, nil
}

// SumFileSizes counts every row owned by the user, trashed rows included.
// Files sitting in the trash keep consuming quota until purged.
func (s *MemoryMetadataStore) SumFileSizes(ctx context.Context, ownerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, f := range s.files {
		if f.OwnerID == ownerID {
			total += f.Size
		}
	}

	return total, nil
}

func (s *MemoryMetadataStore) SoftDeleteFile(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok || f.Trashed() {
		return store.ErrFileNotFound
	}

	delete(s.fileNames, fileNameKey(f.OwnerID, f.FolderID, f.Name))

	deletedAt := at.UTC()
	f.DeletedAt = &deletedAt
	f.Favorite = false
	return nil
}

func (s *MemoryMetadataStore) RestoreFile(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok || !f.Trashed() {
		return store.ErrFileNotFound
	}

	key := fileNameKey(f.OwnerID, f.FolderID, f.Name)
	if _, taken := s.fileNames[key]; taken {
		return store.NewError(store.ErrConflict, "a file with the same name already exists in this folder")
	}

	f.DeletedAt = nil
	f.UpdatedAt = time.Now().UTC()
	s.fileNames[key] = f.ID
	return nil
}

func (s *MemoryMetadataStore) DeleteFile(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return store.ErrFileNotFound
	}

	if !f.Trashed() {
		delete(s.fileNames, fileNameKey(f.OwnerID, f.FolderID, f.Name))
	}
	delete(s.files, id)

	// Version rows go with the file, mirroring a relational cascade.
	for vid, v := range s.versions {
		if v.FileID == id {
			delete(s.versions, vid)
		}
	}

	return nil
}

func (s *MemoryMetadataStore) ListTrashed(ctx context.Context, ownerID string, deletedAfter time.Time) ([]store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.File
	for _, f := range s.files {
		if f.OwnerID != ownerID || !f.Trashed() {
			continue
		}
		if !deletedAfter.IsZero() && f.DeletedAt.Before(deletedAfter) {
			continue
		}
		out = append(out, *cloneFile(f))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DeletedAt.After(*out[j].DeletedAt)
	})
	return out, nil
}

func (s *MemoryMetadataStore) ListTrashedBefore(ctx context.Context, threshold time.Time) ([]store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.File
	for _, f := range s.files {
		if f.Trashed() && !f.DeletedAt.After(threshold) {
			out = append(out, *cloneFile(f))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DeletedAt.Before(*out[j].DeletedAt)
	})
	return out, nil
}

func sortFilesByName(files []store.File) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
}
