package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medscan/image-service/internal/storage"
)

// allowedExtensions is the accepted upload extension set. The extension is the
// only content gate; bytes are never sniffed.
var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

// MetadataStore is the persistence contract the service depends on.
// Satisfied by *Repository; tests substitute fakes.
type MetadataStore interface {
	Insert(ctx context.Context, img *Image) error
	GetByID(ctx context.Context, id string) (*Image, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Image, error)
	DeleteByID(ctx context.Context, id string) error
}

// Service coordinates the object store and the metadata store. The ordering
// invariant: an object is always written before its record, and deleted before
// its record. A record therefore never points at a missing object.
type Service struct {
	repo   MetadataStore
	store  storage.Storage
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new image Service.
func NewService(repo MetadataStore, store storage.Storage, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		logger: logger.With("component", "image"),
		now:    time.Now,
	}
}

// Upload validates the payload, writes the bytes to the object store, and then
// persists the metadata record. On a metadata failure after a successful write
// it attempts a compensating delete of the just-written object.
func (s *Service) Upload(ctx context.Context, ownerID, originalName, contentType string, file io.ReadSeeker) (*Image, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, ErrInvalidOwner
	}

	if file == nil {
		return nil, ErrNoFile
	}
	if originalName == "" {
		return nil, ErrEmptyFilename
	}

	sanitized := sanitizeFilename(originalName)
	if sanitized == "" {
		return nil, ErrEmptyFilename
	}

	ext, ok := extension(sanitized)
	if !ok {
		return nil, ErrInvalidFileType
	}

	size, err := measureAndRewind(file)
	if err != nil {
		return nil, fmt.Errorf("measure upload size: %w", err)
	}

	uploadedAt := s.now().UTC()
	storedName := fmt.Sprintf("%s_%d.%s", owner, uploadedAt.UnixNano(), ext)

	if err := s.store.Put(ctx, storedName, file, size, contentType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	img := &Image{
		ID:               uuid.NewString(),
		FilenameOriginal: sanitized,
		FilenameStored:   storedName,
		ContentType:      contentType,
		Size:             size,
		UploadDate:       uploadedAt,
		UserID:           owner.String(),
		Status:           StatusPending,
	}

	if err := s.repo.Insert(ctx, img); err != nil {
		s.compensate(ctx, storedName, err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return img, nil
}

// compensate removes an object whose metadata insert failed. A failure here
// leaves an orphaned object invisible to users; it is logged for operators
// and never retried.
func (s *Service) compensate(ctx context.Context, storedName string, cause error) {
	if err := s.store.Delete(ctx, storedName); err != nil {
		s.logger.Error("compensating delete failed, object orphaned",
			"key", storedName,
			"insert_error", cause,
			"delete_error", err,
		)
		return
	}
	s.logger.Warn("metadata insert failed, object write compensated",
		"key", storedName,
		"error", cause,
	)
}

// GetMetadata returns the record for id if the caller owns it.
func (s *Service) GetMetadata(ctx context.Context, ownerID, id string) (*Image, error) {
	return s.ownedRecord(ctx, ownerID, id)
}

// Download opens the stored bytes for id if the caller owns it. The caller
// must close the returned reader.
func (s *Service) Download(ctx context.Context, ownerID, id string) (io.ReadCloser, *Image, error) {
	img, err := s.ownedRecord(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.store.Get(ctx, img.FilenameStored)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return rc, img, nil
}

// List returns all records owned by the caller.
func (s *Service) List(ctx context.Context, ownerID string) ([]*Image, error) {
	images, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return images, nil
}

// Delete removes the object first and the record second. An object-store
// failure aborts with the record intact; a record-delete failure after the
// object is gone is surfaced as a persistence error.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	img, err := s.ownedRecord(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, img.FilenameStored); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Concurrent delete won the race; the object is gone either way.
			return ErrNotFound
		}
		s.logger.Error("record delete failed after object removal",
			"id", id,
			"key", img.FilenameStored,
			"error", err,
		)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// ownedRecord fetches a record and enforces ownership. Existence is checked
// before ownership, so a missing id is 404 for every caller.
func (s *Service) ownedRecord(ctx context.Context, ownerID, id string) (*Image, error) {
	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if img.UserID != ownerID {
		return nil, ErrForbidden
	}
	return img, nil
}

// sanitizeFilename strips directory components from a caller-supplied name.
// Both separator styles are handled so a Windows-style path cannot smuggle
// one through.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

// extension returns the lower-cased extension without the dot, and whether it
// is in the accepted set.
func extension(name string) (string, bool) {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return "", false
	}
	ext := strings.ToLower(name[i+1:])
	return ext, allowedExtensions[ext]
}

// measureAndRewind reads the stream length server-side, then resets the
// stream so the subsequent store write sees the full payload.
func measureAndRewind(file io.ReadSeeker) (int64, error) {
	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}
