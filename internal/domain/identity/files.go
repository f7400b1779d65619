package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentboard/dentboard/internal/domain/auditevent"
	"github.com/dentboard/dentboard/internal/domain/scheduling"
	"github.com/dentboard/dentboard/internal/platform/blobstore"
)

// FileService manages patient documents: content in a blobstore.Store,
// metadata in a FileRepository.
type FileService struct {
	repo     FileRepository
	store    blobstore.Store
	patients scheduling.PatientResolver
	audit    auditevent.Sink
	logger   zerolog.Logger
}

func NewFileService(repo FileRepository, store blobstore.Store, patients scheduling.PatientResolver, audit auditevent.Sink, logger zerolog.Logger) *FileService {
	if audit == nil {
		audit = auditevent.NopSink{}
	}
	return &FileService{
		repo:     repo,
		store:    store,
		patients: patients,
		audit:    audit,
		logger:   logger.With().Str("component", "patient_files").Logger(),
	}
}

// StoragePath is <patientID>/<uuid><ext>; the original extension is kept so
// the public URL serves the right type.
func StoragePath(patientID, fileName string) string {
	return patientID + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(fileName))
}

func (s *FileService) Upload(ctx context.Context, patientID, fileName, contentType string, content io.Reader) (*File, error) {
	if _, ok := s.patients.ResolveByKey(patientID); !ok {
		return nil, ErrPatientNotFound
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, blobstore.ErrEmptyFileName
	}

	path := StoragePath(patientID, fileName)
	if _, err := s.store.Put(ctx, path, contentType, content); err != nil {
		return nil, fmt.Errorf("upload %s: %w", fileName, err)
	}

	f := &File{
		PatientID:   patientID,
		FileName:    fileName,
		StoragePath: path,
		ContentType: contentType,
	}
	if err := s.repo.Insert(ctx, f); err != nil {
		if derr := s.store.Delete(ctx, path); derr != nil {
			s.logger.Warn().Err(derr).Str("path", path).Msg("remove orphaned upload")
		}
		return nil, fmt.Errorf("record file: %w", err)
	}
	f.URL = s.store.URL(path)

	s.audit.Append(ctx, auditevent.NewEntry(auditevent.FileUploaded, auditevent.EntityFile, f.ID, map[string]string{
		"patient_id": patientID,
		"file_name":  fileName,
	}))
	return f, nil
}

// List returns a patient's files newest first with their URLs.
func (s *FileService) List(ctx context.Context, patientID string) ([]*File, error) {
	files, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		f.URL = s.store.URL(f.StoragePath)
	}
	return files, nil
}

// Delete removes the content and then the metadata. Content that is
// already gone does not block removing the record.
func (s *FileService) Delete(ctx context.Context, patientID, fileID string, confirm scheduling.Confirmation) error {
	if !confirm {
		return ErrNotConfirmed
	}
	f, err := s.repo.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if f.PatientID != patientID {
		return ErrFileNotFound
	}
	if err := s.store.Delete(ctx, f.StoragePath); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		s.logger.Warn().Err(err).Str("path", f.StoragePath).Msg("remove file content")
	}
	if err := s.repo.Delete(ctx, fileID); err != nil {
		return err
	}
	s.audit.Append(ctx, auditevent.NewEntry(auditevent.FileDeleted, auditevent.EntityFile, fileID, nil))
	return nil
}
