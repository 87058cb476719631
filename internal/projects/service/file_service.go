package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/utils"
)

const maxFileNameLen = 255

// FileService keeps the metadata of files uploaded through the file
// transport. File bytes never pass through it.
type FileService struct {
	resolver *Resolver
	log      zerolog.Logger
	now      func() time.Time
}

func NewFileService(resolver *Resolver, log zerolog.Logger) *FileService {
	return &FileService{
		resolver: resolver,
		log:      log.With().Str("service", "files").Logger(),
		now:      time.Now,
	}
}

// Register records an uploaded file. The URL is not checked for reachability.
func (s *FileService) Register(ctx context.Context, a domain.Actor, projectID string, in domain.RegisterFileInput) (*domain.ProjectFile, error) {
	name := strings.TrimSpace(in.FileName)
	if name == "" {
		return nil, domain.Invalid("file_name is required")
	}
	if len(name) > maxFileNameLen {
		return nil, domain.Invalid("file_name longer than %d characters", maxFileNameLen)
	}
	if in.FileSizeBytes != nil && *in.FileSizeBytes < 0 {
		return nil, domain.Invalid("file_size_bytes must not be negative")
	}
	if in.FileURL != nil {
		if _, err := url.Parse(*in.FileURL); err != nil {
			return nil, domain.Invalid("file_url: %v", err)
		}
	}

	b, p, err := s.resolver.open(ctx, a, projectID)
	if err != nil {
		return nil, err
	}

	id, err := utils.NewOrderedID()
	if err != nil {
		return nil, err
	}
	f := &domain.ProjectFile{
		ID:             id,
		ProjectID:      p.ID,
		FileName:       name,
		FileSizeBytes:  in.FileSizeBytes,
		FileURL:        in.FileURL,
		UploadedByRole: a.Role.ChannelSide(),
		CreatedAt:      stamp(s.now()),
	}
	if err := b.Store.InsertFile(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes a file. Deleting a file that is already gone succeeds.
func (s *FileService) Delete(ctx context.Context, a domain.Actor, projectID, fileID string) error {
	b, _, err := s.resolver.open(ctx, a, projectID)
	if err != nil {
		return err
	}
	removed, err := b.Store.DeleteFile(ctx, projectID, fileID)
	if err != nil {
		return err
	}
	if !removed {
		s.log.Debug().Str("project_id", projectID).Str("file_id", fileID).Msg("file already deleted")
	}
	return nil
}

// List returns the project's files, newest first.
func (s *FileService) List(ctx context.Context, a domain.Actor, projectID string) ([]domain.ProjectFile, error) {
	b, _, err := s.resolver.open(ctx, a, projectID)
	if err != nil {
		return nil, err
	}
	return b.Store.ListFiles(ctx, projectID)
}
