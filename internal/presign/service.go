package presign

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"uploadflow/internal/config"
	"uploadflow/internal/registry"
	"uploadflow/internal/upload"
)

var (
	ErrNoFilenames      = errors.New("filenames is required")
	ErrInvalidParent    = errors.New("parent_uuid must be a valid UUID")
	ErrTooManyFiles     = errors.New("too many files in one request")
	ErrCommitMsgTooLong = fmt.Errorf("commit_msg must be at most %d characters", upload.MaxCommitMsgLength)
	ErrStorageDenied    = errors.New("object store refused to sign the upload")
	ErrNoFileUUIDs      = errors.New("file_uuids is required")
	ErrUnknownFiles     = errors.New("none of the listed files exist")
)

// S3Client is the slice of the object store the service needs.
type S3Client interface {
	PresignPutObject(ctx context.Context, key string, expires time.Duration) (string, error)
}

type Service struct {
	log      logrus.FieldLogger
	s3Client S3Client
	store    registry.Store
	newUUID  func() string
}

func NewService(log logrus.FieldLogger, s3Client S3Client, store registry.Store) *Service {
	return &Service{
		log:      log.WithField("component", "presign"),
		s3Client: s3Client,
		store:    store,
		newUUID:  uuid.NewString,
	}
}

// Presign issues one upload slot per unique, usable filename and records each
// as pending. Names that are skipped get no slot.
func (s *Service) Presign(ctx context.Context, req *upload.PresignRequest, profile *config.Profile) ([]upload.UploadSlot, error) {
	if len(req.Filenames) == 0 {
		return nil, ErrNoFilenames
	}

	parent, err := uuid.Parse(req.ParentUUID)
	if err != nil {
		return nil, ErrInvalidParent
	}

	if profile.MaxFiles > 0 && len(req.Filenames) > profile.MaxFiles {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(req.Filenames), profile.MaxFiles)
	}

	commitMsg := strings.TrimSpace(req.CommitMsg)
	if utf8.RuneCountInString(commitMsg) > upload.MaxCommitMsgLength {
		return nil, ErrCommitMsgTooLong
	}

	seen := make(map[string]struct{}, len(req.Filenames))
	slots := make([]upload.UploadSlot, 0, len(req.Filenames))
	files := make([]registry.File, 0, len(req.Filenames))

	for _, name := range req.Filenames {
		if !usableFilename(name) {
			s.log.WithField("filename", name).Debug("Skipping unusable filename")
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		fileUUID := s.newUUID()
		shard := ""
		if profile.EnableSharding {
			shard = GenerateShard(fileUUID)
		}
		objectKey := buildObjectKey(profile.PathTemplate, parent.String(), fileUUID, name, shard)

		url, err := s.s3Client.PresignPutObject(ctx, objectKey, profile.TokenTTL())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrStorageDenied, name, err)
		}

		slots = append(slots, upload.UploadSlot{
			Filename:  name,
			UploadURL: url,
			FileUUID:  fileUUID,
		})
		files = append(files, registry.File{
			UUID:       fileUUID,
			ParentUUID: parent.String(),
			Filename:   name,
			ObjectKey:  objectKey,
			CommitMsg:  commitMsg,
		})
	}

	if err := s.store.Register(ctx, files); err != nil {
		return nil, err
	}

	s.log.WithField("parent_uuid", parent.String()).
		WithField("requested", len(req.Filenames)).
		WithField("issued", len(slots)).
		Info("Upload slots issued")

	return slots, nil
}

// Confirm marks the listed files as uploaded. A zero count means none of the
// uuids was ever issued, which is reported as ErrUnknownFiles.
func (s *Service) Confirm(ctx context.Context, req *upload.ConfirmRequest) (*upload.ConfirmResponse, error) {
	if len(req.FileUUIDs) == 0 {
		return nil, ErrNoFileUUIDs
	}

	count, err := s.store.Confirm(ctx, req.FileUUIDs)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrUnknownFiles
	}

	return &upload.ConfirmResponse{ConfirmedCount: count}, nil
}

func usableFilename(name string) bool {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return false
	}

	return !strings.ContainsAny(name, "/\\\x00")
}

func buildObjectKey(template, parentUUID, fileUUID, filename, shard string) string {
	objectKey := template

	// Replace placeholders in template
	objectKey = strings.ReplaceAll(objectKey, "{parent_uuid}", parentUUID)
	objectKey = strings.ReplaceAll(objectKey, "{file_uuid}", fileUUID)
	objectKey = strings.ReplaceAll(objectKey, "{filename}", filename)

	// Handle optional shard
	if shard != "" {
		objectKey = strings.ReplaceAll(objectKey, "{shard?}", shard)
		objectKey = strings.ReplaceAll(objectKey, "{shard}", shard)
	} else {
		objectKey = strings.ReplaceAll(objectKey, "/{shard?}", "")
		objectKey = strings.ReplaceAll(objectKey, "{shard?}/", "")
		objectKey = strings.ReplaceAll(objectKey, "{shard?}", "")
	}

	return objectKey
}

// GenerateShard returns the first byte of the SHA1 of key as two hex digits.
func GenerateShard(key string) string {
	sum := sha1.Sum([]byte(key))

	return fmt.Sprintf("%02x", sum[0])
}
