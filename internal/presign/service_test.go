package presign

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uploadflow/internal/config"
	"uploadflow/internal/registry"
	"uploadflow/internal/upload"
)

const testParent = "2f1c7a52-8c1e-4a0e-9a59-3d1f7c6b2e11"

// MockS3Client implements S3Client for testing
type MockS3Client struct {
	presignPutObjectFunc func(ctx context.Context, key string, expires time.Duration) (string, error)
	keys                 []string
}

func (m *MockS3Client) PresignPutObject(ctx context.Context, key string, expires time.Duration) (string, error) {
	m.keys = append(m.keys, key)
	if m.presignPutObjectFunc != nil {
		return m.presignPutObjectFunc(ctx, key, expires)
	}
	return "https://test.s3.amazonaws.com/bucket/" + key, nil
}

// MockStore implements registry.Store for testing
type MockStore struct {
	registered  []registry.File
	registerErr error
	confirmFunc func(ctx context.Context, uuids []string) (int, error)
}

func (m *MockStore) Start(context.Context) error { return nil }
func (m *MockStore) Stop() error                 { return nil }

func (m *MockStore) Register(_ context.Context, files []registry.File) error {
	if m.registerErr != nil {
		return m.registerErr
	}
	m.registered = append(m.registered, files...)
	return nil
}

func (m *MockStore) Confirm(ctx context.Context, uuids []string) (int, error) {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, uuids)
	}
	return len(uuids), nil
}

func (m *MockStore) Get(context.Context, string) (*registry.File, error) {
	return nil, errors.New("not implemented")
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(s3 *MockS3Client, store *MockStore) *Service {
	s := NewService(testLogger(), s3, store)
	n := 0
	s.newUUID = func() string {
		n++
		return "file-" + string(rune('0'+n))
	}
	return s
}

func TestGenerateShard(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"test-key-1", "1a"},
		{"test-key-2", "0d"},
		{"different-key", "af"},
		{"", "da"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.expected, GenerateShard(tt.key))
		})
	}
}

func TestBuildObjectKey(t *testing.T) {
	tests := []struct {
		name     string
		template string
		shard    string
		expected string
	}{
		{"Default template", "{parent_uuid}/{file_uuid}/{filename}", "", "p/f/a.jpg"},
		{"Optional shard present", "{shard?}/{parent_uuid}/{file_uuid}/{filename}", "ab", "ab/p/f/a.jpg"},
		{"Optional shard absent", "{shard?}/{parent_uuid}/{file_uuid}/{filename}", "", "p/f/a.jpg"},
		{"Optional shard absent in middle", "raw/{parent_uuid}/{shard?}/{filename}", "", "raw/p/a.jpg"},
		{"Required shard", "{shard}/{file_uuid}", "0d", "0d/f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildObjectKey(tt.template, "p", "f", "a.jpg", tt.shard))
		})
	}
}

func TestService_Presign(t *testing.T) {
	s3 := &MockS3Client{}
	store := &MockStore{}
	s := newTestService(s3, store)

	req := &upload.PresignRequest{
		Filenames:  []string{"a.jpg", "b.png", "a.jpg", "", "../etc/passwd"},
		ParentUUID: testParent,
		CommitMsg:  "  revised drawings ",
	}

	slots, err := s.Presign(context.Background(), req, config.DefaultProfile())
	require.NoError(t, err)
	require.Len(t, slots, 2)

	assert.Equal(t, "a.jpg", slots[0].Filename)
	assert.Equal(t, "file-1", slots[0].FileUUID)
	assert.Equal(t, "https://test.s3.amazonaws.com/bucket/"+testParent+"/file-1/a.jpg", slots[0].UploadURL)
	assert.Equal(t, "b.png", slots[1].Filename)

	require.Len(t, store.registered, 2)
	assert.Equal(t, testParent+"/file-2/b.png", store.registered[1].ObjectKey)
	assert.Equal(t, testParent, store.registered[1].ParentUUID)
	for _, f := range store.registered {
		assert.Equal(t, "revised drawings", f.CommitMsg)
	}
}

func TestService_PresignSharded(t *testing.T) {
	s3 := &MockS3Client{}
	s := newTestService(s3, &MockStore{})

	profile := config.DefaultProfile()
	profile.EnableSharding = true
	profile.PathTemplate = "raw/{shard?}/{file_uuid}/{filename}"

	_, err := s.Presign(context.Background(), &upload.PresignRequest{
		Filenames:  []string{"a.jpg"},
		ParentUUID: testParent,
	}, profile)
	require.NoError(t, err)

	require.Len(t, s3.keys, 1)
	assert.Equal(t, "raw/"+GenerateShard("file-1")+"/file-1/a.jpg", s3.keys[0])
}

func TestService_PresignPassesTTL(t *testing.T) {
	var got time.Duration
	s3 := &MockS3Client{
		presignPutObjectFunc: func(_ context.Context, key string, expires time.Duration) (string, error) {
			got = expires
			return "https://example/" + key, nil
		},
	}
	s := newTestService(s3, &MockStore{})

	profile := config.DefaultProfile()
	profile.TokenTTLSeconds = 60

	_, err := s.Presign(context.Background(), &upload.PresignRequest{
		Filenames:  []string{"a.jpg"},
		ParentUUID: testParent,
	}, profile)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, got)
}

func TestService_PresignErrors(t *testing.T) {
	profile := config.DefaultProfile()
	profile.MaxFiles = 2

	tests := []struct {
		name     string
		req      upload.PresignRequest
		s3       *MockS3Client
		store    *MockStore
		expected error
		contains string
	}{
		{
			name:     "No filenames",
			req:      upload.PresignRequest{ParentUUID: testParent},
			expected: ErrNoFilenames,
		},
		{
			name:     "Invalid parent",
			req:      upload.PresignRequest{Filenames: []string{"a"}, ParentUUID: "not-a-uuid"},
			expected: ErrInvalidParent,
		},
		{
			name:     "Too many files",
			req:      upload.PresignRequest{Filenames: []string{"a", "b", "c"}, ParentUUID: testParent},
			expected: ErrTooManyFiles,
		},
		{
			name: "Presign failure",
			req:  upload.PresignRequest{Filenames: []string{"a"}, ParentUUID: testParent},
			s3: &MockS3Client{presignPutObjectFunc: func(context.Context, string, time.Duration) (string, error) {
				return "", errors.New("signer down")
			}},
			expected: ErrStorageDenied,
			contains: "signer down",
		},
		{
			name: "Commit message too long",
			req: upload.PresignRequest{
				Filenames:  []string{"a"},
				ParentUUID: testParent,
				CommitMsg:  strings.Repeat("é", upload.MaxCommitMsgLength+1),
			},
			expected: ErrCommitMsgTooLong,
		},
		{
			name:     "Register failure",
			req:      upload.PresignRequest{Filenames: []string{"a"}, ParentUUID: testParent},
			store:    &MockStore{registerErr: errors.New("db down")},
			contains: "db down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s3 := tt.s3
			if s3 == nil {
				s3 = &MockS3Client{}
			}
			store := tt.store
			if store == nil {
				store = &MockStore{}
			}

			_, err := newTestService(s3, store).Presign(context.Background(), &tt.req, profile)
			require.Error(t, err)
			if tt.expected != nil {
				assert.ErrorIs(t, err, tt.expected)
			}
			if tt.contains != "" {
				assert.True(t, strings.Contains(err.Error(), tt.contains), err.Error())
			}
		})
	}
}

func TestService_Confirm(t *testing.T) {
	store := &MockStore{confirmFunc: func(_ context.Context, uuids []string) (int, error) {
		return len(uuids) - 1, nil
	}}
	s := newTestService(&MockS3Client{}, store)

	resp, err := s.Confirm(context.Background(), &upload.ConfirmRequest{FileUUIDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ConfirmedCount)

	_, err = s.Confirm(context.Background(), &upload.ConfirmRequest{})
	assert.ErrorIs(t, err, ErrNoFileUUIDs)

	_, err = s.Confirm(context.Background(), &upload.ConfirmRequest{FileUUIDs: []string{"never-issued"}})
	assert.ErrorIs(t, err, ErrUnknownFiles)
}

func TestService_PresignCommitMsgAtLimit(t *testing.T) {
	store := &MockStore{}
	msg := strings.Repeat("é", upload.MaxCommitMsgLength)

	_, err := newTestService(&MockS3Client{}, store).Presign(context.Background(), &upload.PresignRequest{
		Filenames:  []string{"a.jpg"},
		ParentUUID: testParent,
		CommitMsg:  msg,
	}, config.DefaultProfile())
	require.NoError(t, err)

	require.Len(t, store.registered, 1)
	assert.Equal(t, msg, store.registered[0].CommitMsg)
}
