package presign

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uploadflow/internal/config"
	"uploadflow/internal/upload"
)

// MockUploadService implements UploadService for testing
type MockUploadService struct {
	presignFunc func(ctx context.Context, req *upload.PresignRequest, profile *config.Profile) ([]upload.UploadSlot, error)
	confirmFunc func(ctx context.Context, req *upload.ConfirmRequest) (*upload.ConfirmResponse, error)
}

func (m *MockUploadService) Presign(ctx context.Context, req *upload.PresignRequest, profile *config.Profile) ([]upload.UploadSlot, error) {
	if m.presignFunc != nil {
		return m.presignFunc(ctx, req, profile)
	}

	slots := make([]upload.UploadSlot, 0, len(req.Filenames))
	for i, name := range req.Filenames {
		slots = append(slots, upload.UploadSlot{
			Filename:  name,
			UploadURL: "https://test.s3.amazonaws.com/bucket/" + name,
			FileUUID:  fmt.Sprintf("uuid-%d", i),
		})
	}
	return slots, nil
}

func (m *MockUploadService) Confirm(ctx context.Context, req *upload.ConfirmRequest) (*upload.ConfirmResponse, error) {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, req)
	}
	return &upload.ConfirmResponse{ConfirmedCount: len(req.FileUUIDs)}, nil
}

func newTestHandler(svc UploadService, uc *config.UploadConfig) *Handler {
	if uc == nil {
		uc = &config.UploadConfig{}
	}
	return NewHandler(testLogger(), svc, uc)
}

func post(t *testing.T, h http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)

	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) upload.ErrorResponse {
	t.Helper()

	var resp upload.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHandler_HandlePresign_Success(t *testing.T) {
	h := newTestHandler(&MockUploadService{}, nil)

	rr := post(t, h.HandlePresign, "/v1/uploads/presign", upload.PresignRequest{
		Filenames:  []string{"a.jpg", "b.jpg"},
		ParentUUID: testParent,
	})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var slots []upload.UploadSlot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &slots))
	require.Len(t, slots, 2)
	assert.Equal(t, "b.jpg", slots[1].Filename)
	assert.Equal(t, "uuid-1", slots[1].FileUUID)
}

func TestHandler_HandlePresign_Profile(t *testing.T) {
	var got *config.Profile
	svc := &MockUploadService{presignFunc: func(_ context.Context, _ *upload.PresignRequest, profile *config.Profile) ([]upload.UploadSlot, error) {
		got = profile
		return []upload.UploadSlot{}, nil
	}}
	uc := &config.UploadConfig{Profiles: map[string]config.Profile{
		"avatar": {MaxFiles: 1, TokenTTLSeconds: 60},
	}}

	rr := post(t, newTestHandler(svc, uc).HandlePresign, "/v1/uploads/presign?profile=avatar", upload.PresignRequest{
		Filenames:  []string{"a.jpg"},
		ParentUUID: testParent,
	})

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.MaxFiles)
	assert.Equal(t, int64(60), got.TokenTTLSeconds)
	assert.Equal(t, config.DefaultProfile().PathTemplate, got.PathTemplate)
}

func TestHandler_HandlePresign_Errors(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"Invalid JSON", "{not json", nil, http.StatusBadRequest, upload.ErrBadRequest},
		{"No filenames", upload.PresignRequest{}, ErrNoFilenames, http.StatusBadRequest, upload.ErrBadRequest},
		{"Invalid parent", upload.PresignRequest{Filenames: []string{"a"}}, ErrInvalidParent, http.StatusBadRequest, upload.ErrBadRequest},
		{"Too many files", upload.PresignRequest{Filenames: []string{"a"}}, fmt.Errorf("%w: 3 > 2", ErrTooManyFiles), http.StatusBadRequest, upload.ErrTooManyEntries},
		{"Commit message too long", upload.PresignRequest{Filenames: []string{"a"}}, ErrCommitMsgTooLong, http.StatusBadRequest, upload.ErrBadRequest},
		{"Storage denied", upload.PresignRequest{Filenames: []string{"a"}}, fmt.Errorf("%w: a: boom", ErrStorageDenied), http.StatusForbidden, upload.ErrStorageDenied},
		{"Internal", upload.PresignRequest{Filenames: []string{"a"}}, errors.New("boom"), http.StatusInternalServerError, upload.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockUploadService{presignFunc: func(context.Context, *upload.PresignRequest, *config.Profile) ([]upload.UploadSlot, error) {
				return nil, tt.err
			}}

			rr := post(t, newTestHandler(svc, nil).HandlePresign, "/v1/uploads/presign", tt.body)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			resp := decodeError(t, rr)
			assert.Equal(t, tt.expectedCode, resp.Code)
			assert.NotContains(t, resp.Message, "boom")
		})
	}
}

func TestHandler_HandleConfirm(t *testing.T) {
	h := newTestHandler(&MockUploadService{}, nil)

	rr := post(t, h.HandleConfirm, "/v1/uploads/confirm", upload.ConfirmRequest{FileUUIDs: []string{"a", "b", "c"}})

	require.Equal(t, http.StatusOK, rr.Code)

	var resp upload.ConfirmResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.ConfirmedCount)
}

func TestHandler_HandleConfirm_Errors(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"Invalid JSON", "[]", nil, http.StatusBadRequest, upload.ErrBadRequest},
		{"No uuids", upload.ConfirmRequest{}, ErrNoFileUUIDs, http.StatusBadRequest, upload.ErrBadRequest},
		{"Unknown files", upload.ConfirmRequest{FileUUIDs: []string{"a"}}, ErrUnknownFiles, http.StatusNotFound, upload.ErrNotFound},
		{"Store failure", upload.ConfirmRequest{FileUUIDs: []string{"a"}}, errors.New("db down"), http.StatusInternalServerError, upload.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockUploadService{confirmFunc: func(context.Context, *upload.ConfirmRequest) (*upload.ConfirmResponse, error) {
				return nil, tt.err
			}}

			rr := post(t, newTestHandler(svc, nil).HandleConfirm, "/v1/uploads/confirm", tt.body)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, tt.expectedCode, decodeError(t, rr).Code)
		})
	}
}
