package presign

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"uploadflow/internal/config"
	"uploadflow/internal/response"
	"uploadflow/internal/upload"
)

// UploadService is what the handlers need from Service.
type UploadService interface {
	Presign(ctx context.Context, req *upload.PresignRequest, profile *config.Profile) ([]upload.UploadSlot, error)
	Confirm(ctx context.Context, req *upload.ConfirmRequest) (*upload.ConfirmResponse, error)
}

type Handler struct {
	log           logrus.FieldLogger
	uploadService UploadService
	uploadConfig  *config.UploadConfig
}

func NewHandler(log logrus.FieldLogger, uploadService UploadService, uploadConfig *config.UploadConfig) *Handler {
	return &Handler{
		log:           log.WithField("component", "presign_handler"),
		uploadService: uploadService,
		uploadConfig:  uploadConfig,
	}
}

// HandlePresign handles POST /v1/uploads/presign
func (h *Handler) HandlePresign(w http.ResponseWriter, r *http.Request) {
	var req upload.PresignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, upload.ErrBadRequest, "Invalid request body", "")
		return
	}

	profile := h.uploadConfig.GetProfile(r.URL.Query().Get("profile"))

	slots, err := h.uploadService.Presign(r.Context(), &req, profile)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoFilenames), errors.Is(err, ErrInvalidParent), errors.Is(err, ErrCommitMsgTooLong):
			response.Error(w, http.StatusBadRequest, upload.ErrBadRequest, err.Error(), "")
		case errors.Is(err, ErrTooManyFiles):
			response.Error(w, http.StatusBadRequest, upload.ErrTooManyEntries, err.Error(),
				"Split the batch or raise max_files in the upload configuration")
		case errors.Is(err, ErrStorageDenied):
			h.log.WithError(err).Warn("Object store refused to sign uploads")
			response.Error(w, http.StatusForbidden, upload.ErrStorageDenied, "Upload destination is not writable",
				"Check the bucket and credentials of the upload API")
		default:
			h.log.WithError(err).Error("Failed to presign uploads")
			response.Error(w, http.StatusInternalServerError, upload.ErrInternal, "Failed to generate presigned uploads", "")
		}
		return
	}

	response.JSON(w, http.StatusOK, slots)
}

// HandleConfirm handles POST /v1/uploads/confirm
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req upload.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, upload.ErrBadRequest, "Invalid request body", "")
		return
	}

	resp, err := h.uploadService.Confirm(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoFileUUIDs):
			response.Error(w, http.StatusBadRequest, upload.ErrBadRequest, err.Error(), "")
			return
		case errors.Is(err, ErrUnknownFiles):
			response.Error(w, http.StatusNotFound, upload.ErrNotFound, err.Error(),
				"Request upload slots before confirming them")
			return
		}
		h.log.WithError(err).Error("Failed to confirm uploads")
		response.Error(w, http.StatusInternalServerError, upload.ErrInternal, "Failed to confirm uploads", "")
		return
	}

	response.JSON(w, http.StatusOK, resp)
}
