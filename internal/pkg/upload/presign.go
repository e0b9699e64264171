package upload

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/mkoberg/signalmarket/app/models"
	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/blobstore"
	"github.com/mkoberg/signalmarket/internal/pkg/env"
	"github.com/mkoberg/signalmarket/internal/pkg/security"
)

// DefaultPresignTTL is how long an issued write credential stays valid.
const DefaultPresignTTL = 600 * time.Second

// PresignRequest is the client's declaration; everything in it is untrusted
// and re-checked server-side.
type PresignRequest struct {
	Kind        string `json:"kind" validate:"required"`
	FileName    string `json:"file_name" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required,max=128"`
	Size        int64  `json:"size" validate:"required,gt=0"`
}

// PresignResponse carries the scoped write credential back to the client.
// No bytes have moved yet.
type PresignResponse struct {
	IntentUUID    string    `json:"intent_uuid"`
	UploadURL     string    `json:"upload_url"`
	StorageKey    string    `json:"storage_key"`
	FinalizeToken string    `json:"finalize_token"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// PresignService issues time-boxed, size/type-constrained write credentials
// and records the intent before any bytes arrive.
type PresignService struct {
	uploads  repository.UploadRepository
	blobs    blobstore.Store
	validate *validator.Validate
	ttl      time.Duration
	secret   string
}

// NewPresignService wires the presign service. The token secret signs
// finalize tokens; TTL comes from UPLOAD_PRESIGN_TTL_S when set.
func NewPresignService(uploads repository.UploadRepository, blobs blobstore.Store, secret string) *PresignService {
	ttl := DefaultPresignTTL
	if v, err := strconv.Atoi(env.GetEnv("UPLOAD_PRESIGN_TTL_S", "")); err == nil && v > 0 {
		ttl = time.Duration(v) * time.Second
	}
	return &PresignService{
		uploads:  uploads,
		blobs:    blobs,
		validate: validator.New(),
		ttl:      ttl,
		secret:   secret,
	}
}

// Presign validates the request against the kind's policy, records the
// intent and returns the credential.
func (s *PresignService) Presign(ctx context.Context, req PresignRequest) (*PresignResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	policy, err := PolicyFor(req.Kind)
	if err != nil {
		return nil, err
	}
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	if !policy.Allows(contentType) {
		return nil, fmt.Errorf("%w: content type %q not allowed for kind %q", ErrValidation, contentType, req.Kind)
	}
	if req.Size > policy.MaxSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d for kind %q", ErrValidation, req.Size, policy.MaxSize, req.Kind)
	}

	now := time.Now()
	storageKey := blobstore.UploadKey(req.Kind, sanitizedExt(req.FileName), now)
	intent := &models.UploadIntent{
		UUID:           uuid.New().String(),
		Kind:           req.Kind,
		OriginalName:   req.FileName,
		DeclaredType:   contentType,
		DeclaredSize:   req.Size,
		StorageKey:     storageKey,
		PresignExpires: now.Add(s.ttl),
		Status:         models.IntentStatusPendingUpload,
	}
	if err := s.uploads.CreateIntent(intent); err != nil {
		return nil, fmt.Errorf("failed to create upload intent: %w", err)
	}

	uploadURL, err := s.blobs.PresignPut(ctx, storageKey, contentType, req.Size, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	token, err := security.GenerateFinalizeToken(intent.UUID, storageKey, policy.MaxSize, s.ttl, s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign finalize token: %w", err)
	}

	log.Infof("[Upload] Issued presign for intent %s (kind %s, %d bytes)", intent.UUID, req.Kind, req.Size)
	return &PresignResponse{
		IntentUUID:    intent.UUID,
		UploadURL:     uploadURL,
		StorageKey:    storageKey,
		FinalizeToken: token,
		ExpiresAt:     intent.PresignExpires,
	}, nil
}

// sanitizedExt keeps only a plausible file extension from the client name.
func sanitizedExt(fileName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(fileName)))
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}
