package upload

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkoberg/signalmarket/app/models"
	"github.com/mkoberg/signalmarket/internal/pkg/security"
)

const testSecret = "presign-test-secret"

func newPresignFixture() (*PresignService, *fakeUploads, *fakeBlobs) {
	uploads := newFakeUploads()
	blobs := newFakeBlobs()
	return NewPresignService(uploads, blobs, testSecret), uploads, blobs
}

func TestPresignHappyPath(t *testing.T) {
	svc, uploads, blobs := newPresignFixture()

	resp, err := svc.Presign(context.Background(), PresignRequest{
		Kind:        models.UploadKindAvatar,
		FileName:    "me.png",
		ContentType: "image/png",
		Size:        1024,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.IntentUUID)
	assert.True(t, strings.HasPrefix(resp.UploadURL, "https://storage.test/"))
	assert.True(t, strings.HasSuffix(resp.StorageKey, ".png"))
	assert.True(t, resp.ExpiresAt.After(time.Now()))
	assert.Equal(t, 1, blobs.presigns)

	// The finalize token binds intent and storage key.
	claims, err := security.VerifyFinalizeToken(resp.FinalizeToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, resp.IntentUUID, claims.IntentUUID)
	assert.Equal(t, resp.StorageKey, claims.StorageKey)

	intent, err := uploads.FindIntentByUUID(resp.IntentUUID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusPendingUpload, intent.Status)
	assert.Equal(t, "image/png", intent.DeclaredType)
	assert.EqualValues(t, 1024, intent.DeclaredSize)
}

func TestPresignRejectsDisallowedType(t *testing.T) {
	svc, uploads, blobs := newPresignFixture()

	_, err := svc.Presign(context.Background(), PresignRequest{
		Kind:        models.UploadKindAvatar,
		FileName:    "shell.php",
		ContentType: "application/x-httpd-php",
		Size:        100,
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, uploads.intents)
	assert.Zero(t, blobs.presigns)
}

func TestPresignRejectsOversize(t *testing.T) {
	svc, _, _ := newPresignFixture()

	_, err := svc.Presign(context.Background(), PresignRequest{
		Kind:        models.UploadKindAvatar,
		FileName:    "huge.png",
		ContentType: "image/png",
		Size:        (2 << 20) + 1,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPresignRejectsUnknownKind(t *testing.T) {
	svc, _, _ := newPresignFixture()

	_, err := svc.Presign(context.Background(), PresignRequest{
		Kind:        "backdoor",
		FileName:    "x.bin",
		ContentType: "application/zip",
		Size:        100,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPresignRejectsMissingFields(t *testing.T) {
	svc, _, _ := newPresignFixture()

	_, err := svc.Presign(context.Background(), PresignRequest{Kind: models.UploadKindAvatar})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSanitizedExt(t *testing.T) {
	assert.Equal(t, ".png", sanitizedExt("photo.PNG"))
	assert.Equal(t, ".zip", sanitizedExt("dir/archive.zip"))
	assert.Equal(t, "", sanitizedExt("noext"))
	assert.Equal(t, "", sanitizedExt("weird.extension-way-too-long"))
}
