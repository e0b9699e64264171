package blobstore

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPayloadKeyLayout(t *testing.T) {
	at := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	key := WebhookPayloadKey("paygate", at)

	assert.True(t, len(key) > len("webhooks/paygate/2026/09/"))
	assert.Contains(t, key, "webhooks/paygate/2026/09/")
	assert.Contains(t, key, ".bin")

	// Tail is a fresh UUID, so two keys for the same delivery never collide.
	other := WebhookPayloadKey("paygate", at)
	assert.NotEqual(t, key, other)
}

func TestUploadKeyLayout(t *testing.T) {
	at := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	key := UploadKey("avatar", ".png", at)

	assert.Contains(t, key, "uploads/avatar/2026/01/")
	assert.Contains(t, key, ".png")

	bare := UploadKey("script", "", at)
	assert.Contains(t, bare, "uploads/script/2026/01/")
	id := bare[len("uploads/script/2026/01/"):]
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}

func TestScanReportKeyLayout(t *testing.T) {
	assert.Equal(t, "scan-reports/u-1.json", ScanReportKey("u-1"))
}
