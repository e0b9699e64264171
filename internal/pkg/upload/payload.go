package upload

import (
	"encoding/json"
	"time"
)

// Job type tag shared with the queue wiring.
const JobTypeScan = "upload_scan"

// Scheduler is the async hand-off the finalizer uses; the redis job queue
// satisfies it.
type Scheduler interface {
	Enqueue(jobType string, payload map[string]interface{}) error
	EnqueueDelayed(jobType string, payload map[string]interface{}, delay time.Duration) error
}

// UploadScanPayload is the queue payload referencing an upload row.
type UploadScanPayload struct {
	UploadID uint `json:"upload_id"`
}

// ToMap converts the payload to a map for storage
func (p UploadScanPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"upload_id": p.UploadID,
	}
}

// UploadScanPayloadFromMap creates a payload from a map
func UploadScanPayloadFromMap(data map[string]interface{}) (*UploadScanPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload UploadScanPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}
