package webhook

import "encoding/json"

// WebhookProcessPayload is the queue payload referencing a ledger row.
type WebhookProcessPayload struct {
	EventID uint `json:"event_id"`
}

// ToMap converts the payload to a map for storage
func (p WebhookProcessPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"event_id": p.EventID,
	}
}

// WebhookProcessPayloadFromMap creates a payload from a map
func WebhookProcessPayloadFromMap(data map[string]interface{}) (*WebhookProcessPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload WebhookProcessPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}
