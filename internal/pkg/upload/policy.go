package upload

import (
	"errors"
	"fmt"

	"github.com/mkoberg/signalmarket/app/models"
)

// ErrValidation marks presign/finalize requests rejected before any side
// effect. Controllers map it to a 4xx response.
var ErrValidation = errors.New("upload: validation failed")

// Policy constrains one upload kind. Constraints are enforced server-side
// regardless of what the client declared.
type Policy struct {
	Kind         string
	AllowedMimes map[string]bool
	MaxSize      int64
}

// Allows reports whether the content type is in the kind's whitelist.
func (p Policy) Allows(contentType string) bool {
	return p.AllowedMimes[contentType]
}

var policies = map[string]Policy{
	models.UploadKindAvatar: {
		Kind: models.UploadKindAvatar,
		AllowedMimes: map[string]bool{
			"image/jpeg": true,
			"image/png":  true,
			"image/webp": true,
			// Note: SVG is intentionally excluded due to XSS risk without sanitization
		},
		MaxSize: 2 << 20, // 2 MiB
	},
	models.UploadKindProductAsset: {
		Kind: models.UploadKindProductAsset,
		AllowedMimes: map[string]bool{
			"image/jpeg":      true,
			"image/png":       true,
			"image/webp":      true,
			"image/gif":       true,
			"application/zip": true,
			"application/pdf": true,
		},
		MaxSize: 100 << 20, // 100 MiB
	},
	models.UploadKindDocument: {
		Kind: models.UploadKindDocument,
		AllowedMimes: map[string]bool{
			"application/pdf": true,
			"text/plain":      true,
			"text/csv":        true,
		},
		MaxSize: 20 << 20, // 20 MiB
	},
	models.UploadKindScript: {
		Kind: models.UploadKindScript,
		AllowedMimes: map[string]bool{
			"text/plain":              true,
			"text/x-python":           true,
			"application/javascript":  true,
			"text/javascript":         true,
			"application/x-sh":        true,
			"text/x-shellscript":      true,
			"application/x-httpd-php": false, // explicitly blocked
		},
		MaxSize: 1 << 20, // 1 MiB
	},
}

// PolicyFor resolves the policy for an upload kind.
func PolicyFor(kind string) (Policy, error) {
	p, ok := policies[kind]
	if !ok {
		return Policy{}, fmt.Errorf("%w: unknown upload kind %q", ErrValidation, kind)
	}
	return p, nil
}
