package webhook

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/env"
	"github.com/mkoberg/signalmarket/internal/pkg/quarantine"
)

// AV scanner header names.
const (
	avscanSignatureHeader = "X-Avscan-Signature"
	avscanEventIDHeader   = "X-Avscan-Event-Id"
)

// AVScanProvider adapts the external AV service's asynchronous verdicts.
// Verdicts locate uploads by content hash and run through the quarantine
// state machine, so a late "malicious" always overrides an earlier
// approval while an earlier quarantine stays sticky. Signature scheme:
// Ed25519 over the raw body, base64-encoded.
type AVScanProvider struct {
	publicKey ed25519.PublicKey
	uploads   repository.UploadRepository
	verdicts  *quarantine.Applier
}

// NewAVScanProvider creates the AV verdict adapter.
func NewAVScanProvider(publicKey ed25519.PublicKey, uploads repository.UploadRepository, verdicts *quarantine.Applier) *AVScanProvider {
	return &AVScanProvider{publicKey: publicKey, uploads: uploads, verdicts: verdicts}
}

// NewAVScanProviderFromEnv reads the hex-encoded public key from AVSCAN_PUBLIC_KEY.
func NewAVScanProviderFromEnv(uploads repository.UploadRepository, verdicts *quarantine.Applier) (*AVScanProvider, error) {
	raw := env.GetEnv("AVSCAN_PUBLIC_KEY", "")
	if raw == "" {
		return nil, errors.New("AVSCAN_PUBLIC_KEY is required")
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("AVSCAN_PUBLIC_KEY must be hex: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("AVSCAN_PUBLIC_KEY must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}
	return NewAVScanProvider(ed25519.PublicKey(key), uploads, verdicts), nil
}

func (p *AVScanProvider) Name() string { return "avscan" }

func (p *AVScanProvider) RequiredHeaders() []string {
	return []string{avscanSignatureHeader, avscanEventIDHeader}
}

func (p *AVScanProvider) EventID(h Headers) string {
	return h.Get(avscanEventIDHeader)
}

// Nonce is empty: avscan has no nonce scheme, so the event ID doubles as
// the replay key at the gate.
func (p *AVScanProvider) Nonce(h Headers) string { return "" }

func (p *AVScanProvider) VerifySignature(body []byte, h Headers) bool {
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(h.Get(avscanSignatureHeader)))
	if err != nil || len(p.publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(p.publicKey, body, sig)
}

// AVScanEvent is the parsed AV verdict.
type AVScanEvent struct {
	SHA256  string `json:"sha256"`
	Verdict string `json:"verdict"`
	Engine  string `json:"engine"`
	Detail  string `json:"detail"`
}

func (e *AVScanEvent) Kind() string { return "av_verdict" }

func (p *AVScanProvider) Parse(body []byte) (Event, error) {
	var evt AVScanEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("invalid avscan payload: %w", err)
	}
	evt.SHA256 = strings.ToLower(strings.TrimSpace(evt.SHA256))
	if len(evt.SHA256) != 64 {
		return nil, errors.New("avscan payload missing content hash")
	}
	switch strings.ToLower(evt.Verdict) {
	case "clean", "suspicious", "malicious":
	default:
		return nil, fmt.Errorf("unknown avscan verdict %q", evt.Verdict)
	}
	return &evt, nil
}

func (p *AVScanProvider) Handle(ctx context.Context, evt Event) error {
	_ = ctx
	verdict, ok := evt.(*AVScanEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", evt)
	}

	upload, err := p.uploads.FindUploadBySHA256(verdict.SHA256)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Verdicts can refer to content we never finished finalizing.
			log.Warnf("[AVScan] Verdict for unknown content hash %s, ignoring", verdict.SHA256)
			return nil
		}
		return err
	}

	reason := fmt.Sprintf("external AV (%s): %s", verdict.Engine, verdict.Verdict)
	if verdict.Detail != "" {
		reason += " - " + verdict.Detail
	}
	_, err = p.verdicts.Apply(upload.ID, quarantine.SourceExternalAV, quarantine.Verdict(strings.ToLower(verdict.Verdict)), reason)
	return err
}
