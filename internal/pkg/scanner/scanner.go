package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/mkoberg/signalmarket/app/models"
	"github.com/mkoberg/signalmarket/app/repository"
	"github.com/mkoberg/signalmarket/internal/pkg/blobstore"
	"github.com/mkoberg/signalmarket/internal/pkg/quarantine"
	"github.com/mkoberg/signalmarket/internal/pkg/upload"
)

// Finding is a single issue an inspector raised against the content.
type Finding struct {
	Rule    string `json:"rule"`
	Detail  string `json:"detail"`
	Verdict string `json:"verdict"`
}

// Inspector examines content of a type class it claims via Handles and
// reports findings. An empty findings slice means the content looked clean
// to this inspector.
type Inspector interface {
	Name() string
	Handles(detectedMime string) bool
	Inspect(data []byte) []Finding
}

// Report is the persisted scan report, written next to the content so an
// operator reviewing a quarantined upload can see exactly what tripped.
type Report struct {
	UploadUUID   string    `json:"upload_uuid"`
	DeclaredMime string    `json:"declared_mime"`
	DetectedMime string    `json:"detected_mime"`
	Verdict      string    `json:"verdict"`
	Reason       string    `json:"reason"`
	Findings     []Finding `json:"findings"`
	ScannedAt    time.Time `json:"scanned_at"`
}

// Worker runs the deep content scan on finalized uploads. It re-reads the
// bytes from storage, establishes the authoritative MIME type, runs the
// registered inspectors and applies the resulting verdict through the
// quarantine state machine.
type Worker struct {
	uploads    repository.UploadRepository
	blobs      blobstore.Store
	verdicts   *quarantine.Applier
	inspectors []Inspector
}

// NewWorker wires the scan worker with the default inspector set.
func NewWorker(uploads repository.UploadRepository, blobs blobstore.Store, verdicts *quarantine.Applier) *Worker {
	return &Worker{
		uploads:  uploads,
		blobs:    blobs,
		verdicts: verdicts,
		inspectors: []Inspector{
			NewArchiveInspector(),
			NewScriptInspector(),
		},
	}
}

// Scan processes one upload end to end. Transient failures (storage reads,
// database writes) return an error so the job queue retries; a missing or
// already-settled upload is a no-op.
func (w *Worker) Scan(ctx context.Context, uploadID uint) error {
	up, err := w.uploads.FindUploadByID(uploadID)
	if err != nil {
		return fmt.Errorf("failed to load upload %d: %w", uploadID, err)
	}
	if up.Status != models.UploadStatusPendingScan {
		log.Infof("[Scanner] Upload %d already settled (%s), skipping", uploadID, up.Status)
		return nil
	}

	intent, err := w.uploads.FindIntentByID(up.IntentID)
	if err != nil {
		return fmt.Errorf("failed to load intent %d for upload %d: %w", up.IntentID, uploadID, err)
	}

	data, err := w.blobs.Get(ctx, up.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to fetch %s for scan: %w", up.StorageKey, err)
	}

	report := w.inspect(data, intent.DeclaredType)
	report.UploadUUID = up.UUID
	report.ScannedAt = time.Now()

	reportKey := blobstore.ScanReportKey(up.UUID)
	if err := w.storeReport(ctx, reportKey, report); err != nil {
		// The verdict matters more than the report; log and carry on.
		log.Errorf("[Scanner] Failed to store scan report for upload %d: %v", uploadID, err)
		reportKey = ""
	}

	if err := w.uploads.SetScanResult(uploadID, report.DetectedMime, reportKey); err != nil {
		return fmt.Errorf("failed to record scan result for upload %d: %w", uploadID, err)
	}

	verdict := quarantine.Verdict(report.Verdict)
	if _, err := w.verdicts.Apply(uploadID, quarantine.SourceScanWorker, verdict, report.Reason); err != nil {
		return err
	}

	log.Infof("[Scanner] Upload %d scanned: %s (%s)", uploadID, report.Verdict, report.DetectedMime)
	return nil
}

// inspect runs the pure part of the scan over the bytes.
func (w *Worker) inspect(data []byte, declaredMime string) Report {
	report := Report{
		DeclaredMime: declaredMime,
		DetectedMime: upload.DetectMime(data),
		Verdict:      string(quarantine.VerdictClean),
	}

	if !upload.MimeMatchesDeclared(data, declaredMime) {
		report.Verdict = string(quarantine.VerdictMalicious)
		report.Reason = fmt.Sprintf("MIME type mismatch: declared %s, detected %s", declaredMime, report.DetectedMime)
		report.Findings = append(report.Findings, Finding{
			Rule:    "mime-mismatch",
			Detail:  report.Reason,
			Verdict: report.Verdict,
		})
		return report
	}

	for _, ins := range w.inspectors {
		if !ins.Handles(report.DetectedMime) {
			continue
		}
		findings := ins.Inspect(data)
		report.Findings = append(report.Findings, findings...)
	}

	verdict, reason := worstOf(report.Findings)
	report.Verdict = string(verdict)
	report.Reason = reason
	return report
}

// worstOf collapses findings into a single verdict, malicious winning over
// suspicious winning over clean.
func worstOf(findings []Finding) (quarantine.Verdict, string) {
	verdict := quarantine.VerdictClean
	reasons := make([]string, 0, len(findings))
	for _, f := range findings {
		reasons = append(reasons, f.Detail)
		switch f.Verdict {
		case string(quarantine.VerdictMalicious):
			verdict = quarantine.VerdictMalicious
		case string(quarantine.VerdictSuspicious):
			if verdict != quarantine.VerdictMalicious {
				verdict = quarantine.VerdictSuspicious
			}
		}
	}
	return verdict, strings.Join(reasons, "; ")
}

func (w *Worker) storeReport(ctx context.Context, key string, report Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return w.blobs.Put(ctx, key, body, "application/json")
}
