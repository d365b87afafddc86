package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/consorcioops/boleto-batch/internal/browser"
	"github.com/consorcioops/boleto-batch/internal/classify"
	"github.com/consorcioops/boleto-batch/internal/config"
	"github.com/consorcioops/boleto-batch/internal/fetch"
	"github.com/consorcioops/boleto-batch/internal/filelink"
	"github.com/consorcioops/boleto-batch/internal/models"
	"github.com/consorcioops/boleto-batch/internal/sink"
	"github.com/consorcioops/boleto-batch/internal/state"
	"github.com/consorcioops/boleto-batch/internal/submit"
)

// ErrTooManyLoginFailures aborts a run after the configured number of
// consecutive authentication failures. The checkpoint stays pending at the
// failing record so the next run retries it.
var ErrTooManyLoginFailures = errors.New("orchestrator: consecutive login failure limit reached")

// Orchestrator drives the sequential per-record pipeline: skip check,
// authenticate, locate the quota, fetch each selected document, classify and
// persist. Records are isolated: one record's failure never aborts the run,
// with the single exception of the login-failure circuit breaker.
type Orchestrator struct {
	cfg        config.ProcessingConfig
	sessions   browser.Factory
	classifier *classify.Classifier
	tracker    *state.Tracker
	checkpoint *state.Checkpoint
	skipCache  *state.SkipCache
	store      sink.ArtifactStore
	notifier   sink.Notifier
	auditLog   sink.AuditLog
	links      *filelink.Service
	policy     SelectionPolicy
	logger     *logrus.Logger

	// Injection points for tests
	posterFor func(cookies []*http.Cookie) fetch.Poster
	sleep     func(d time.Duration)
	now       func() time.Time
}

// Dependencies wires the orchestrator's collaborators. Store, Notifier,
// AuditLog, SkipCache and Links are optional; the corresponding step is
// skipped when nil.
type Dependencies struct {
	Config     config.ProcessingConfig
	Sessions   browser.Factory
	Classifier *classify.Classifier
	Tracker    *state.Tracker
	Checkpoint *state.Checkpoint
	SkipCache  *state.SkipCache
	Store      sink.ArtifactStore
	Notifier   sink.Notifier
	AuditLog   sink.AuditLog
	Links      *filelink.Service
	Policy     SelectionPolicy
	Logger     *logrus.Logger
}

// New creates a new orchestrator
func New(deps Dependencies) *Orchestrator {
	policy := deps.Policy
	if policy == nil {
		policy = EligibilityPolicy{}
	}
	return &Orchestrator{
		cfg:        deps.Config,
		sessions:   deps.Sessions,
		classifier: deps.Classifier,
		tracker:    deps.Tracker,
		checkpoint: deps.Checkpoint,
		skipCache:  deps.SkipCache,
		store:      deps.Store,
		notifier:   deps.Notifier,
		auditLog:   deps.AuditLog,
		links:      deps.Links,
		policy:     policy,
		logger:     deps.Logger,
		posterFor: func(cookies []*http.Cookie) fetch.Poster {
			return fetch.NewSessionPoster(cookies)
		},
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// RunOptions adjusts a single run
type RunOptions struct {
	// IgnoreResume processes the given records from the top even when a
	// checkpoint exists.
	IgnoreResume bool

	// DryRun walks the skip and resume logic without opening any session
	DryRun bool
}

// Run processes the given records sequentially and returns the run report.
// The records slice is expected in source order; resume markers refer to it.
func (o *Orchestrator) Run(ctx context.Context, records []models.Record, opts RunOptions) (*models.RunReport, error) {
	report := &models.RunReport{
		RunID:     newRunID(),
		Timestamp: o.now().Format(time.RFC3339),
	}

	records = o.applyResume(records, opts.IgnoreResume)
	records = o.filterProcessed(ctx, records)

	if opts.DryRun {
		o.logger.WithField("records", len(records)).Info("Dry run: records that would be processed")
		report.Summary.TotalRecords = len(records)
		return report, nil
	}

	consecutiveLoginFailures := 0
	batchSize := o.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(records)
	}

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			o.finishReport(report)
			o.writeReport(report)
			return report, err
		}

		if i > 0 {
			if i%batchSize == 0 {
				o.logger.WithField("batch", i/batchSize).Info("Batch boundary reached, pausing")
				o.sleep(o.cfg.BatchDelay)
			} else {
				o.sleep(o.cfg.RecordDelay)
			}
		}

		o.logger.WithFields(logrus.Fields{
			"grupo":    record.GroupID,
			"cota":     record.QuotaID,
			"position": fmt.Sprintf("%d/%d", i+1, len(records)),
		}).Info("Processing record")

		if o.checkpoint != nil {
			o.checkpoint.MarkPending(record.GroupID, record.QuotaID)
		}

		result := o.processRecord(ctx, record)
		report.Results = append(report.Results, result)

		if result.Status == models.StatusLoginFailed {
			consecutiveLoginFailures++
			o.logger.WithFields(logrus.Fields{
				"grupo":       record.GroupID,
				"cota":        record.QuotaID,
				"consecutive": consecutiveLoginFailures,
				"abort_at":    o.cfg.LoginFailureLimit,
			}).Warn("Login failed")

			if o.cfg.LoginFailureLimit > 0 && consecutiveLoginFailures >= o.cfg.LoginFailureLimit {
				o.logger.Error("Aborting run: portal authentication is persistently failing")
				o.finishReport(report)
				o.writeReport(report)
				return report, ErrTooManyLoginFailures
			}
			// Pending marker stays set so the next run resumes at this record.
			continue
		}
		consecutiveLoginFailures = 0

		o.recordOutcome(ctx, record, result)
	}

	if o.checkpoint != nil {
		o.checkpoint.Clear()
	}
	o.finishReport(report)
	o.writeReport(report)
	return report, nil
}

// applyResume slices the record list according to the persisted checkpoint.
// A pending marker resumes AT that record (it was interrupted mid-flight); a
// last-processed marker resumes AFTER it.
func (o *Orchestrator) applyResume(records []models.Record, ignore bool) []models.Record {
	if ignore || !o.cfg.ResumeEnabled || o.checkpoint == nil {
		return records
	}

	st := o.checkpoint.Load()
	if st.Pending != nil {
		for i, r := range records {
			if st.Pending.Matches(r.GroupID, r.QuotaID) {
				o.logger.WithFields(logrus.Fields{
					"grupo":   st.Pending.Group,
					"cota":    st.Pending.Quota,
					"skipped": i,
				}).Info("Resuming at interrupted record")
				return records[i:]
			}
		}
		o.logger.WithFields(logrus.Fields{
			"grupo": st.Pending.Group,
			"cota":  st.Pending.Quota,
		}).Warn("Pending record not found in input, processing from the top")
		return records
	}

	if st.LastProcessed != nil {
		for i, r := range records {
			if st.LastProcessed.Matches(r.GroupID, r.QuotaID) {
				o.logger.WithFields(logrus.Fields{
					"grupo":   st.LastProcessed.Group,
					"cota":    st.LastProcessed.Quota,
					"skipped": i + 1,
				}).Info("Resuming after last processed record")
				return records[i+1:]
			}
		}
	}
	return records
}

// filterProcessed drops records already completed in prior runs
func (o *Orchestrator) filterProcessed(ctx context.Context, records []models.Record) []models.Record {
	if !o.cfg.SkipProcessed || o.tracker == nil {
		return records
	}

	kept := records[:0:0]
	skipped := 0
	for _, r := range records {
		if o.tracker.IsProcessed(r.GroupID, r.QuotaID) {
			skipped++
			continue
		}
		if o.skipCache != nil && o.skipCache.Seen(ctx, r.Key()) {
			skipped++
			continue
		}
		kept = append(kept, r)
	}
	if skipped > 0 {
		o.logger.WithFields(logrus.Fields{
			"skipped":   skipped,
			"remaining": len(kept),
		}).Info("Skipped previously processed records")
	}
	return kept
}

// processRecord runs the full pipeline for one record. Every exit path
// produces a result; errors are captured, never propagated.
func (o *Orchestrator) processRecord(ctx context.Context, record models.Record) models.RecordResult {
	result := models.RecordResult{
		Group:           record.GroupID,
		Quota:           record.QuotaID,
		Name:            record.Name,
		Status:          models.StatusError,
		DownloadedFiles: []string{},
		Timestamp:       o.now().Format(time.RFC3339),
	}

	if !record.Actionable() {
		result.Error = "record is missing group or quota"
		return result
	}

	session, err := o.sessions.NewSession(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("session start: %v", err)
		return result
	}
	defer session.Close()

	if err := session.Login(ctx); err != nil {
		result.Status = models.StatusLoginFailed
		result.Error = err.Error()
		return result
	}

	search, err := session.SearchQuota(ctx, record.GroupID, record.QuotaID)
	if err != nil {
		result.Status = models.StatusSearchFailed
		result.Error = err.Error()
		return result
	}
	if len(search.PageText) < o.cfg.MinListingSize {
		result.Status = models.StatusSearchFailed
		result.Error = fmt.Sprintf("search result page too small (%d bytes)", len(search.PageText))
		return result
	}
	result.TaxID = search.TaxID
	result.Eligibility = o.classifier.ClassifyEligibility(search.PageText)

	dueDate := o.now().AddDate(0, 0, o.cfg.DueDateOffsetDays).Format("02/01/2006")
	listing, err := session.OpenListing(ctx, dueDate)
	if err != nil {
		result.Error = fmt.Sprintf("open document listing: %v", err)
		return result
	}
	if len(listing.TriggerAttributes) == 0 {
		result.Status = models.StatusNoDownloads
		return result
	}

	cookies, err := session.Cookies(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("export session cookies: %v", err)
		return result
	}
	fetcher := fetch.New(o.posterFor(cookies), o.logger)

	triggers := o.policy.Select(result.Eligibility, listing.TriggerAttributes)
	o.logger.WithFields(logrus.Fields{
		"grupo":    record.GroupID,
		"cota":     record.QuotaID,
		"status":   result.Eligibility,
		"listed":   len(listing.TriggerAttributes),
		"selected": len(triggers),
	}).Info("Documents selected")

	for i, attr := range triggers {
		filePath, artifactID, ok := o.processDocument(ctx, fetcher, record, search.TaxID, listing, attr, i)
		if !ok {
			continue
		}
		result.DownloadedFiles = append(result.DownloadedFiles, filePath)
		if artifactID != "" {
			result.ArtifactIDs = append(result.ArtifactIDs, artifactID)
		}
	}

	result.DownloadedCount = len(result.DownloadedFiles)
	if result.DownloadedCount > 0 {
		result.Status = models.StatusSuccess
	} else {
		result.Status = models.StatusNoDownloads
	}
	return result
}

// processDocument fetches, validates and persists one document. Returns the
// saved file path and artifact ID, or ok=false when the document was skipped.
func (o *Orchestrator) processDocument(ctx context.Context, fetcher *fetch.Fetcher, record models.Record, taxID string, listing *browser.ListingPage, attr string, index int) (string, string, bool) {
	log := o.logger.WithFields(logrus.Fields{
		"grupo": record.GroupID,
		"cota":  record.QuotaID,
		"index": index,
	})

	args, err := submit.Parse(attr)
	if err != nil {
		log.WithError(err).Warn("Skipping document: trigger attribute did not parse")
		return "", "", false
	}

	payload := submit.BuildFormPayload(args, listing.HiddenFields)
	fetched, err := fetcher.FetchDocument(ctx, listing.ActionURL, payload)
	if err != nil {
		log.WithError(err).Warn("Skipping document: fetch failed")
		return "", "", false
	}

	class := o.classifier.ClassifyDocument(fetched.Body, o.cfg.MinDocumentSize)
	if class != models.DocumentValid {
		log.WithFields(logrus.Fields{
			"class": class,
			"bytes": len(fetched.Body),
		}).Warn("Skipping document: response failed validation")
		return "", "", false
	}

	fileName := o.buildFileName(record, taxID, index)
	filePath := filepath.Join(o.cfg.DownloadsDir, fileName)
	if err := os.MkdirAll(o.cfg.DownloadsDir, 0o755); err != nil {
		log.WithError(err).Error("Failed to create downloads directory")
		return "", "", false
	}
	if err := os.WriteFile(filePath, fetched.Body, 0o644); err != nil {
		log.WithError(err).Error("Failed to save document")
		return "", "", false
	}
	log.WithFields(logrus.Fields{
		"file":  filePath,
		"bytes": len(fetched.Body),
	}).Info("Document saved")

	artifactID := ""
	if o.store != nil {
		artifactID, err = o.store.Upload(ctx, fileName, fetched.Body, args.ReferenceDate(o.now()))
		if err != nil {
			log.WithError(err).Error("Artifact upload failed")
			artifactID = ""
		}
	}

	fileURL := ""
	if o.links != nil {
		fileURL, err = o.links.SignedURL(filePath, o.now())
		if err != nil {
			log.WithError(err).Warn("Could not build signed file link")
		}
	}

	notified := "SKIPPED"
	if o.notifier != nil && record.Phone != "" {
		if o.notifier.Notify(ctx, sink.Notification{
			Phone:      record.Phone,
			Name:       record.Name,
			Group:      record.GroupID,
			Quota:      record.QuotaID,
			FileName:   fileName,
			FileURL:    fileURL,
			ArtifactID: artifactID,
		}) {
			notified = "OK"
		} else {
			notified = "FAIL"
		}
	}

	if o.auditLog != nil {
		storage := "SKIPPED"
		if artifactID != "" {
			storage = "OK"
		}
		row := []string{
			o.now().Format(time.RFC3339),
			record.GroupID,
			record.QuotaID,
			record.Name,
			record.Phone,
			filePath,
			artifactID,
			storage,
			notified,
			fileURL,
		}
		if err := o.auditLog.AppendRow(row); err != nil {
			log.WithError(err).Error("Audit log append failed")
		}
	}

	return filePath, artifactID, true
}

// recordOutcome persists durable per-record state after a non-login-failure
// outcome.
func (o *Orchestrator) recordOutcome(ctx context.Context, record models.Record, result models.RecordResult) {
	if o.tracker != nil && (result.Status == models.StatusSuccess || result.Status == models.StatusNoDownloads) {
		o.tracker.MarkProcessed(record.GroupID, record.QuotaID, models.ProcessedEntry{
			Status:          result.Status,
			TaxID:           result.TaxID,
			DownloadedFiles: result.DownloadedFiles,
			ArtifactIDs:     result.ArtifactIDs,
		})
		if o.skipCache != nil {
			o.skipCache.MarkSeen(ctx, record.Key())
		}
	}
	if o.checkpoint != nil {
		o.checkpoint.MarkCompleted(record.GroupID, record.QuotaID)
	}
}

func (o *Orchestrator) finishReport(report *models.RunReport) {
	s := &report.Summary
	s.TotalRecords = len(report.Results)
	for _, r := range report.Results {
		switch r.Status {
		case models.StatusSuccess:
			s.Successful++
		case models.StatusNoDownloads:
			s.NoDownloads++
		default:
			s.Failed++
		}
		s.TotalDownloads += r.DownloadedCount
	}
	if s.TotalRecords > 0 {
		s.SuccessRate = float64(s.Successful) / float64(s.TotalRecords) * 100
	}
}

var fileNameScrubber = regexp.MustCompile(`[^A-Za-z0-9-]+`)

// buildFileName derives the on-disk name from the record identity:
// name-group-quota-taxid-timestamp-index.pdf with unsafe characters scrubbed.
func (o *Orchestrator) buildFileName(record models.Record, taxID string, index int) string {
	name := fileNameScrubber.ReplaceAllString(strings.TrimSpace(record.Name), "-")
	name = strings.Trim(name, "-")
	if len(name) > 20 {
		name = name[:20]
	}
	if name == "" {
		name = "cliente"
	}
	if taxID == "" {
		taxID = "na"
	}
	stamp := o.now().Format("20060102_150405")
	return fmt.Sprintf("%s-%s-%s-%s-%s-%d.pdf", name, record.GroupID, record.QuotaID, taxID, stamp, index+1)
}

func (o *Orchestrator) writeReport(report *models.RunReport) {
	if o.cfg.ReportsDir == "" {
		return
	}
	path := filepath.Join(o.cfg.ReportsDir, "run-"+report.RunID+".json")
	if err := state.WriteReport(path, report); err != nil {
		o.logger.WithError(err).WithField("path", path).Error("Failed to write run report")
		return
	}
	o.logger.WithField("path", path).Info("Run report written")
}

func newRunID() string {
	return uuid.NewString()
}
