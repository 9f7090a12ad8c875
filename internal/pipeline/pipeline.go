package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"newsdesk/internal/ledger"
	"newsdesk/internal/models"
	"newsdesk/internal/rewrite"
	"newsdesk/internal/social"
	"newsdesk/internal/store"
	"newsdesk/pkg/logging"
	"newsdesk/pkg/monitoring"
)

// DefaultVariant is used when the moderator never picked a style.
const DefaultVariant = "standard"

const defaultPostTimeout = 90 * time.Second

// Rewriter produces publishable copy for one language.
type Rewriter interface {
	Rewrite(ctx context.Context, req rewrite.Request) (models.Translation, error)
}

// ImageGenerator renders promotional images for an item.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (map[string]string, error)
}

// Outcome is the overall result of one pipeline run.
type Outcome string

const (
	OutcomeCompleted         Outcome = "completed"
	OutcomeFailed            Outcome = "failed"
	OutcomeAlreadyCompleted  Outcome = "already_completed"
	OutcomeAlreadyInProgress Outcome = "already_in_progress"
)

// PostOutcome is the result for one (platform, language) posting target.
type PostOutcome struct {
	Platform models.Platform
	Language models.Language
	Posted   bool
	Skipped  bool
	URL      string
	Error    string
}

// Report is what the moderation chat ultimately sees: the run outcome plus
// anything worth telling the moderator about.
type Report struct {
	ContentID string
	Outcome   Outcome
	Error     string
	Notes     []string
	Posts     []PostOutcome
}

// Metrics tracks pipeline activity per stage and per posting target.
type Metrics struct {
	StageRuns     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	PostAttempts  *prometheus.CounterVec
}

func NewMetrics(mc *monitoring.MetricsCollector) *Metrics {
	return &Metrics{
		StageRuns:     mc.NewCounter("pipeline_stage_runs_total", "Pipeline stage executions", []string{"stage", "status"}),
		StageDuration: mc.NewHistogram("pipeline_stage_duration_seconds", "Pipeline stage duration", []string{"stage"}, nil),
		PostAttempts:  mc.NewCounter("pipeline_post_attempts_total", "Social post attempts", []string{"platform", "status"}),
	}
}

func (m *Metrics) stageRun(stage models.PublishStatus, started time.Time, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	if m.StageRuns != nil {
		m.StageRuns.WithLabelValues(string(stage), status).Inc()
	}
	if m.StageDuration != nil {
		m.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(started).Seconds())
	}
}

func (m *Metrics) postAttempt(platform models.Platform, status string) {
	if m == nil || m.PostAttempts == nil {
		return
	}
	m.PostAttempts.WithLabelValues(string(platform), status).Inc()
}

type Config struct {
	Store       store.ContentStore
	Ledger      ledger.Ledger
	Rewriter    Rewriter
	Images      ImageGenerator
	Publishers  *social.Registry
	Logger      logging.Logger
	Metrics     *Metrics
	PostTimeout time.Duration
}

// Orchestrator runs an admitted item through variant selection, image
// generation, content rewrite and social posting. Each stage advance is a
// conditional store update, so a second runner racing on the same item loses
// at the first transition instead of double-publishing.
type Orchestrator struct {
	store       store.ContentStore
	ledger      ledger.Ledger
	rewriter    Rewriter
	images      ImageGenerator
	publishers  *social.Registry
	logger      logging.Logger
	metrics     *Metrics
	postTimeout time.Duration
}

func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.PostTimeout == 0 {
		cfg.PostTimeout = defaultPostTimeout
	}
	return &Orchestrator{
		store:       cfg.Store,
		ledger:      cfg.Ledger,
		rewriter:    cfg.Rewriter,
		images:      cfg.Images,
		publishers:  cfg.Publishers,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		postTimeout: cfg.PostTimeout,
	}
}

// Run executes the full pipeline for one item. It never panics past its
// caller and always returns a report; a failed run is a report, not an
// error.
func (o *Orchestrator) Run(ctx context.Context, contentID string) Report {
	report := Report{ContentID: contentID}

	item, err := o.store.Get(ctx, contentID)
	if err != nil {
		report.Outcome = OutcomeFailed
		report.Error = err.Error()
		return report
	}

	// Entry guard: repeated triggers on the same item must be no-ops with a
	// clear answer, not duplicate runs.
	switch {
	case item.PublishStatus == models.PublishCompleted:
		report.Outcome = OutcomeAlreadyCompleted
		return report
	case item.PublishStatus.InFlight() && item.PublishStatus != models.PublishPending:
		report.Outcome = OutcomeAlreadyInProgress
		return report
	case item.PublishStatus != models.PublishPending:
		report.Outcome = OutcomeFailed
		report.Error = fmt.Sprintf("item is %s, not admitted for publishing", item.PublishStatus)
		return report
	}

	log := o.logger.WithField("content_id", contentID)

	item = o.runVariantSelection(ctx, item, &report)
	item = o.runImageGeneration(ctx, item, &report)

	item, fatalErr := o.runContentRewrite(ctx, item, &report)
	if fatalErr != nil {
		log.WithError(fatalErr).Error("Publish pipeline failed")
		o.fail(ctx, contentID, fatalErr, &report)
		return report
	}

	if err := o.runSocialPosting(ctx, item, &report); err != nil {
		log.WithError(err).Error("Publish pipeline failed")
		o.fail(ctx, contentID, err, &report)
		return report
	}

	if err := o.store.AdvancePublishStatus(ctx, contentID, models.PublishCompleted); err != nil {
		o.fail(ctx, contentID, fmt.Errorf("finalize item: %w", err), &report)
		return report
	}

	report.Outcome = OutcomeCompleted
	log.Info("Publish pipeline completed")
	return report
}

func (o *Orchestrator) fail(ctx context.Context, contentID string, cause error, report *Report) {
	report.Outcome = OutcomeFailed
	report.Error = cause.Error()

	if err := o.store.MarkPublishFailed(ctx, contentID, cause.Error()); err != nil {
		o.logger.WithError(err).WithField("content_id", contentID).
			Error("Failed to record publish failure")
	}
}

// runVariantSelection fills in a style variant when the moderator never
// picked one. Failure here is cosmetic: the default variant carries the run.
func (o *Orchestrator) runVariantSelection(ctx context.Context, item models.ContentItem, report *Report) models.ContentItem {
	started := time.Now()
	err := o.store.AdvancePublishStatus(ctx, item.ID, models.PublishVariantSelection)
	o.metrics.stageRun(models.PublishVariantSelection, started, err == nil)
	if err != nil {
		report.Notes = append(report.Notes, "variant selection skipped: "+err.Error())
		return item
	}
	item.PublishStatus = models.PublishVariantSelection

	if item.SelectedVariant != "" {
		return item
	}
	variant := item.BuilderSelections["variant"]
	if variant == "" {
		variant = DefaultVariant
	}
	if err := o.store.SetSelectedVariant(ctx, item.ID, variant); err != nil {
		report.Notes = append(report.Notes, "variant selection failed, using default: "+err.Error())
	}
	item.SelectedVariant = variant
	return item
}

// runImageGeneration renders promotional images. Best effort: the item
// publishes without images if the service is down.
func (o *Orchestrator) runImageGeneration(ctx context.Context, item models.ContentItem, report *Report) models.ContentItem {
	if err := o.store.AdvancePublishStatus(ctx, item.ID, models.PublishImageGeneration); err != nil {
		report.Notes = append(report.Notes, "image generation skipped: "+err.Error())
		return item
	}
	item.PublishStatus = models.PublishImageGeneration

	if len(item.Images) > 0 {
		return item
	}

	started := time.Now()
	images, err := o.images.Generate(ctx, item.Title)
	o.metrics.stageRun(models.PublishImageGeneration, started, err == nil)
	if err != nil {
		report.Notes = append(report.Notes, "image generation failed: "+err.Error())
		return item
	}
	if len(images) == 0 {
		report.Notes = append(report.Notes, "image generation produced no usable renditions")
		return item
	}

	if err := o.store.SaveImages(ctx, item.ID, images); err != nil {
		report.Notes = append(report.Notes, "saving images failed: "+err.Error())
		return item
	}
	item.Images = images
	return item
}

// runContentRewrite produces the copy for every target language. This stage
// is fatal on failure: there is nothing to post without rewritten text.
func (o *Orchestrator) runContentRewrite(ctx context.Context, item models.ContentItem, report *Report) (models.ContentItem, error) {
	if err := o.store.AdvancePublishStatus(ctx, item.ID, models.PublishContentRewrite); err != nil {
		return item, fmt.Errorf("enter content rewrite: %w", err)
	}
	item.PublishStatus = models.PublishContentRewrite

	languages := item.Languages
	if len(languages) == 0 {
		languages = models.DefaultLanguages
	}

	for _, lang := range languages {
		if _, done := item.Translations[lang]; done {
			continue
		}

		started := time.Now()
		tr, err := o.rewriter.Rewrite(ctx, rewrite.Request{
			Title:      item.Title,
			Body:       item.Body,
			Language:   lang,
			Variant:    item.SelectedVariant,
			Selections: item.BuilderSelections,
		})
		o.metrics.stageRun(models.PublishContentRewrite, started, err == nil)
		if err != nil {
			return item, fmt.Errorf("rewrite for %s: %w", lang, err)
		}

		if err := o.store.SaveTranslation(ctx, item.ID, lang, tr); err != nil {
			return item, fmt.Errorf("save %s translation: %w", lang, err)
		}
		if item.Translations == nil {
			item.Translations = make(map[models.Language]models.Translation)
		}
		item.Translations[lang] = tr
	}
	return item, nil
}

// runSocialPosting fans the item out to every (platform, language) target.
// Each target is claimed through the ledger first, so a duplicate run posts
// nothing twice. Individual target failures are reported, not fatal.
func (o *Orchestrator) runSocialPosting(ctx context.Context, item models.ContentItem, report *Report) error {
	if err := o.store.AdvancePublishStatus(ctx, item.ID, models.PublishSocialPosting); err != nil {
		return fmt.Errorf("enter social posting: %w", err)
	}

	languages := item.Languages
	if len(languages) == 0 {
		languages = models.DefaultLanguages
	}

	for _, platform := range o.publishers.Platforms() {
		for _, lang := range languages {
			report.Posts = append(report.Posts, o.postOne(ctx, item, platform, lang))
		}
	}
	return nil
}

func (o *Orchestrator) postOne(ctx context.Context, item models.ContentItem, platform models.Platform, lang models.Language) PostOutcome {
	outcome := PostOutcome{Platform: platform, Language: lang}

	claim, err := o.ledger.Claim(ctx, item.ID, platform, lang)
	if err != nil {
		outcome.Error = err.Error()
		o.metrics.postAttempt(platform, "error")
		return outcome
	}
	if !claim.Claimed {
		outcome.Skipped = true
		outcome.URL = claim.Existing.URL
		if claim.Existing.State == models.SocialPostPosted {
			outcome.Posted = true
		}
		o.metrics.postAttempt(platform, "skipped")
		return outcome
	}

	publisher, err := o.publishers.Get(platform)
	if err != nil {
		outcome.Error = err.Error()
		o.resolve(ctx, item.ID, platform, lang, ledger.Outcome{Error: err.Error()})
		o.metrics.postAttempt(platform, "error")
		return outcome
	}

	tr, ok := item.Translations[lang]
	if !ok {
		outcome.Error = fmt.Sprintf("no %s translation available", lang)
		o.resolve(ctx, item.ID, platform, lang, ledger.Outcome{Error: outcome.Error})
		o.metrics.postAttempt(platform, "error")
		return outcome
	}

	postCtx, cancel := context.WithTimeout(ctx, o.postTimeout)
	defer cancel()

	result, err := publisher.Publish(postCtx, social.PostRequest{
		ContentID: item.ID,
		Language:  lang,
		Title:     tr.Title,
		Body:      tr.Body,
		Slug:      tr.Slug,
		ImageURL:  bestImage(item.Images),
	})
	if err != nil {
		outcome.Error = err.Error()
		o.resolve(ctx, item.ID, platform, lang, ledger.Outcome{Error: err.Error()})
		o.metrics.postAttempt(platform, "error")
		return outcome
	}

	o.resolve(ctx, item.ID, platform, lang, ledger.Outcome{
		Success: true,
		PostID:  result.PostID,
		PostURL: result.URL,
	})
	outcome.Posted = true
	outcome.URL = result.URL
	o.metrics.postAttempt(platform, "posted")
	return outcome
}

func (o *Orchestrator) resolve(ctx context.Context, contentID string, platform models.Platform, lang models.Language, out ledger.Outcome) {
	if err := o.ledger.Resolve(ctx, contentID, platform, lang, out); err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"content_id": contentID,
			"platform":   string(platform),
			"language":   string(lang),
		}).Error("Failed to resolve post claim")
	}
}

// bestImage picks the wide rendition when available, falling back to any.
func bestImage(images map[string]string) string {
	if url, ok := images["16:9"]; ok {
		return url
	}
	for _, url := range images {
		return url
	}
	return ""
}
