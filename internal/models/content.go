package models

import "time"

// ModerationStatus tracks the human decision on a content item.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// PublishStatus tracks where an item is in the publish pipeline.
type PublishStatus string

const (
	PublishNone             PublishStatus = "none"
	PublishQueued           PublishStatus = "queued"
	PublishPending          PublishStatus = "pending"
	PublishVariantSelection PublishStatus = "variant_selection"
	PublishImageGeneration  PublishStatus = "image_generation"
	PublishContentRewrite   PublishStatus = "content_rewrite"
	PublishSocialPosting    PublishStatus = "social_posting"
	PublishCompleted        PublishStatus = "completed"
	PublishFailed           PublishStatus = "failed"
)

// InFlightStatuses are the publish states of an actively running pipeline.
// Queued items are waiting for admission and terminal items are done, so
// neither counts against the single-flight limit.
var InFlightStatuses = []PublishStatus{
	PublishPending,
	PublishVariantSelection,
	PublishImageGeneration,
	PublishContentRewrite,
	PublishSocialPosting,
}

// InFlight reports whether the status belongs to an actively running pipeline.
func (s PublishStatus) InFlight() bool {
	for _, v := range InFlightStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further stage transitions are expected.
func (s PublishStatus) Terminal() bool {
	return s == PublishCompleted || s == PublishFailed
}

// allowedPredecessors maps each publish status to the statuses an item may
// hold immediately before entering it. Status only ever moves forward along
// the stage order; the exceptions are failed (reachable from any non-terminal
// state) and queued (a failed item may be explicitly re-triggered).
var allowedPredecessors = map[PublishStatus][]PublishStatus{
	PublishQueued:           {PublishNone, PublishFailed},
	PublishPending:          {PublishQueued},
	PublishVariantSelection: {PublishPending},
	PublishImageGeneration:  {PublishVariantSelection},
	PublishContentRewrite:   {PublishImageGeneration},
	PublishSocialPosting:    {PublishContentRewrite},
	PublishCompleted:        {PublishSocialPosting},
}

// AllowedPredecessors returns the publish statuses an item must currently
// hold for a transition into to to be legal.
func AllowedPredecessors(to PublishStatus) []PublishStatus {
	return allowedPredecessors[to]
}

// CanTransition reports whether the publish status may move from from to to.
func CanTransition(from, to PublishStatus) bool {
	if to == PublishFailed {
		return !from.Terminal()
	}
	for _, p := range allowedPredecessors[to] {
		if p == from {
			return true
		}
	}
	return false
}

// Language is an ISO 639-1 target language code.
type Language string

const (
	LangEN Language = "en"
	LangDE Language = "de"
	LangFR Language = "fr"
	LangES Language = "es"
)

// DefaultLanguages is the fixed language set items may target.
var DefaultLanguages = []Language{LangEN, LangDE, LangFR, LangES}

// KnownLanguage reports whether lang is part of the configured language set.
func KnownLanguage(lang Language) bool {
	for _, l := range DefaultLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// Platform identifies a downstream social network.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformX        Platform = "x"
)

// Translation is the rewritten copy for one target language.
type Translation struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Slug  string `json:"slug"`
}

// ChatRef points at the moderation chat message used for progress
// reporting. The referenced message may have been deleted since.
type ChatRef struct {
	ChatID    int64
	MessageID int64
}

// Valid reports whether the reference points at a real message.
func (r ChatRef) Valid() bool {
	return r.ChatID != 0 && r.MessageID != 0
}

// ContentItem is the unit of content moving through moderation and publishing.
type ContentItem struct {
	ID                string
	SourceRef         string
	Title             string
	Body              string
	MediaURL          string
	MediaType         string
	ModerationStatus  ModerationStatus
	PublishStatus     PublishStatus
	PublishError      string
	Languages         []Language
	SelectedVariant   string
	BuilderSelections map[string]string
	Translations      map[Language]Translation
	Images            map[string]string // aspect ratio -> artifact URL
	Chat              ChatRef
	EnqueuedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasMedia reports whether the item arrived with usable media from ingestion.
func (c *ContentItem) HasMedia() bool {
	return c.MediaURL != ""
}

// SocialPostStatus is the lifecycle state of one post attempt.
type SocialPostStatus string

const (
	SocialPostPending SocialPostStatus = "pending"
	SocialPostPosted  SocialPostStatus = "posted"
	SocialPostFailed  SocialPostStatus = "failed"
)

// SocialPost is one post attempt for a (content, platform, language) target.
type SocialPost struct {
	ID              string
	ContentID       string
	Platform        Platform
	Language        Language
	Status          SocialPostStatus
	PlatformPostID  string
	PlatformPostURL string
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
