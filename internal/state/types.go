package state

import (
	"errors"
	"fmt"
	"strings"
)

// Schedule reasons.
const (
	ReasonManual    = "manual"
	ReasonThrottled = "throttled"
)

// PostedRecord statuses. Once a record leaves StatusLive it never returns.
const (
	StatusLive    = "live"
	StatusRemoved = "removed"
	StatusExpired = "expired"
	StatusUnknown = "unknown"
)

// Target content kinds.
const (
	KindSelf = "self"
	KindLink = "link"
)

var (
	ErrMissingKey     = errors.New("record has no key")
	ErrTenantNotFound = errors.New("tenant not found")
)

type TenantDefaults struct {
	Title         string `json:"title,omitempty"`
	PermanentLink string `json:"permanent_link,omitempty"`
	Body          string `json:"body,omitempty"`
}

// Tenant is a registered community on whose behalf content is published.
//
// LastPublishAt is epoch milliseconds; zero means "never published". It is
// advanced only by a real session that produced at least one success.
type Tenant struct {
	Key           string         `json:"key"`
	LegacyID      string         `json:"id,omitempty"`
	DisplayName   string         `json:"display_name,omitempty"`
	LastPublishAt int64          `json:"last_publish_at"`
	Defaults      TenantDefaults `json:"defaults"`
}

func (t *Tenant) normalize() error {
	t.Key = strings.TrimSpace(t.Key)
	if t.Key == "" {
		t.Key = strings.TrimSpace(t.LegacyID)
	}
	t.LegacyID = ""
	if t.Key == "" {
		return fmt.Errorf("tenant: %w", ErrMissingKey)
	}
	if t.LastPublishAt < 0 {
		t.LastPublishAt = 0
	}
	return nil
}

type TargetRules struct {
	CadenceDays          float64 `json:"cadence_days,omitempty"`
	RequirePermanentLink bool    `json:"require_permanent_link,omitempty"`
}

type TargetContent struct {
	Kind      string `json:"kind"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body,omitempty"`
	URL       string `json:"url,omitempty"`
	FlairID   string `json:"flair_id,omitempty"`
	FlairText string `json:"flair_text,omitempty"`
}

// Target is one external destination (a subreddit) configured under a tenant.
// The scheduler treats targets as read-only; configuration tooling owns writes.
type Target struct {
	Key      string        `json:"key"`
	LegacyID string        `json:"id,omitempty"`
	Rules    TargetRules   `json:"rules"`
	Content  TargetContent `json:"content"`
}

func (t *Target) normalize(tenantKey string) error {
	t.Key = strings.TrimSpace(t.Key)
	if t.Key == "" {
		t.Key = strings.TrimSpace(t.LegacyID)
	}
	t.LegacyID = ""
	if t.Key == "" {
		return fmt.Errorf("target of tenant %q: %w", tenantKey, ErrMissingKey)
	}
	return nil
}

// Schedule is a durable deferred request to re-run a tenant's publishing
// session at or after WhenMs. All times are epoch milliseconds.
type Schedule struct {
	ID            string `json:"id"`
	TenantKey     string `json:"tenant_key"`
	WhenMs        int64  `json:"when_ms"`
	Reason        string `json:"reason"`
	AttemptCount  int    `json:"attempt_count"`
	LastAttemptMs int64  `json:"last_attempt_ms,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	CreatedMs     int64  `json:"created_ms"`
}

func (s *Schedule) normalize() error {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		return fmt.Errorf("schedule: %w", ErrMissingKey)
	}
	if s.Reason != ReasonThrottled {
		s.Reason = ReasonManual
	}
	if s.AttemptCount < 0 {
		s.AttemptCount = 0
	}
	return nil
}

type Removal struct {
	Category  string `json:"category"`
	CheckedAt int64  `json:"checked_at"` // epoch seconds
}

// PostedRecord is the audit entry for one successfully published item.
// Records are never deleted; Status only moves forward from "live".
type PostedRecord struct {
	ID        string   `json:"id"`
	TargetKey string   `json:"target_key"`
	TenantKey string   `json:"tenant_key"`
	Permalink string   `json:"permalink,omitempty"`
	CreatedAt int64    `json:"created_at"` // epoch seconds
	Status    string   `json:"status"`
	Removal   *Removal `json:"removal,omitempty"`
}

func (p *PostedRecord) normalize() {
	switch p.Status {
	case StatusLive, StatusRemoved, StatusExpired, StatusUnknown:
	default:
		p.Status = StatusLive
	}
}
