package internal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Provider identifies the Git hosting service that sent a webhook.
type Provider string

const (
	ProviderGitHub  Provider = "github"
	ProviderGitLab  Provider = "gitlab"
	ProviderUnknown Provider = "unknown"
)

// Commit is one commit carried by a push payload. The file lists keep the
// full set of paths reported by the provider so the analyzers can inspect
// every one of them.
type Commit struct {
	Message   string   `json:"message"`
	Timestamp string   `json:"timestamp,omitempty"`
	Added     []string `json:"added,omitempty"`
	Modified  []string `json:"modified,omitempty"`
	Removed   []string `json:"removed,omitempty"`
}

// CanonicalEvent is the provider-agnostic view of a webhook payload.
// It is built once per request by the normalizer and never mutated after
// construction.
type CanonicalEvent struct {
	Provider   Provider `json:"provider"`
	EventKind  string   `json:"event_kind"`
	Repository string   `json:"repository,omitempty"`
	Actor      string   `json:"actor,omitempty"`
	Ref        string   `json:"ref,omitempty"`
	Forced     bool     `json:"forced,omitempty"`
	Commits    []Commit `json:"commits,omitempty"`
	// RawKeys holds the payload's top-level keys. It is only populated when
	// the provider could not be identified.
	RawKeys []string `json:"raw_keys,omitempty"`
}

// IsPush reports whether the event is a push, regardless of the provider's
// header spelling ("push" for GitHub, "Push Hook" for GitLab).
func (e CanonicalEvent) IsPush() bool {
	kind := strings.ToLower(e.EventKind)
	return kind == "push" || kind == "push hook"
}

// Category classifies a finding.
type Category string

const (
	CategoryKeyword          Category = "keyword"
	CategorySensitiveFile    Category = "sensitive-file"
	CategoryLargeChangeset   Category = "large-changeset"
	CategoryConfigChange     Category = "config-change"
	CategoryBranchProtection Category = "branch-protection"
	CategoryVolumeAnomaly    Category = "volume-anomaly"
	CategoryTimingAnomaly    Category = "timing-anomaly"
)

// Finding is a single detected risk or anomaly signal.
type Finding struct {
	Description string   `json:"description"`
	Category    Category `json:"category"`
}

// Severity is the overall risk level of one analysis pass. It is ordered:
// rules may only raise it, never lower it.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

var severityNames = [...]string{"info", "low", "medium", "high"}

func (s Severity) String() string {
	if s < SeverityInfo || s > SeverityHigh {
		return "info"
	}
	return severityNames[s]
}

// Raise returns the higher of s and min.
func (s Severity) Raise(min Severity) Severity {
	if min > s {
		return min
	}
	return s
}

// Level maps a severity to the log level used in sink labels.
func (s Severity) Level() string {
	switch s {
	case SeverityHigh:
		return "error"
	case SeverityMedium, SeverityLow:
		return "warning"
	default:
		return "info"
	}
}

// MarshalJSON encodes the severity by name so emitted records stay readable
// in the log sink.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts a severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, candidate := range severityNames {
		if candidate == name {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", name)
}

// SecurityVerdict is the outcome of analyzing one webhook request.
type SecurityVerdict struct {
	Event     CanonicalEvent `json:"event"`
	Findings  []Finding      `json:"findings"`
	Severity  Severity       `json:"severity"`
	Anomalies []Finding      `json:"anomalies"`
}
