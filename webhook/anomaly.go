package webhook

import (
	"fmt"
	"time"

	"sechooks/internal"
)

const (
	volumeThreshold = 20
	businessStart   = 6
	businessEnd     = 22
)

// DetectAnomalies flags unusual commit behavior in a canonical event. Its
// findings are informational and never influence the risk severity.
func DetectAnomalies(ev internal.CanonicalEvent) []internal.Finding {
	var anomalies []internal.Finding

	if len(ev.Commits) > volumeThreshold {
		anomalies = append(anomalies, internal.Finding{
			Description: fmt.Sprintf("Unusually large number of commits: %d", len(ev.Commits)),
			Category:    internal.CategoryVolumeAnomaly,
		})
	}

	for _, commit := range ev.Commits {
		if commit.Timestamp == "" {
			continue
		}
		when, err := time.Parse(time.RFC3339, commit.Timestamp)
		if err != nil {
			// Unparseable timestamps are skipped, not reported.
			continue
		}
		hour := when.Hour()
		if hour < businessStart || hour > businessEnd {
			anomalies = append(anomalies, internal.Finding{
				Description: fmt.Sprintf("Commit outside business hours: %s", commit.Timestamp),
				Category:    internal.CategoryTimingAnomaly,
			})
		}
	}

	return anomalies
}
