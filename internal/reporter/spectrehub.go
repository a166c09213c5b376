package reporter

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/ppiankov/siteaudit/internal/audit"
)

// SpectreHubEnvelope is the spectre/v1 cross-tool ingestion format.
type SpectreHubEnvelope struct {
	Schema    string              `json:"schema"`
	Tool      string              `json:"tool"`
	Version   string              `json:"version"`
	Timestamp string              `json:"timestamp"`
	Target    SpectreHubTarget    `json:"target"`
	Findings  []SpectreHubFinding `json:"findings"`
	Summary   SpectreHubSummary   `json:"summary"`
}

// SpectreHubTarget describes the audited system.
type SpectreHubTarget struct {
	Type    string `json:"type"`
	URIHash string `json:"uri_hash"`
}

// SpectreHubFinding is a single finding in the spectre/v1 format.
type SpectreHubFinding struct {
	ID       string         `json:"id"`
	Severity string         `json:"severity"`
	Location string         `json:"location"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SpectreHubSummary counts findings by severity.
type SpectreHubSummary struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Info   int `json:"info"`
}

// HashURI produces a sha256 hash of the URI with credentials stripped.
func HashURI(rawURI string) string {
	u, err := url.Parse(rawURI)
	if err != nil {
		h := sha256.Sum256([]byte(rawURI))
		return fmt.Sprintf("sha256:%x", h)
	}
	u.User = nil
	safe := u.String()
	h := sha256.Sum256([]byte(safe))
	return fmt.Sprintf("sha256:%x", h)
}

var scoreToSeverity = map[audit.Score]string{
	audit.ScoreFail: "high",
	audit.ScoreWarn: "medium",
}

func writeSpectreHub(w io.Writer, agg *audit.Aggregate, meta Metadata) error {
	envelope := SpectreHubEnvelope{
		Schema:    "spectre/v1",
		Tool:      "site-audit",
		Version:   meta.Version,
		Timestamp: time.Unix(agg.Time, 0).UTC().Format(time.RFC3339),
		Target: SpectreHubTarget{
			Type:    "drupal",
			URIHash: HashURI(meta.Target),
		},
		Findings: []SpectreHubFinding{},
	}

	for _, r := range agg.Reports {
		for _, c := range r.Checks {
			sev, ok := scoreToSeverity[c.Score]
			if !ok {
				continue
			}
			f := SpectreHubFinding{
				ID:       c.Key,
				Severity: sev,
				Location: r.Key,
				Message:  c.Result,
				Metadata: map[string]any{"label": c.Label, "percent": r.Percent},
			}
			if c.Action != nil && *c.Action != "" {
				f.Metadata["action"] = *c.Action
			}
			envelope.Findings = append(envelope.Findings, f)

			envelope.Summary.Total++
			switch sev {
			case "high":
				envelope.Summary.High++
			case "medium":
				envelope.Summary.Medium++
			}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope)
}
