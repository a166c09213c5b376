package reporter

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/siteaudit/internal/audit"
)

// SARIF 2.1.0 types, the subset needed for valid output.

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	ShortDescription sarifMessage      `json:"shortDescription"`
	Help             *sarifMessage     `json:"help,omitempty"`
	DefaultConfig    sarifRuleDefaults `json:"defaultConfiguration"`
}

type sarifRuleDefaults struct {
	Level string `json:"level"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifLocation struct {
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifLogicalLocation struct {
	Name               string `json:"name"`
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind"`
}

// Only failing and warning checks become SARIF results.
var scoreToLevel = map[audit.Score]string{
	audit.ScoreFail: "error",
	audit.ScoreWarn: "warning",
}

func writeSARIF(w io.Writer, agg *audit.Aggregate, meta Metadata) error {
	rules := make([]sarifRule, 0)
	results := make([]sarifResult, 0)
	seen := make(map[string]bool)

	for _, r := range agg.Reports {
		for _, c := range r.Checks {
			level, ok := scoreToLevel[c.Score]
			if !ok {
				continue
			}
			ruleID := "site-audit/" + c.Key
			if !seen[ruleID] {
				seen[ruleID] = true
				rule := sarifRule{
					ID:               ruleID,
					Name:             c.Key,
					ShortDescription: sarifMessage{Text: c.Description},
					DefaultConfig:    sarifRuleDefaults{Level: "warning"},
				}
				if c.Action != nil && *c.Action != "" {
					rule.Help = &sarifMessage{Text: *c.Action}
				}
				rules = append(rules, rule)
			}

			msg := c.Label
			if c.Result != "" {
				msg += ": " + c.Result
			}
			results = append(results, sarifResult{
				RuleID:  ruleID,
				Level:   level,
				Message: sarifMessage{Text: msg},
				Locations: []sarifLocation{{
					LogicalLocations: []sarifLogicalLocation{{
						Name:               r.Label,
						FullyQualifiedName: r.Key + "/" + c.Key,
						Kind:               "module",
					}},
				}},
			})
		}
	}

	log := sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "site-audit",
						Version:        meta.Version,
						InformationURI: "https://github.com/ppiankov/siteaudit",
						Rules:          rules,
					},
				},
				Results: results,
			},
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(log); err != nil {
		return errors.Wrap(err, "encode SARIF")
	}
	return nil
}
