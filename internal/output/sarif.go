package output

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/ctk/internal/analysis"
	"github.com/dshills/ctk/internal/review"
)

// SARIFWriter outputs non-passing checks in SARIF v2.1.0 format, one result
// per location or detail.
type SARIFWriter struct{}

func (s *SARIFWriter) Write(w io.Writer, report *review.Report) error {
	sarif := buildSARIF(report)
	data, err := json.MarshalIndent(sarif, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

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
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	ShortDescription sarifMessage        `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig  `json:"defaultConfiguration"`
	Properties       sarifRuleProperties `json:"properties,omitempty"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifRuleProperties struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

func buildSARIF(report *review.Report) sarifLog {
	rules := []sarifRule{}
	results := []sarifResult{}

	for _, sec := range report.Sections() {
		for _, id := range analysis.CheckIDs(sec.Category) {
			res := sec.Checks[id]
			if res == nil {
				continue
			}
			ruleID := ruleIDFor(sec.Category, id)
			rules = append(rules, sarifRule{
				ID:               ruleID,
				Name:             string(id),
				ShortDescription: sarifMessage{Text: id.Message(0)},
				DefaultConfig:    sarifDefaultConfig{Level: classLevel(id)},
				Properties:       sarifRuleProperties{Tags: []string{string(sec.Category)}},
			})
			if res.Status == analysis.StatusPass {
				continue
			}

			level := statusToLevel(res.Status)
			for _, loc := range res.Locations {
				file, line, text := splitLocation(loc)
				results = append(results, sarifResult{
					RuleID:    ruleID,
					Level:     level,
					Message:   sarifMessage{Text: messageOr(text, res.Message)},
					Locations: physical(file, line),
				})
			}
			for _, d := range res.Details {
				results = append(results, sarifResult{
					RuleID:    ruleID,
					Level:     level,
					Message:   sarifMessage{Text: messageOr(DescribeDetail(d), res.Message)},
					Locations: physical(d.File, d.Line),
				})
			}
		}
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "ctk",
						Version:        report.Version,
						InformationURI: "https://github.com/dshills/ctk",
						Rules:          rules,
					},
				},
				Results: results,
			},
		},
	}
}

var locationRe = regexp.MustCompile(`^(.+?):line (\d+)`)

// splitLocation parses "<file>:line <n>[ - note]" or "<file>:<note>".
func splitLocation(loc string) (file string, line int, text string) {
	if m := locationRe.FindStringSubmatch(loc); m != nil {
		line, _ = strconv.Atoi(m[2])
		return m[1], line, loc
	}
	file, _, _ = strings.Cut(loc, ":")
	return file, 0, loc
}

func physical(file string, line int) []sarifLocation {
	if file == "" {
		return nil
	}
	pl := sarifPhysicalLocation{ArtifactLocation: sarifArtifactLocation{URI: file}}
	if line > 0 {
		pl.Region = &sarifRegion{StartLine: line}
	}
	return []sarifLocation{{PhysicalLocation: pl}}
}

func messageOr(text, fallback string) string {
	if text == "" {
		return fallback
	}
	return fallback + ": " + text
}

func ruleIDFor(c analysis.Category, id analysis.CheckID) string {
	return fmt.Sprintf("ctk/%s/%s", c, id)
}

func classLevel(id analysis.CheckID) string {
	if id.Blocking() {
		return "error"
	}
	return "warning"
}

// statusToLevel maps a check status to a SARIF level.
func statusToLevel(s analysis.Status) string {
	switch s {
	case analysis.StatusFail:
		return "error"
	case analysis.StatusWarning:
		return "warning"
	default:
		return "note"
	}
}
