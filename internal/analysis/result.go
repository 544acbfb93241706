package analysis

import "strconv"

// Detail is a structured evidence record for detail-based checks.
type Detail struct {
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	Function   string `json:"function,omitempty" yaml:"function,omitempty"`
	Line       int    `json:"line,omitempty" yaml:"line,omitempty"`
	Complexity int    `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	Lines      int    `json:"lines,omitempty" yaml:"lines,omitempty"`
	Errors     int    `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings   int    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Rule       string `json:"rule,omitempty" yaml:"rule,omitempty"`
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Finding is a single match produced by a rule.
type Finding struct {
	File   string
	Line   int    // 1-based; zero for file-level findings
	Note   string // rendered as "line n - note"
	Aside  string // rendered as "line n (aside)"
	Detail *Detail
}

// Descriptor renders the part of a location after the file path.
func (f Finding) Descriptor() string {
	if f.Line <= 0 {
		return f.Note
	}
	s := "line " + strconv.Itoa(f.Line)
	if f.Aside != "" {
		s += " (" + f.Aside + ")"
	}
	if f.Note != "" {
		s += " - " + f.Note
	}
	return s
}

// Location renders "<file>:<descriptor>".
func (f Finding) Location() string {
	d := f.Descriptor()
	if d == "" {
		return f.File
	}
	return f.File + ":" + d
}

// CheckResult is the aggregated outcome of one check across all files.
type CheckResult struct {
	Status     Status   `json:"status" yaml:"status"`
	IssueCount int      `json:"issue_count" yaml:"issue_count"`
	Locations  []string `json:"locations,omitempty" yaml:"locations,omitempty"`
	Details    []Detail `json:"details,omitempty" yaml:"details,omitempty"`
	Message    string   `json:"message" yaml:"message"`
	Fixable    bool     `json:"fixable" yaml:"fixable"`
}

// Report maps every check of one category to its result.
type Report map[CheckID]*CheckResult

func newReport(c Category) Report {
	r := make(Report, len(checkOrder[c]))
	for _, id := range checkOrder[c] {
		r[id] = &CheckResult{Status: StatusPass, Fixable: id.Fixable()}
	}
	return r
}

// add folds findings for one check into the running totals. File paths are
// taken from the finding when set, otherwise from file.
func (r Report) add(id CheckID, file string, findings []Finding) {
	res, ok := r[id]
	if !ok {
		return
	}
	for _, f := range findings {
		if f.File == "" {
			f.File = file
		}
		if id.Detailed() {
			d := Detail{Line: f.Line, Message: f.Note}
			if f.Detail != nil {
				d = *f.Detail
			}
			if d.File == "" {
				d.File = f.File
			}
			res.Details = append(res.Details, d)
		} else {
			res.Locations = append(res.Locations, f.Location())
		}
		res.IssueCount++
	}
}

func (r Report) finalize() {
	for id, res := range r {
		res.Status = id.Status(res.IssueCount)
		res.Message = id.Message(res.IssueCount)
	}
}

// Issues returns the total issue count across all checks.
func (r Report) Issues() int {
	n := 0
	for _, res := range r {
		n += res.IssueCount
	}
	return n
}
