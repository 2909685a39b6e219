package rag

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// Answer is the parsed model output.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`

	// Unsourced is set when the output had no SOURCE label. The text is
	// still the whole output; the caller decides whether to accept it.
	Unsourced bool `json:"unsourced,omitempty"`

	// Declined is set when the answer is the model saying it does not
	// know. A declined answer never carries sources; it is still
	// Unsourced when the output had no label.
	Declined bool `json:"declined,omitempty"`
}

// String renders the answer the way the model was asked to write it.
func (a Answer) String() string {
	if len(a.Sources) == 0 {
		return a.Text
	}
	return a.Text + "\nSOURCES: " + strings.Join(a.Sources, ", ")
}

var (
	sourceLabel = regexp.MustCompile(`(?i)\bSOURCES?\s*:`)
	answerLabel = regexp.MustCompile(`(?i)^\s*FINAL ANSWER\s*:`)
	sourceSplit = regexp.MustCompile(`[,\s]+`)
	blankLine   = regexp.MustCompile(`\n\s*\n`)

	// declinePhrase matches an answer that opens by saying it does not know.
	declinePhrase = regexp.MustCompile(`(?i)^(i\s+)?(don't|don’t|dont|do not)\s+know\b`)
)

// Extract parses raw model output into an Answer.
//
// The output is split at the last SOURCE: (or SOURCES:) label. The text
// before it, without a leading FINAL ANSWER: prefix, is the answer; the
// comma or whitespace separated tokens after it are the sources, in
// order and without duplicates. Only absolute URLs count as sources, and
// the source list ends at the first blank line.
func Extract(raw string) Answer {
	body, sources, found := splitSources(raw)

	ans := Answer{
		Text:      strings.TrimSpace(answerLabel.ReplaceAllString(body, "")),
		Sources:   sources,
		Unsourced: !found,
	}
	if declinePhrase.MatchString(ans.Text) {
		ans.Declined = true
		ans.Sources = nil
	}
	return ans
}

func splitSources(raw string) (body string, sources []string, found bool) {
	locs := sourceLabel.FindAllStringIndex(raw, -1)
	if len(locs) == 0 {
		return raw, nil, false
	}
	last := locs[len(locs)-1]

	tail := raw[last[1]:]
	if loc := blankLine.FindStringIndex(tail); loc != nil {
		tail = tail[:loc[0]]
	}
	for _, tok := range sourceSplit.Split(tail, -1) {
		tok = strings.Trim(tok, `.;"'()[]<>`)
		if !isLocator(tok) || slices.Contains(sources, tok) {
			continue
		}
		sources = append(sources, tok)
	}
	return raw[:last[0]], sources, true
}

func isLocator(tok string) bool {
	u, err := url.Parse(tok)
	return err == nil && u.Scheme != "" && u.Host != ""
}
