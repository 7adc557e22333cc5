package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

type PageType string

const (
	PageList    PageType = "list"
	PageArticle PageType = "article"
)

// Link is one markdown link found on a page.
type Link struct {
	Text string
	Href string
}

// PageClassification is the oracle's verdict on a fetched page. OK is false
// when the call failed or returned something undecodable.
type PageClassification struct {
	OK       bool
	PageType PageType
	Links    []string
	Reason   string
}

// ArticleExtraction holds the structured fields of one article. Optional
// fields the model omitted stay at their zero value; PublishDate is nil when
// no date was given.
type ArticleExtraction struct {
	OK                bool     `json:"ok"`
	Title             string   `json:"title"`
	TitleZH           string   `json:"title_zh"`
	PublishDate       *string  `json:"publish_date"`
	Author            string   `json:"author"`
	ContentType       string   `json:"content_type"`
	Keywords          []string `json:"keywords"`
	Summary           string   `json:"summary"`
	RiskHint          string   `json:"risk_hint"`
	MainContent       string   `json:"main_content"`
	TranslatedContent string   `json:"translated_content"`
	Confidence        float64  `json:"confidence"`
}

type RiskFinding struct {
	RiskCategory string  `json:"risk_category"`
	RiskLevel    string  `json:"risk_level"`
	ClauseID     string  `json:"clause_id"`
	ClauseText   string  `json:"clause_text"`
	RiskReason   string  `json:"risk_reason"`
	Explanation  string  `json:"explanation"`
	Confidence   float64 `json:"confidence"`
}

type ContractAnalysis struct {
	OK               bool
	Risks            []RiskFinding
	OverallRiskLevel string
	Summary          string
}

type Relevance struct {
	ValueLevel string
	Reason     string
}

// Wire shapes. Models are loose with types, so every scalar goes through a
// flex decoder.

type classificationWire struct {
	PageType flexString  `json:"page_type"`
	Links    flexStrings `json:"links"`
	Reason   flexString  `json:"reason"`
}

type articleWire struct {
	Title             flexString  `json:"title"`
	TitleZH           flexString  `json:"title_zh"`
	PublishDate       flexString  `json:"publish_date"`
	Author            flexString  `json:"author"`
	ContentType       flexString  `json:"content_type"`
	Keywords          flexStrings `json:"keywords"`
	Summary           flexString  `json:"summary"`
	RiskHint          flexString  `json:"risk_hint"`
	MainContent       flexString  `json:"main_content"`
	TranslatedContent flexString  `json:"translated_content"`
	Confidence        flexFloat   `json:"confidence"`
}

func (w articleWire) toExtraction() ArticleExtraction {
	a := ArticleExtraction{
		OK:                true,
		Title:             string(w.Title),
		TitleZH:           string(w.TitleZH),
		Author:            string(w.Author),
		ContentType:       string(w.ContentType),
		Keywords:          []string(w.Keywords),
		Summary:           string(w.Summary),
		RiskHint:          string(w.RiskHint),
		MainContent:       string(w.MainContent),
		TranslatedContent: string(w.TranslatedContent),
		Confidence:        float64(w.Confidence),
	}
	if d := strings.TrimSpace(string(w.PublishDate)); d != "" && !strings.EqualFold(d, "null") {
		a.PublishDate = &d
	}
	return a
}

type riskWire struct {
	RiskCategory flexString `json:"risk_category"`
	RiskLevel    flexString `json:"risk_level"`
	ClauseID     flexString `json:"clause_id"`
	ClauseText   flexString `json:"clause_text"`
	RiskReason   flexString `json:"risk_reason"`
	Explanation  flexString `json:"explanation"`
	Confidence   flexFloat  `json:"confidence"`
}

type contractWire struct {
	Risks            []riskWire `json:"risks"`
	OverallRiskLevel flexString `json:"overall_risk_level"`
	Summary          flexString `json:"summary"`
}

type relevanceWire struct {
	ValueLevel flexString `json:"value_level"`
	Reason     flexString `json:"reason"`
}

// flexString accepts strings, numbers, booleans and null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(b)
	}
	return nil
}

// flexStrings accepts a list of scalars or a single comma separated string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = nil
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var items []flexString
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s := strings.TrimSpace(string(it)); s != "" {
				out = append(out, s)
			}
		}
		*f = out
		return nil
	}

	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	var out []string
	for _, part := range strings.FieldsFunc(string(s), func(r rune) bool { return r == ',' || r == '，' || r == '、' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*f = out
	return nil
}

// flexFloat accepts numbers and numeric strings; anything else decodes to 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

var errNoJSONObject = errors.New("no JSON object in model output")

// decodeModelJSON pulls the outermost JSON object out of content, tolerating
// markdown code fences and surrounding prose.
func decodeModelJSON(content string, v interface{}) error {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return errNoJSONObject
	}
	return json.Unmarshal([]byte(content[start:end+1]), v)
}
