package models

import "time"

const (
	SourceActive     = "active"
	SourceProcessing = "processing"
	SourceError      = "error"
)

const (
	TaskProcessing = "processing"
	TaskDone       = "done"
	TaskFailed     = "failed"
)

const (
	RiskHigh   = "High"
	RiskMedium = "Medium"
	RiskLow    = "Low"
)

type Source struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Status        string     `json:"status"`
	LastCrawledAt *time.Time `json:"last_crawled_at"`
	ErrorMessage  *string    `json:"error_message"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IntelligenceItem is immutable once stored. URL, when set, is unique.
type IntelligenceItem struct {
	ID             string    `json:"id"`
	SourceID       string    `json:"source_id"`
	URL            *string   `json:"url"`
	Title          string    `json:"title"`
	TitleZH        string    `json:"title_zh"`
	PublishDate    *string   `json:"publish_date"`
	ContentType    string    `json:"content_type"`
	Summary        string    `json:"summary"`
	RiskTags       []string  `json:"risk_tags"`
	RiskHint       string    `json:"risk_hint"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	RelevanceScore float64   `json:"relevance_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// IntelligenceView is an item as listed, with the display URL resolved.
type IntelligenceView struct {
	IntelligenceItem
	SourceURL string `json:"source_url"`
}

type ContractTask struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	UploadTime       time.Time `json:"created_at"`
	Status           string    `json:"status"`
	OverallRiskLevel *string   `json:"overall_risk_level"`
}

type ContractRisk struct {
	ID           string  `json:"id"`
	TaskID       string  `json:"task_id"`
	ClauseID     string  `json:"clause_id"`
	ClauseText   string  `json:"clause_text"`
	RiskCategory string  `json:"risk_category"`
	RiskLevel    string  `json:"risk_level"`
	RiskReason   string  `json:"risk_reason"`
	Explanation  string  `json:"explanation"`
	Confidence   float64 `json:"confidence"`
}
