package models

// Tagging records which path assigned a quote its filename and tags.
type Tagging string

const (
	TaggingUntouched Tagging = ""
	TaggingAI        Tagging = "ai"
	TaggingFallback  Tagging = "fallback"
)

// Quote is one highlight recovered from an export.
type Quote struct {
	// Page holds the numeric page when one could be derived, else the raw marker.
	Page          string   `json:"page"`
	Text          string   `json:"text"`
	Filename      string   `json:"filename,omitempty"`
	Tags          []string `json:"tags"`
	SuggestedTags []string `json:"suggested_tags,omitempty"`
	Tagging       Tagging  `json:"tagging,omitempty"`
}
