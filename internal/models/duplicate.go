package models

import "time"

// Fields that duplicate detection compares.
const (
	FieldBusinessName = "businessName"
	FieldMobile       = "mobile"
	FieldEmail        = "email"
	FieldFacebook     = "socialLinks.facebook"
	FieldInstagram    = "socialLinks.instagram"
)

const (
	MatchTypeExact   = "exact"
	MatchTypePartial = "partial"
)

// DuplicateMatch is one existing business that looks like the submission. Never persisted.
type DuplicateMatch struct {
	Field        string `json:"field"`
	MatchedValue string `json:"matchedValue"`
	BusinessID   string `json:"businessId"`
	BusinessName string `json:"businessName"`
	MatchType    string `json:"matchType"`
}

// CheckedFields records which signals were present on the submission.
type CheckedFields struct {
	BusinessName bool `json:"businessName"`
	Mobile       bool `json:"mobile"`
	Email        bool `json:"email"`
	Facebook     bool `json:"facebook"`
	Instagram    bool `json:"instagram"`
}

// DuplicateResult is the outcome of one detection run.
// CheckFailed means the check could not run; the result is unknown, not clean.
type DuplicateResult struct {
	HasDuplicates bool             `json:"hasDuplicates"`
	MatchCount    int              `json:"matchCount"`
	Matches       []DuplicateMatch `json:"matches"`
	CheckedFields CheckedFields    `json:"checkedFields"`
	CheckFailed   bool             `json:"checkFailed,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// DuplicateStats summarises recent submissions for the moderation dashboard.
type DuplicateStats struct {
	Checked        int       `json:"checked"`
	WithDuplicates int       `json:"withDuplicates"`
	DuplicateRate  int       `json:"duplicateRate"`
	WindowDays     int       `json:"windowDays"`
	GeneratedAt    time.Time `json:"generatedAt"`
}
