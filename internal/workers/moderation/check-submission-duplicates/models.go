package checkduplicates

type Input struct {
	SubmissionID string `json:"submissionId"`
}

// Output is written back to the review process so the moderation task can
// show the strongest match.
type Output struct {
	HasDuplicates      bool   `json:"hasDuplicates"`
	MatchCount         int    `json:"matchCount"`
	TopMatchField      string `json:"topMatchField,omitempty"`
	TopMatchBusinessID string `json:"topMatchBusinessId,omitempty"`
	CheckedAt          string `json:"checkedAt"`
}
