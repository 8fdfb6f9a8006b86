package notifysubmitter

// Input is the review process scope: the variables the process was started
// with, plus the decision once one was published.
type Input struct {
	SubmissionID   string `json:"submissionId"`
	TrackingID     string `json:"trackingId"`
	BusinessName   string `json:"businessName"`
	SubmitterName  string `json:"submitterName"`
	SubmitterEmail string `json:"submitterEmail"`
	Mobile         string `json:"mobile"`
	Decision       string `json:"decision,omitempty"`
	Reason         string `json:"reason,omitempty"`
	BusinessID     string `json:"businessId,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"notificationStatus"` // "sent", "failed", "disabled"
	SentAt         string `json:"sentAt"`
}
