package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Submission lifecycle states. Only pending submissions can be decided.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const (
	BusinessTypeIndividual = "individual"
	BusinessTypeCompany    = "company"
)

// AllGeorgia is the nationwide city sentinel; it cannot be combined with other cities.
const AllGeorgia = "All Georgia"

// SocialLinks holds the submitter's profile URLs keyed by platform.
type SocialLinks struct {
	Facebook  string `json:"facebook,omitempty" bson:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty" bson:"instagram,omitempty"`
	Tiktok    string `json:"tiktok,omitempty" bson:"tiktok,omitempty"`
	Youtube   string `json:"youtube,omitempty" bson:"youtube,omitempty"`
}

// ProfileImage references an image stored in GridFS.
type ProfileImage struct {
	FileID      string `json:"fileId" bson:"fileId"`
	URL         string `json:"url" bson:"url"`
	Filename    string `json:"filename,omitempty" bson:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty" bson:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty" bson:"size,omitempty"`
}

// BusinessSubmission is a pending candidate for the public directory.
type BusinessSubmission struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TrackingID string             `json:"trackingId" bson:"trackingId"`

	// Business info
	BusinessName           string        `json:"businessName" bson:"businessName"`
	Categories             []string      `json:"categories" bson:"categories"`
	BusinessType           string        `json:"businessType" bson:"businessType"`
	Cities                 []string      `json:"cities" bson:"cities"`
	Mobile                 string        `json:"mobile" bson:"mobile"`
	ShortDescription       string        `json:"shortDescription,omitempty" bson:"shortDescription,omitempty"`
	HasCertificate         bool          `json:"hasCertificate" bson:"hasCertificate"`
	CertificateDescription string        `json:"certificateDescription,omitempty" bson:"certificateDescription,omitempty"`
	ProfileImage           *ProfileImage `json:"profileImage,omitempty" bson:"profileImage,omitempty"`
	SocialLinks            SocialLinks   `json:"socialLinks" bson:"socialLinks"`

	// Submitter
	SubmitterName  string `json:"submitterName" bson:"submitterName"`
	SubmitterEmail string `json:"submitterEmail" bson:"submitterEmail"`

	// Moderation
	Status              string     `json:"status" bson:"status"`
	ReviewedBy          string     `json:"reviewedBy,omitempty" bson:"reviewedBy,omitempty"`
	ReviewedAt          *time.Time `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
	RejectionReason     string     `json:"rejectionReason,omitempty" bson:"rejectionReason,omitempty"`
	PublishedBusinessID string     `json:"publishedBusinessId,omitempty" bson:"publishedBusinessId,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// StatusView is what a submitter sees when tracking a submission.
type StatusView struct {
	TrackingID      string     `json:"trackingId"`
	BusinessName    string     `json:"businessName"`
	Status          string     `json:"status"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	BusinessID      string     `json:"businessId,omitempty"`
	SubmittedAt     time.Time  `json:"submittedAt"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
}

// ToStatusView strips everything the submitter should not see.
func (s *BusinessSubmission) ToStatusView() StatusView {
	return StatusView{
		TrackingID:      s.TrackingID,
		BusinessName:    s.BusinessName,
		Status:          s.Status,
		RejectionReason: s.RejectionReason,
		BusinessID:      s.PublishedBusinessID,
		SubmittedAt:     s.CreatedAt,
		ReviewedAt:      s.ReviewedAt,
	}
}
