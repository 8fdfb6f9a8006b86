package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Business is a published directory record. BusinessID is the public identifier,
// ID is the storage key; public lookups accept either.
type Business struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BusinessID string             `json:"businessId" bson:"businessId"`

	BusinessName           string        `json:"businessName" bson:"businessName"`
	Categories             []string      `json:"categories" bson:"categories"`
	BusinessType           string        `json:"businessType" bson:"businessType"`
	Cities                 []string      `json:"cities" bson:"cities"`
	Mobile                 string        `json:"mobile" bson:"mobile"`
	Email                  string        `json:"email,omitempty" bson:"email,omitempty"`
	ShortDescription       string        `json:"shortDescription,omitempty" bson:"shortDescription,omitempty"`
	HasCertificate         bool          `json:"hasCertificate" bson:"hasCertificate"`
	CertificateDescription string        `json:"certificateDescription,omitempty" bson:"certificateDescription,omitempty"`
	ProfileImage           *ProfileImage `json:"profileImage,omitempty" bson:"profileImage,omitempty"`
	SocialLinks            SocialLinks   `json:"socialLinks" bson:"socialLinks"`

	Verified           bool      `json:"verified" bson:"verified"`
	SourceSubmissionID string    `json:"sourceSubmissionId,omitempty" bson:"sourceSubmissionId,omitempty"`
	CreatedAt          time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ApplySubmission copies the business fields of an approved submission onto b.
// Identity, verification and timestamps are left to the caller.
func (b *Business) ApplySubmission(s *BusinessSubmission) {
	b.BusinessName = s.BusinessName
	b.Categories = append([]string(nil), s.Categories...)
	b.BusinessType = s.BusinessType
	b.Cities = append([]string(nil), s.Cities...)
	b.Mobile = s.Mobile
	b.Email = s.SubmitterEmail
	b.ShortDescription = s.ShortDescription
	b.HasCertificate = s.HasCertificate
	b.CertificateDescription = s.CertificateDescription
	b.SocialLinks = s.SocialLinks
	if s.ProfileImage != nil {
		img := *s.ProfileImage
		b.ProfileImage = &img
	}
	b.SourceSubmissionID = s.ID.Hex()
}
