// Package rules holds the submission validation rules shared by the intake endpoint and workers.
// Every rule runs on every call so the caller can report all invalid fields at once.
package rules

import (
	"regexp"
	"strconv"
	"strings"

	"business-directory/internal/models"

	"github.com/go-playground/validator/v10"
)

const (
	MaxShortDescription       = 200
	MaxCertificateDescription = 50
	MobileLength              = 13
)

var (
	mobilePattern = regexp.MustCompile(`^\+995\d{9}$`)
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	urlPattern    = regexp.MustCompile(`(?i)^https?://[^\s/$.?#][^\s]*$`)

	mobileNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

	validate = newValidator()
)

// newValidator registers the directory's field formats next to the built-in tags.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ge_mobile", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) == MobileLength && mobilePattern.MatchString(s)
	})
	_ = v.RegisterValidation("contact_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("http_url", func(fl validator.FieldLevel) bool {
		return urlPattern.MatchString(fl.Field().String())
	})
	return v
}

func check(value interface{}, tag string) bool {
	return validate.Var(value, tag) == nil
}

// Payload is the submission as typed by the submitter.
type Payload struct {
	BusinessName           string
	Categories             []string
	BusinessType           string
	Cities                 []string
	Mobile                 string
	ShortDescription       string
	HasCertificate         bool
	CertificateDescription string
	HasProfileImage        bool
	SocialLinks            models.SocialLinks
	SubmitterEmail         string
	SubmitterName          string
}

// Result maps field names to messages; IsValid is true when the map is empty.
type Result struct {
	IsValid bool              `json:"isValid"`
	Errors  map[string]string `json:"errors"`
}

// Validate checks p against the static rule set.
func Validate(p Payload) Result {
	errs := make(map[string]string)

	if strings.TrimSpace(p.BusinessName) == "" {
		errs["businessName"] = "Business name is required"
	}

	if len(nonEmpty(p.Categories)) == 0 {
		errs["categories"] = "Select at least one category"
	}

	switch strings.TrimSpace(p.BusinessType) {
	case "":
		errs["businessType"] = "Business type is required"
	case models.BusinessTypeIndividual, models.BusinessTypeCompany:
	default:
		errs["businessType"] = "Business type must be individual or company"
	}

	if msg := validateCities(p.Cities); msg != "" {
		errs["cities"] = msg
	}

	if msg := validateMobile(p.Mobile); msg != "" {
		errs["mobile"] = msg
	}

	email := strings.TrimSpace(p.SubmitterEmail)
	if email == "" {
		errs["submitterEmail"] = "Email is required"
	} else if !check(email, "contact_email") {
		errs["submitterEmail"] = "Enter a valid email address"
	}

	if strings.TrimSpace(p.SubmitterName) == "" {
		errs["submitterName"] = "Your name is required"
	}

	if !p.HasProfileImage {
		errs["profileImage"] = "Profile image is required"
	}

	if !check(p.ShortDescription, "max="+strconv.Itoa(MaxShortDescription)) {
		errs["shortDescription"] = "Short description must be at most 200 characters"
	}

	certificate := strings.TrimSpace(p.CertificateDescription)
	if p.HasCertificate && certificate == "" {
		errs["certificateDescription"] = "Certificate description is required"
	} else if !check(p.CertificateDescription, "max="+strconv.Itoa(MaxCertificateDescription)) {
		errs["certificateDescription"] = "Certificate description must be at most 50 characters"
	}

	for field, msg := range validateSocialLinks(p.SocialLinks) {
		errs[field] = msg
	}

	return Result{IsValid: len(errs) == 0, Errors: errs}
}

func validateCities(cities []string) string {
	selected := nonEmpty(cities)
	if len(selected) == 0 {
		return "Select at least one city"
	}
	if len(selected) > 1 {
		for _, c := range selected {
			if c == models.AllGeorgia {
				return "\"All Georgia\" cannot be combined with other cities"
			}
		}
	}
	return ""
}

func validateMobile(mobile string) string {
	if strings.TrimSpace(mobile) == "" {
		return "Mobile number is required"
	}
	if !check(mobile, "ge_mobile") {
		return "Mobile number must be in the format +995XXXXXXXXX"
	}
	return ""
}

func validateSocialLinks(links models.SocialLinks) map[string]string {
	errs := make(map[string]string)

	if strings.TrimSpace(links.Facebook) == "" && strings.TrimSpace(links.Instagram) == "" {
		errs["socialLinks"] = "Provide at least a Facebook or Instagram link"
	}

	platforms := map[string]string{
		"facebook":  links.Facebook,
		"instagram": links.Instagram,
		"tiktok":    links.Tiktok,
		"youtube":   links.Youtube,
	}
	for platform, link := range platforms {
		link = strings.TrimSpace(link)
		if link != "" && !IsURL(link) {
			errs["socialLinks."+platform] = "Enter a valid URL starting with http:// or https://"
		}
	}
	return errs
}

// IsURL reports whether s looks like an http(s) URL.
func IsURL(s string) bool {
	return check(s, "http_url")
}

// NormalizeMobile drops spacing and punctuation the submitter may have typed.
func NormalizeMobile(mobile string) string {
	return mobileNoise.Replace(strings.TrimSpace(mobile))
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}
