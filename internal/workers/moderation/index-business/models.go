package indexbusiness

type Input struct {
	Decision   string `json:"decision"`
	BusinessID string `json:"businessId"`
}

type Output struct {
	Indexed   bool   `json:"indexed"`
	IndexedAt string `json:"indexedAt,omitempty"`
}
