package request

// CreateSession carries optional redirect overrides; when empty the
// configured storefront URLs are used.
type CreateSession struct {
	SuccessURL string `json:"successUrl" validate:"omitempty,url"`
	CancelURL  string `json:"cancelUrl"  validate:"omitempty,url"`
}
