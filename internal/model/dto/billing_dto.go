package dto

type CheckoutRequest struct {
	Plan string `json:"plan" binding:"required"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}
