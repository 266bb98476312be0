package models

// Identity is the minimal user identity supplied by the identity provider.
type Identity struct {
	UserID string  `json:"uid"`
	Email  *string `json:"email"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
