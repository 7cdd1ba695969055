package entity

import "time"

type Product struct {
	ID          string    `json:"id" validate:"required"`
	SellerID    string    `json:"seller_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Images      []string  `json:"images,omitempty"`
	Category    string    `json:"category,omitempty"`
	Status      string    `json:"status"` // "active", "sold", "hidden"
	CreatedAt   time.Time `json:"created_at"`
}

// FileRef is the reference returned by the upload endpoint; messages carry
// it instead of the binary.
type FileRef struct {
	ID       string `json:"id" validate:"required"`
	URL      string `json:"url" validate:"required"`
	Filename string `json:"filename,omitempty"`
	FileType string `json:"file_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

type Review struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	ReviewerID    string    `json:"reviewer_id"`
	SellerID      string    `json:"seller_id"`
	Rating        int       `json:"rating" validate:"gte=1,lte=5"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
