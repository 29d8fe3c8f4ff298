package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents an item in the catalog.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string          `json:"name" validate:"required,min=2,max=100"`
	Description string          `json:"description" validate:"omitempty,max=500"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2)"`
	Stock       int             `json:"stock" validate:"gte=0"`
	ImageRef    string          `json:"image_ref,omitempty" gorm:"type:varchar(512)"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`
}

// imageFields lists, by priority, the keys older catalog feeds used for the
// product picture.
var imageFields = []string{"image", "imageUrl", "image_url", "imageUri", "img", "thumbnail", "photo", "picture"}

// ResolveImageRef returns the first non-empty image field of a raw product
// record.
func ResolveImageRef(raw map[string]any) string {
	for _, key := range imageFields {
		if v, ok := raw[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// NormalizeImage fills ImageRef from raw when it is not already set. It runs
// once, when a product enters the system.
func (p *Product) NormalizeImage(raw map[string]any) {
	if p.ImageRef == "" {
		p.ImageRef = ResolveImageRef(raw)
	}
}

// Line builds a single-unit order line for p.
func (p Product) Line() OrderLine {
	return OrderLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  1,
		ImageRef:  p.ImageRef,
	}
}
