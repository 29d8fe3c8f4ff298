package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user of the store. IsAdmin and IsCourier are the role
// flags carried into issued tokens.
type User struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username  string `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email     string `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password  string `json:"password,omitempty" gorm:"type:varchar(255)" validate:"required,min=6"`
	IsAdmin   bool   `json:"is_admin"`
	IsCourier bool   `json:"is_courier"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Principal is the authenticated caller as seen by services.
type Principal struct {
	ID      string
	Email   string
	Admin   bool
	Courier bool
}
