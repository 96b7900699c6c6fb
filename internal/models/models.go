// internal/models/models.go
//
// Row types for the users, gardens and crops tables.
// gorm tags name columns explicitly; json tags define the API shape.
// The password hash and media store ids are never serialized.

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Table names.
const (
	TableUsers   = "users"
	TableGardens = "gardens"
	TableCrops   = "crops"
)

// User is an account owner.
type User struct {
	ID             string    `json:"id" gorm:"column:id;primaryKey"`
	Email          string    `json:"email" gorm:"column:email"`
	PasswordHash   string    `json:"-" gorm:"column:password_hash"`
	Name           string    `json:"name" gorm:"column:name"`
	Phone          string    `json:"phone" gorm:"column:phone"`
	ProfileImage   string    `json:"profile_image" gorm:"column:profile_image"`
	ProfileImageID string    `json:"-" gorm:"column:profile_image_id"`
	Bio            string    `json:"bio" gorm:"column:bio"`
	Location       string    `json:"location" gorm:"column:location"`
	GardenName     string    `json:"garden_name" gorm:"column:garden_name"`
	GardenSize     string    `json:"garden_size" gorm:"column:garden_size"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (User) TableName() string { return TableUsers }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Garden is a named growing area owned by a user.
type Garden struct {
	ID          string    `json:"id" gorm:"column:id;primaryKey"`
	UserID      string    `json:"user_id" gorm:"column:user_id"`
	Name        string    `json:"name" gorm:"column:name"`
	Location    string    `json:"location" gorm:"column:location"`
	Type        string    `json:"type" gorm:"column:type"`
	Size        string    `json:"size" gorm:"column:size"`
	Description string    `json:"description" gorm:"column:description"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Garden) TableName() string { return TableGardens }

func (g *Garden) BeforeCreate(*gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// Crop statuses.
const (
	StatusPlanned   = "planned"
	StatusPlanted   = "planted"
	StatusGrowing   = "growing"
	StatusReady     = "ready"
	StatusHarvested = "harvested"
)

// CropStatuses lists the accepted status values in lifecycle order.
var CropStatuses = []string{StatusPlanned, StatusPlanted, StatusGrowing, StatusReady, StatusHarvested}

// DateLayout is the format of planting_date and harvest_date.
const DateLayout = "2006-01-02"

// Crop is a planted item tracked within a garden.
type Crop struct {
	ID           string    `json:"id" gorm:"column:id;primaryKey"`
	GardenID     string    `json:"garden_id" gorm:"column:garden_id"`
	UserID       string    `json:"user_id" gorm:"column:user_id"`
	Name         string    `json:"name" gorm:"column:name"`
	Category     string    `json:"category" gorm:"column:category"`
	Variety      string    `json:"variety" gorm:"column:variety"`
	PlantingDate string    `json:"planting_date" gorm:"column:planting_date"`
	HarvestDate  string    `json:"harvest_date" gorm:"column:harvest_date"`
	Status       string    `json:"status" gorm:"column:status"`
	Progress     int       `json:"progress" gorm:"column:progress"`
	Notes        string    `json:"notes" gorm:"column:notes"`
	ImageURL     string    `json:"image_url" gorm:"column:image_url"`
	ImageID      string    `json:"-" gorm:"column:image_public_id"`
	Shared       bool      `json:"shared" gorm:"column:shared"`
	Quantity     float64   `json:"quantity" gorm:"column:quantity"`
	Unit         string    `json:"unit" gorm:"column:unit"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Crop) TableName() string { return TableCrops }

func (c *Crop) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusPlanted
	}
	return nil
}
