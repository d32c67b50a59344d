package models

import (
	"time"

	"github.com/google/uuid"
)

// Brand identifies a component manufacturer.
type Brand string

const (
	BrandAMD      Brand = "AMD"
	BrandIntel    Brand = "Intel"
	BrandNvidia   Brand = "NVIDIA"
	BrandAsus     Brand = "ASUS"
	BrandMSI      Brand = "MSI"
	BrandGigabyte Brand = "Gigabyte"
	BrandASRock   Brand = "ASRock"
	BrandCorsair  Brand = "Corsair"
	BrandGSkill   Brand = "G.Skill"
	BrandKingston Brand = "Kingston"
	BrandADATA    Brand = "ADATA"
	BrandTeam     Brand = "Team"
	BrandSamsung  Brand = "Samsung"
	BrandWD       Brand = "Western Digital"
	BrandSeagate  Brand = "Seagate"
	BrandCrucial  Brand = "Crucial"
	BrandUnknown  Brand = ""
)

// Category identifies a component type.
type Category string

const (
	CategoryCPU         Category = "CPU"
	CategoryGPU         Category = "GPU"
	CategoryRAM         Category = "RAM"
	CategoryMotherboard Category = "Motherboard"
	CategoryPSU         Category = "PSU"
	CategoryStorage     Category = "Storage"
	CategoryCase        Category = "Case"
	CategoryCooling     Category = "Cooling"
	CategoryUnknown     Category = ""
)

// Categories lists every known category, in display order.
var Categories = []Category{
	CategoryCPU, CategoryGPU, CategoryRAM, CategoryMotherboard,
	CategoryPSU, CategoryStorage, CategoryCase, CategoryCooling,
}

// NormalizeCategory maps vendor category labels onto the canonical taxonomy.
func NormalizeCategory(raw string) Category {
	switch normalizeLabel(raw) {
	case "cpu", "processor", "processors":
		return CategoryCPU
	case "gpu", "graphics", "graphics card", "video card", "vga":
		return CategoryGPU
	case "ram", "memory", "desktop ram":
		return CategoryRAM
	case "motherboard", "mobo", "mainboard":
		return CategoryMotherboard
	case "psu", "power supply", "power supplies":
		return CategoryPSU
	case "storage", "ssd", "hdd", "hard drive", "hard disk", "nvme":
		return CategoryStorage
	case "case", "casing", "chassis":
		return CategoryCase
	case "cooling", "cooler", "cpu cooler", "fan":
		return CategoryCooling
	}
	return CategoryUnknown
}

func normalizeLabel(s string) string {
	out := make([]byte, 0, len(s))
	lastSpace := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c+'a'-'A')
			lastSpace = false
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			out = append(out, c)
			lastSpace = false
		default:
			if !lastSpace {
				out = append(out, ' ')
				lastSpace = true
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}

// CanonicalProduct is the reconciled product identity. One canonical product
// maps to many raw listings; (Category, CanonicalName) is unique in storage.
type CanonicalProduct struct {
	ID            uuid.UUID `json:"id" db:"id"`
	CanonicalName string    `json:"canonical_name" db:"canonical_name"`
	Brand         Brand     `json:"brand" db:"brand"`
	Category      Category  `json:"category" db:"category"`
	ListingCount  int       `json:"listing_count" db:"listing_count"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
