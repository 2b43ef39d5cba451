package inventory

import (
	"time"

	"wastechem.org/internal/datasvc"
)

const (
	StatusPending = "pending"

	dateLayout = "2006-01-02"
)

// Waste is a waste item awaiting or past collection.
type Waste struct {
	ID              datasvc.Key `json:"id"`
	Name            string      `json:"name"`
	Category        string      `json:"category"`
	Quantity        float64     `json:"quantity"`
	CollectionDate  *string     `json:"collection_date"`
	Status          string      `json:"status"`
	Location        *string     `json:"location"`
	CertificatePath *string     `json:"certificate_path"`
	UserID          string      `json:"user_id"`
	CreatedAt       *time.Time  `json:"created_at,omitempty"`
}

// Chemical is a chemical inventory item.
type Chemical struct {
	ID             datasvc.Key `json:"id"`
	Name           string      `json:"name"`
	Category       string      `json:"category"`
	Quantity       float64     `json:"quantity"`
	ExpirationDate *string     `json:"expiration_date"`
	Location       *string     `json:"location"`
	SDSLink        *string     `json:"sds_link"`
	SDSPath        *string     `json:"sds_path"`
	ReorderLevel   *float64    `json:"reorder_level"`
	UserID         string      `json:"user_id"`
	CreatedAt      *time.Time  `json:"created_at,omitempty"`
}

// NewWaste is the create payload for a waste item.
type NewWaste struct {
	Name            string   `json:"name" validate:"required"`
	Category        string   `json:"category" validate:"required"`
	Quantity        *float64 `json:"quantity" validate:"required"`
	CollectionDate  *string  `json:"collection_date" validate:"omitempty,datetime=2006-01-02"`
	Status          string   `json:"status"`
	Location        *string  `json:"location"`
	CertificatePath *string  `json:"certificate_path"`
}

// WastePatch is a partial update; nil fields are left untouched.
type WastePatch struct {
	Name            *string  `json:"name" validate:"omitnil,min=1"`
	Category        *string  `json:"category" validate:"omitnil,min=1"`
	Quantity        *float64 `json:"quantity"`
	CollectionDate  *string  `json:"collection_date"`
	Status          *string  `json:"status" validate:"omitnil,min=1"`
	Location        *string  `json:"location"`
	CertificatePath *string  `json:"certificate_path"`
}

// NewChemical is the create payload for a chemical.
type NewChemical struct {
	Name           string   `json:"name" validate:"required"`
	Category       string   `json:"category" validate:"required"`
	Quantity       *float64 `json:"quantity" validate:"required"`
	ExpirationDate *string  `json:"expiration_date" validate:"omitempty,datetime=2006-01-02"`
	Location       *string  `json:"location"`
	SDSLink        *string  `json:"sds_link"`
	SDSPath        *string  `json:"sds_path"`
	ReorderLevel   *float64 `json:"reorder_level"`
}

// ChemicalPatch is a partial update; nil fields are left untouched.
type ChemicalPatch struct {
	Name           *string  `json:"name" validate:"omitnil,min=1"`
	Category       *string  `json:"category" validate:"omitnil,min=1"`
	Quantity       *float64 `json:"quantity"`
	ExpirationDate *string  `json:"expiration_date"`
	Location       *string  `json:"location"`
	SDSLink        *string  `json:"sds_link"`
	SDSPath        *string  `json:"sds_path"`
	ReorderLevel   *float64 `json:"reorder_level"`
}

// WasteFilter narrows a waste listing. Empty fields are ignored.
type WasteFilter struct {
	Category string
	Status   string
	Search   string
}

// ChemicalFilter narrows a chemical listing. Empty fields are ignored.
type ChemicalFilter struct {
	Category     string
	Search       string
	ExpiringSoon bool
}

// Stats are the dashboard counters.
type Stats struct {
	TotalWaste        int `json:"total_waste"`
	TotalChemicals    int `json:"total_chemicals"`
	ExpiringChemicals int `json:"expiring_chemicals"`
	PendingWaste      int `json:"pending_waste"`
}

// Notification is a derived alert; it is never stored.
type Notification struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Link    string `json:"link"`
}
