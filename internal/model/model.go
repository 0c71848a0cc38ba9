package model

import "time"

// Category is one of the fixed event category labels.
type Category string

const (
	CategoryTech     Category = "tech"
	CategoryMusic    Category = "music"
	CategoryBusiness Category = "business"
	CategoryArt      Category = "art"
	CategorySports   Category = "sports"
	CategoryAcademic Category = "academic"
	CategorySocial   Category = "social"
)

// Categories lists the known categories in display order.
var Categories = []Category{
	CategoryTech,
	CategoryMusic,
	CategoryBusiness,
	CategoryArt,
	CategorySports,
	CategoryAcademic,
	CategorySocial,
}

// Valid reports whether c is one of the known labels.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Format says whether an event happens online or on site.
type Format string

const (
	FormatOnline   Format = "online"
	FormatInPerson Format = "in-person"
)

// Badge is a short display label attached to an event, e.g. "Free" or "Limited".
type Badge struct {
	Text string `yaml:"text" json:"text"`
	Kind string `yaml:"kind" json:"kind"`
}

// Event is a single catalog record. Records are treated as immutable once a
// catalog snapshot has been published; code that needs a variant copies it.
type Event struct {
	ID          string    `yaml:"id" json:"id"`
	Title       string    `yaml:"title" json:"title"`
	Date        time.Time `yaml:"-" json:"date"`
	Location    string    `yaml:"location" json:"location"`
	Description string    `yaml:"description" json:"description"`
	Price       float64   `yaml:"price" json:"price"`
	Category    Category  `yaml:"category" json:"category"`
	Badge       *Badge    `yaml:"badge,omitempty" json:"badge,omitempty"`
	Format      Format    `yaml:"format" json:"format"`

	// Popularity is a declared ranking score used by the popularity sort.
	Popularity int `yaml:"popularity" json:"popularity"`
	// Attendees is the declared number of people attending.
	Attendees int `yaml:"attendees" json:"attendees"`

	// SourceID names the catalog source that produced the record
	// (builtin, a YAML path or an ICS feed ID).
	SourceID string `yaml:"-" json:"source_id,omitempty"`
}

// IsFree reports whether the event costs nothing.
func (e Event) IsFree() bool {
	return e.Price == 0
}

// Role distinguishes regular users from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the locally persisted "current user" object.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	University string    `json:"university"`
	Avatar     string    `json:"avatar"`
	Bio        string    `json:"bio,omitempty"`
	JoinedAt   time.Time `json:"joined_at"`
	Verified   bool      `json:"verified"`
	Role       Role      `json:"role"`
}

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const StatusConfirmed RegistrationStatus = "confirmed"

// Registration records that the current user signed up for an event. It
// keeps a snapshot of the event as it looked at registration time.
type Registration struct {
	ID           string             `json:"id"`
	EventID      string             `json:"event_id"`
	Event        Event              `json:"event"`
	RegisteredAt time.Time          `json:"registered_at"`
	Status       RegistrationStatus `json:"status"`
}
