// Package views declares the dashboard's list views: what each one fetches,
// how it is searched and filtered, and how its columns render.
package views

import (
	"strings"

	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/grid"
	"github.com/starford/dagaz/internal/remote"
)

// Name identifies a view.
type Name string

const (
	Users           Name = "users"
	Organizations   Name = "organizations"
	Projects        Name = "projects"
	ReviewDocuments Name = "review-documents"
	Payments        Name = "payments"
)

// Tone is the semantic color of a status chip.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
	ToneInfo    Tone = "info"
)

// StatusStyle maps status values to tones. Lookups are case-insensitive.
type StatusStyle struct {
	Field   string          `json:"field"`
	Tones   map[string]Tone `json:"tones"`
	Default Tone            `json:"default"`
}

// Definition is everything the engine needs to serve one view.
type Definition struct {
	Name     Name
	Title    string
	Resource string
	Endpoint remote.Endpoint
	IDField  string
	Filter   filter.Config
	Columns  []grid.Column
	Detail   []grid.Column
	Status   *StatusStyle
	// Presets enables relative date presets.
	Presets bool
}

// Tone returns the chip tone for a status value.
func (d Definition) Tone(value string) Tone {
	if d.Status == nil {
		return ""
	}
	if t, ok := d.Status.Tones[strings.ToLower(value)]; ok {
		return t
	}
	return d.Status.Default
}

// DetailColumns returns the columns of the detail dialog.
func (d Definition) DetailColumns() []grid.Column {
	if len(d.Detail) > 0 {
		return d.Detail
	}
	return d.Columns
}

// defaultOrder is the sidebar order of the built-in views.
var defaultOrder = []Name{Users, Organizations, Projects, ReviewDocuments, Payments}

// Defaults returns the built-in definitions.
func Defaults() map[Name]Definition {
	return map[Name]Definition{
		Users: {
			Name:     Users,
			Title:    "Users",
			Resource: "users",
			Endpoint: remote.Endpoint{View: string(Users), Path: "getAll-users", Envelope: "users"},
			IDField:  "id",
			Filter: filter.Config{
				TextFields: []string{"fullName", "email"},
				Categories: []filter.Category{{Field: "status", Label: "Status", Fold: true}},
				DateField:  "createdAt",
			},
			Columns: []grid.Column{
				{Field: "fullName", Label: "Full Name", Kind: grid.KindText},
				{Field: "email", Label: "Email", Kind: grid.KindText},
				{Field: "status", Label: "Status", Kind: grid.KindStatus},
				{Field: "createdAt", Label: "Created At", Kind: grid.KindDate},
				{Field: "id", Label: "Actions", Kind: grid.KindAction},
			},
			Detail: []grid.Column{
				{Field: "fullName", Label: "Full Name", Kind: grid.KindText},
				{Field: "email", Label: "Email", Kind: grid.KindText},
				{Field: "status", Label: "Status", Kind: grid.KindStatus},
				{Field: "onboarding_status", Label: "Onboarding", Kind: grid.KindStatus},
				{Field: "locale", Label: "Locale", Kind: grid.KindText},
				{Field: "createdAt", Label: "Created At", Kind: grid.KindDate},
				{Field: "id", Label: "User ID", Kind: grid.KindText},
			},
			Status: &StatusStyle{
				Field:   "status",
				Tones:   map[string]Tone{"active": ToneSuccess, "inactive": ToneError, "pending": ToneWarning},
				Default: ToneInfo,
			},
		},
		Organizations: {
			Name:     Organizations,
			Title:    "Organizations",
			Resource: "organizations",
			Endpoint: remote.Endpoint{View: string(Organizations), Path: "getAll-organizations", Envelope: "organizations"},
			IDField:  "id",
			Filter: filter.Config{
				TextFields: []string{"organization_name"},
				DateField:  "createdAt",
			},
			Columns: []grid.Column{
				{Field: "organization_name", Label: "Organization Name", Kind: grid.KindText},
				{Field: "createdAt", Label: "Created At", Kind: grid.KindDate},
				{Field: "id", Label: "Actions", Kind: grid.KindAction},
			},
			Detail: []grid.Column{
				{Field: "organization_name", Label: "Organization Name", Kind: grid.KindText},
				{Field: "id", Label: "Organization ID", Kind: grid.KindText},
				{Field: "user_id", Label: "Owner ID", Kind: grid.KindText},
				{Field: "createdAt", Label: "Created At", Kind: grid.KindDate},
			},
		},
		Projects: {
			Name:     Projects,
			Title:    "Projects",
			Resource: "projects",
			Endpoint: remote.Endpoint{View: string(Projects), Path: "getAll-projects", Envelope: "projects"},
			IDField:  "id",
			Filter: filter.Config{
				TextFields: []string{"project_name", "id", "organization_id"},
				DateField:  "createdAt",
			},
			Columns: []grid.Column{
				{Field: "project_name", Label: "Project Name", Kind: grid.KindText},
				{Field: "id", Label: "Project ID", Kind: grid.KindText},
				{Field: "organization_id", Label: "Organization ID", Kind: grid.KindText},
				{Field: "createdAt", Label: "Created At", Kind: grid.KindDate},
			},
			Presets: true,
		},
		ReviewDocuments: {
			Name:     ReviewDocuments,
			Title:    "Review Documents",
			Resource: "review-documents",
			Endpoint: remote.Endpoint{View: string(ReviewDocuments), Path: "getAll-review-document", Envelope: "documents"},
			IDField:  "document_type_uuid",
			Filter: filter.Config{
				TextFields: []string{"organization_name", "project_name", "email", "document_type", "status"},
				Categories: []filter.Category{
					{Field: "organization_name", Label: "Organization"},
					{Field: "project_name", Label: "Project"},
					{Field: "document_type", Label: "Document Type"},
					{Field: "status", Label: "Status", Fold: true},
				},
				DateField:   "createdAt",
				DefaultSort: "createdAt",
			},
			Columns: []grid.Column{
				{Field: "organization_name", Label: "Organization", Kind: grid.KindText},
				{Field: "project_name", Label: "Project", Kind: grid.KindText},
				{Field: "email", Label: "Email", Kind: grid.KindText},
				{Field: "document_type", Label: "Document Type", Kind: grid.KindText},
				{Field: "status", Label: "Status", Kind: grid.KindStatus},
				{Field: "createdAt", Label: "Created At", Kind: grid.KindDate},
				{Field: "document_type_uuid", Label: "Actions", Kind: grid.KindAction},
			},
			Detail: []grid.Column{
				{Field: "organization_name", Label: "Organization", Kind: grid.KindText},
				{Field: "project_name", Label: "Project", Kind: grid.KindText},
				{Field: "document_type", Label: "Document Type", Kind: grid.KindText},
				{Field: "email", Label: "Email", Kind: grid.KindText},
				{Field: "status", Label: "Status", Kind: grid.KindStatus},
				{Field: "createdAt", Label: "Created At", Kind: grid.KindDate},
			},
			Status: &StatusStyle{
				Field:   "status",
				Tones:   map[string]Tone{"pending": ToneWarning, "approved": ToneSuccess},
				Default: ToneError,
			},
		},
		Payments: {
			Name:     Payments,
			Title:    "Payment History",
			Resource: "payments",
			Endpoint: remote.Endpoint{View: string(Payments), Path: "payment-data-superadminportal", Envelope: "data", Shape: remote.ShapeByUser},
			IDField:  "index_id",
			Filter: filter.Config{
				TextFields: []string{"email", "name", "plan_name", "index_id"},
				Categories: []filter.Category{{Field: "payment_status", Label: "Status"}},
				DateField:  "payment_at",
			},
			Columns: []grid.Column{
				{Field: "name", Label: "Name", Kind: grid.KindText},
				{Field: "email", Label: "Email", Kind: grid.KindText},
				{Field: "plan_name", Label: "Plan", Kind: grid.KindText},
				{Field: "amount_total", Label: "Amount", Kind: grid.KindMoney},
				{Field: "credits", Label: "Credits", Kind: grid.KindNumber},
				{Field: "payment_status", Label: "Status", Kind: grid.KindStatus},
				{Field: "payment_at", Label: "Date", Kind: grid.KindDate},
				{Field: "country", Label: "Country", Kind: grid.KindText},
			},
			Status: &StatusStyle{
				Field:   "payment_status",
				Tones:   map[string]Tone{"paid": ToneSuccess, "pending": ToneWarning},
				Default: ToneError,
			},
		},
	}
}
