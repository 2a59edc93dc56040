package model

import (
	"strconv"
)

// Record is implemented by every master-data type managed by the console.
type Record interface {
	// RecordID returns the server-assigned identifier (0 for a new draft).
	RecordID() int64
	// Validate runs the client-side required-field checks.
	Validate() error
	// Columns returns the table cells in the order of the entity's Headers.
	Columns() []string
}

// RecordPtr is a pointer to a Record that accepts a server-assigned id.
type RecordPtr[T Record] interface {
	*T
	SetRecordID(id int64)
}

// Entity describes how a record type appears on the wire and on screen.
type Entity struct {
	Name    string // singular payload field, e.g. "designation"
	Plural  string // list payload field and route segment, e.g. "designations"
	Title   string
	Headers []string
}

var (
	DesignationEntity = Entity{
		Name:    "designation",
		Plural:  "designations",
		Title:   "Designation",
		Headers: []string{"ID", "CODE", "NAME", "DESCRIPTION"},
	}
	PlantEntity = Entity{
		Name:    "plant",
		Plural:  "plants",
		Title:   "Plant",
		Headers: []string{"ID", "CODE", "NAME", "LOCATION"},
	}
	PlantAssignmentEntity = Entity{
		Name:    "plantAssignment",
		Plural:  "plantAssignments",
		Title:   "Plant Assignment",
		Headers: []string{"ID", "PLANT", "PLANT NAME", "USERS"},
	}
	DocumentEntity = Entity{
		Name:    "document",
		Plural:  "documents",
		Title:   "Document",
		Headers: []string{"ID", "NUMBER", "TITLE", "VERSION", "PLANT"},
	}
)

// Display pairs the entity headers with a record's columns.
func Display(e Entity, r Record) map[string]string {
	cols := r.Columns()
	out := make(map[string]string, len(cols))
	for i, h := range e.Headers {
		if i < len(cols) {
			out[h] = cols[i]
		}
	}
	return out
}

// Designation is a job title used across plants.
type Designation struct {
	ID          int64  `json:"designationId"`
	Code        string `json:"designationCode"`
	Name        string `json:"designationName"`
	Description string `json:"description,omitempty"`
	Stamp
}

func (d Designation) RecordID() int64 { return d.ID }

func (d *Designation) SetRecordID(id int64) { d.ID = id }

func (d Designation) Validate() error {
	var errs []FieldError
	errs = append(errs, Required("designationCode", d.Code)...)
	errs = append(errs, Required("designationName", d.Name)...)
	return NewValidationError(errs...)
}

func (d Designation) Columns() []string {
	return []string{formatID(d.ID), d.Code, d.Name, d.Description}
}

// Plant is a manufacturing site.
type Plant struct {
	ID       int64  `json:"plantId"`
	Code     string `json:"plantCode"`
	Name     string `json:"plantName"`
	Location string `json:"location,omitempty"`
	Stamp
}

func (p Plant) RecordID() int64 { return p.ID }

func (p *Plant) SetRecordID(id int64) { p.ID = id }

func (p Plant) Validate() error {
	var errs []FieldError
	errs = append(errs, Required("plantCode", p.Code)...)
	errs = append(errs, Required("plantName", p.Name)...)
	return NewValidationError(errs...)
}

func (p Plant) Columns() []string {
	return []string{formatID(p.ID), p.Code, p.Name, p.Location}
}

// PlantAssignment links a plant to the users allowed to work on it.
type PlantAssignment struct {
	ID        int64  `json:"plantAssignmentId"`
	PlantID   int64  `json:"plantId"`
	PlantName string `json:"plantName,omitempty"`
	UserIDs   IDList `json:"userIds"`
	Stamp
}

func (a PlantAssignment) RecordID() int64 { return a.ID }

func (a *PlantAssignment) SetRecordID(id int64) { a.ID = id }

func (a PlantAssignment) Validate() error {
	var errs []FieldError
	if a.PlantID <= 0 {
		errs = append(errs, FieldError{Field: "plantId", Message: "is required"})
	}
	if len(a.UserIDs) == 0 {
		errs = append(errs, FieldError{Field: "userIds", Message: "at least one user is required"})
	}
	return NewValidationError(errs...)
}

func (a PlantAssignment) Columns() []string {
	return []string{formatID(a.ID), formatID(a.PlantID), a.PlantName, a.UserIDs.String()}
}

// Document is a controlled document registered against a plant.
type Document struct {
	ID      int64  `json:"documentId"`
	Number  string `json:"documentNumber"`
	Title   string `json:"documentTitle"`
	Version string `json:"version"`
	PlantID int64  `json:"plantId,omitempty"`
	Stamp
}

func (d Document) RecordID() int64 { return d.ID }

func (d *Document) SetRecordID(id int64) { d.ID = id }

func (d Document) Validate() error {
	var errs []FieldError
	errs = append(errs, Required("documentNumber", d.Number)...)
	errs = append(errs, Required("documentTitle", d.Title)...)
	errs = append(errs, Required("version", d.Version)...)
	return NewValidationError(errs...)
}

func (d Document) Columns() []string {
	plant := ""
	if d.PlantID > 0 {
		plant = formatID(d.PlantID)
	}
	return []string{formatID(d.ID), d.Number, d.Title, d.Version, plant}
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
