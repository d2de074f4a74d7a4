package intake

import (
	"time"
)

// ID tipe untuk Intake
type ID string

// ImageID identifies one attached photo within an intake.
type ImageID string

// Form is the client/vehicle data captured by the mechanic.
type Form struct {
	ClientName   string `json:"client_name"`
	ClientPhone  string `json:"client_phone"`
	ClientEmail  string `json:"client_email"`
	VehiclePlate string `json:"vehicle_plate"`
	VehicleMake  string `json:"vehicle_make"`
	VehicleModel string `json:"vehicle_model"`
	VehicleYear  string `json:"vehicle_year"`
	VehicleVIN   string `json:"vehicle_vin"`
	Description  string `json:"description"`
}

// Image is the metadata of an attached photo. The bytes live in an ImageStore.
type Image struct {
	ID         ImageID   `json:"id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Analysis is the AI-drafted damage summary.
type Analysis struct {
	Damages    string    `json:"damages"`
	Symptoms   string    `json:"symptoms"`
	Model      string    `json:"model,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// NotionStatus enum
type NotionStatus string

const (
	NotionIdle            NotionStatus = "idle"
	NotionUploadingImages NotionStatus = "uploading_images"
	NotionSaving          NotionStatus = "saving"
	NotionSuccess         NotionStatus = "success"
	NotionFallback        NotionStatus = "fallback"
	NotionError           NotionStatus = "error"
)

// ExportStaleAfter is how long a running export may hold the intake. An export still busy
// after that was cut off (restart, crash) and may be started again.
const ExportStaleAfter = 10 * time.Minute

// Busy reports whether an export is running.
func (s NotionStatus) Busy() bool {
	return s == NotionUploadingImages || s == NotionSaving
}

// NotionExport tracks the push of an intake to the notes database.
type NotionExport struct {
	Status    NotionStatus `json:"status"`
	PageURL   string       `json:"page_url,omitempty"`
	ImageURLs []string     `json:"image_urls,omitempty"`
	Warning   string       `json:"warning,omitempty"`
	Error     string       `json:"error,omitempty"`
	StartedAt time.Time    `json:"started_at,omitempty"`
}

// Running reports whether an export is in flight and not yet stale at now.
func (e NotionExport) Running(now time.Time) bool {
	return e.Status.Busy() && now.Sub(e.StartedAt) < ExportStaleAfter
}

// EmailDispatch records the last report e-mail.
type EmailDispatch struct {
	SentTo string    `json:"sent_to"`
	SentAt time.Time `json:"sent_at"`
}

// Aggregate Root: Intake
type Intake struct {
	ID        ID             `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Form      Form           `json:"form"`
	Images    []Image        `json:"images"`
	Analysis  *Analysis      `json:"analysis"`
	Notion    NotionExport   `json:"notion"`
	Email     *EmailDispatch `json:"email,omitempty"`
}

// Image returns the attached photo with the given ID.
func (i *Intake) Image(id ImageID) (Image, bool) {
	for _, img := range i.Images {
		if img.ID == id {
			return img, true
		}
	}
	return Image{}, false
}

// RemoveImage drops a photo and keeps the order of the others.
func (i *Intake) RemoveImage(id ImageID) bool {
	for idx, img := range i.Images {
		if img.ID == id {
			i.Images = append(i.Images[:idx:idx], i.Images[idx+1:]...)
			return true
		}
	}
	return false
}

// Title is the label used for the notes page: "<client> - <plate>".
func (f Form) Title() string {
	name := f.ClientName
	if name == "" {
		name = "Klient"
	}
	plate := f.VehiclePlate
	if plate == "" {
		plate = "Brak"
	}
	return name + " - " + plate
}
