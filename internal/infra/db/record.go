package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bryanwahyu/moto-intake/internal/domain/intake"
)

// Record is the flat row shape shared by the SQL repositories. Nested parts are stored as JSON.
type Record struct {
	ID            string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ClientName    string
	ClientPhone   string
	ClientEmail   string
	VehiclePlate  string
	VehicleMake   string
	VehicleModel  string
	VehicleYear   string
	VehicleVIN    string
	Description   string
	NotionStatus  string
	NotionPageURL string
	ImagesJSON    string
	AnalysisJSON  string
	NotionJSON    string
	EmailJSON     string
}

// Columns in the order of Record.Args and Record.Dest.
const Columns = `id, created_at, updated_at, client_name, client_phone, client_email,
 vehicle_plate, vehicle_make, vehicle_model, vehicle_year, vehicle_vin, description,
 notion_status, notion_page_url, images_json, analysis_json, notion_json, email_json`

// ColumnCount is the number of Columns.
const ColumnCount = 18

// notionExtra holds the export fields that have no column of their own.
type notionExtra struct {
	ImageURLs []string  `json:"image_urls,omitempty"`
	Warning   string    `json:"warning,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

func ToRecord(in *intake.Intake) (Record, error) {
	r := Record{
		ID:            string(in.ID),
		CreatedAt:     in.CreatedAt,
		UpdatedAt:     in.UpdatedAt,
		ClientName:    in.Form.ClientName,
		ClientPhone:   in.Form.ClientPhone,
		ClientEmail:   in.Form.ClientEmail,
		VehiclePlate:  in.Form.VehiclePlate,
		VehicleMake:   in.Form.VehicleMake,
		VehicleModel:  in.Form.VehicleModel,
		VehicleYear:   in.Form.VehicleYear,
		VehicleVIN:    in.Form.VehicleVIN,
		Description:   in.Form.Description,
		NotionStatus:  stringOr(string(in.Notion.Status), string(intake.NotionIdle)),
		NotionPageURL: in.Notion.PageURL,
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}

	images := in.Images
	if images == nil {
		images = []intake.Image{}
	}
	var err error
	if r.ImagesJSON, err = encode(images); err != nil {
		return Record{}, fmt.Errorf("encode images: %w", err)
	}
	if in.Analysis != nil {
		if r.AnalysisJSON, err = encode(in.Analysis); err != nil {
			return Record{}, fmt.Errorf("encode analysis: %w", err)
		}
	}
	if r.NotionJSON, err = encode(notionExtra{
		ImageURLs: in.Notion.ImageURLs,
		Warning:   in.Notion.Warning,
		Error:     in.Notion.Error,
		StartedAt: in.Notion.StartedAt,
	}); err != nil {
		return Record{}, fmt.Errorf("encode notion: %w", err)
	}
	if in.Email != nil {
		if r.EmailJSON, err = encode(in.Email); err != nil {
			return Record{}, fmt.Errorf("encode email: %w", err)
		}
	}
	return r, nil
}

func (r Record) Intake() (*intake.Intake, error) {
	in := &intake.Intake{
		ID:        intake.ID(r.ID),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Form: intake.Form{
			ClientName:   r.ClientName,
			ClientPhone:  r.ClientPhone,
			ClientEmail:  r.ClientEmail,
			VehiclePlate: r.VehiclePlate,
			VehicleMake:  r.VehicleMake,
			VehicleModel: r.VehicleModel,
			VehicleYear:  r.VehicleYear,
			VehicleVIN:   r.VehicleVIN,
			Description:  r.Description,
		},
		Images: []intake.Image{},
		Notion: intake.NotionExport{
			Status:  intake.NotionStatus(stringOr(r.NotionStatus, string(intake.NotionIdle))),
			PageURL: r.NotionPageURL,
		},
	}
	if err := decode(r.ImagesJSON, &in.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	if r.AnalysisJSON != "" {
		in.Analysis = &intake.Analysis{}
		if err := decode(r.AnalysisJSON, in.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
	}
	var extra notionExtra
	if err := decode(r.NotionJSON, &extra); err != nil {
		return nil, fmt.Errorf("decode notion: %w", err)
	}
	in.Notion.ImageURLs, in.Notion.Warning, in.Notion.Error = extra.ImageURLs, extra.Warning, extra.Error
	in.Notion.StartedAt = extra.StartedAt
	if r.EmailJSON != "" {
		in.Email = &intake.EmailDispatch{}
		if err := decode(r.EmailJSON, in.Email); err != nil {
			return nil, fmt.Errorf("decode email: %w", err)
		}
	}
	return in, nil
}

// Args returns the values for an insert, in Columns order. Times are passed through ts.
func (r Record) Args(ts func(time.Time) any) []any {
	return []any{
		r.ID, ts(r.CreatedAt), ts(r.UpdatedAt), r.ClientName, r.ClientPhone, r.ClientEmail,
		r.VehiclePlate, r.VehicleMake, r.VehicleModel, r.VehicleYear, r.VehicleVIN, r.Description,
		r.NotionStatus, r.NotionPageURL, r.ImagesJSON, r.AnalysisJSON, r.NotionJSON, r.EmailJSON,
	}
}

// Dest returns scan destinations in Columns order; created and updated are scanned by the caller's type.
func (r *Record) Dest(created, updated any) []any {
	return []any{
		&r.ID, created, updated, &r.ClientName, &r.ClientPhone, &r.ClientEmail,
		&r.VehiclePlate, &r.VehicleMake, &r.VehicleModel, &r.VehicleYear, &r.VehicleVIN, &r.Description,
		&r.NotionStatus, &r.NotionPageURL, &r.ImagesJSON, &r.AnalysisJSON, &r.NotionJSON, &r.EmailJSON,
	}
}

// Time passes t unchanged (drivers with native time support).
func Time(t time.Time) any { return t.UTC() }

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func decode(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func stringOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
