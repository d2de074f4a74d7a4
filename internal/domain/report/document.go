package report

import (
	"strings"
	"time"
)

// Photo is an image embedded in the printable report.
type Photo struct {
	MimeType string
	Data     []byte
}

// Document is everything both report formats are assembled from.
type Document struct {
	GeneratedAt  time.Time
	ClientName   string
	ClientPhone  string
	ClientEmail  string
	VehiclePlate string
	VehicleMake  string
	VehicleModel string
	VehicleYear  string
	VehicleVIN   string
	Description  string
	Damages      string
	Symptoms     string
	// PhotoCount is the number of attached photos; Photos may be left empty when only
	// the count is needed.
	PhotoCount int
	Photos     []Photo
}

// Vehicle returns "<make> <model>".
func (d Document) Vehicle() string {
	return strings.TrimSpace(d.VehicleMake + " " + d.VehicleModel)
}

// Filename returns the PDF download name: Raport_<plate or Auta>_<YYYY-MM-DD>.pdf
func (d Document) Filename() string {
	plate := d.VehiclePlate
	if plate == "" {
		plate = "Auta"
	}
	return "Raport_" + plate + "_" + d.GeneratedAt.Format("2006-01-02") + ".pdf"
}
