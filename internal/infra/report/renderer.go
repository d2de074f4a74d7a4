package report

import (
	"bytes"
	"embed"
	"encoding/base64"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/bryanwahyu/moto-intake/internal/domain/report"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const dateLayout = "02.01.2006"

// Renderer assembles the HTML protocol and the plain-text summary.
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func NewRenderer() (*Renderer, error) {
	h, err := htmltemplate.ParseFS(templateFS, "templates/report.html.tmpl")
	if err != nil {
		return nil, err
	}
	t, err := texttemplate.ParseFS(templateFS, "templates/report.txt.tmpl")
	if err != nil {
		return nil, err
	}
	return &Renderer{html: h, text: t}, nil
}

type view struct {
	Doc        report.Document
	Date       string
	Plate      string
	Photos     []htmltemplate.URL
	PhotoCount int
}

func newView(doc report.Document, withPhotos bool) view {
	v := view{
		Doc:        doc,
		Date:       doc.GeneratedAt.Format(dateLayout),
		Plate:      strings.ToUpper(doc.VehiclePlate),
		PhotoCount: max(doc.PhotoCount, len(doc.Photos)),
	}
	if withPhotos {
		for _, p := range doc.Photos {
			// data URI dibuat sendiri dari mime + bytes, aman untuk src
			uri := "data:" + p.MimeType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
			v.Photos = append(v.Photos, htmltemplate.URL(uri))
		}
	}
	return v
}

func (r *Renderer) HTML(doc report.Document) (string, error) {
	var buf bytes.Buffer
	if err := r.html.Execute(&buf, newView(doc, true)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Renderer) Text(doc report.Document) (string, error) {
	var buf bytes.Buffer
	if err := r.text.Execute(&buf, newView(doc, false)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
