package notion

import (
	"strings"
	"unicode/utf8"

	"github.com/bryanwahyu/moto-intake/internal/domain/delivery"
)

const (
	maxTextLen     = 2000
	noAnalysisText = "Brak analizy"
	pendingPhotos  = "⚠️ Zdjęcia nie zostały wysłane automatycznie (brak API Key ImgBB). Wklej je ręcznie."
)

// API types (subset of POST /v1/pages)

type pageRequest struct {
	Parent     parent              `json:"parent"`
	Properties map[string]property `json:"properties"`
	Children   []block             `json:"children"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type textContent struct {
	Content string `json:"content"`
}

type richText struct {
	Text textContent `json:"text"`
}

type selectOption struct {
	Name string `json:"name"`
}

type property struct {
	Title    []richText    `json:"title,omitempty"`
	RichText []richText    `json:"rich_text,omitempty"`
	Select   *selectOption `json:"select,omitempty"`
}

type textBlock struct {
	RichText []richText `json:"rich_text"`
}

type externalFile struct {
	URL string `json:"url"`
}

type imageBlock struct {
	Type     string       `json:"type"`
	External externalFile `json:"external"`
}

type emoji struct {
	Emoji string `json:"emoji"`
}

type calloutBlock struct {
	RichText []richText `json:"rich_text"`
	Icon     emoji      `json:"icon"`
	Color    string     `json:"color"`
}

type block struct {
	Object    string        `json:"object"`
	Type      string        `json:"type"`
	Heading2  *textBlock    `json:"heading_2,omitempty"`
	Heading3  *textBlock    `json:"heading_3,omitempty"`
	Paragraph *textBlock    `json:"paragraph,omitempty"`
	Image     *imageBlock   `json:"image,omitempty"`
	Callout   *calloutBlock `json:"callout,omitempty"`
}

// SafeText trims a value for a Notion text field. Blank values become fallback (or a single
// space, which Notion accepts where an empty string is rejected); long values are cut to 2000 runes.
func SafeText(v, fallback string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		if fallback != "" {
			return fallback
		}
		return " "
	}
	if utf8.RuneCountInString(s) > maxTextLen {
		s = string([]rune(s)[:maxTextLen])
	}
	return s
}

func text(s string) []richText {
	return []richText{{Text: textContent{Content: s}}}
}

func rich(v string) property {
	return property{RichText: text(SafeText(v, ""))}
}

func heading2(s string) block {
	return block{Object: "block", Type: "heading_2", Heading2: &textBlock{RichText: text(s)}}
}

func heading3(s string) block {
	return block{Object: "block", Type: "heading_3", Heading3: &textBlock{RichText: text(s)}}
}

func paragraph(s string) block {
	return block{Object: "block", Type: "paragraph", Paragraph: &textBlock{RichText: text(s)}}
}

// buildPage maps an intake page onto the database columns and the report blocks.
func buildPage(p delivery.Page) pageRequest {
	f := p.Form
	var damages, symptoms string
	if p.Analysis != nil {
		damages, symptoms = p.Analysis.Damages, p.Analysis.Symptoms
	}

	children := []block{
		heading2("Raport AI"),
		paragraph("Pełny raport wygenerowany przez system Moto Intake."),
		heading3("Wykryte Uszkodzenia"),
		paragraph(SafeText(damages, noAnalysisText)),
		heading3("Sugerowane Objawy"),
		paragraph(SafeText(symptoms, noAnalysisText)),
	}
	switch {
	case len(p.ImageURLs) > 0:
		children = append(children, heading3("Zdjęcia (ImgBB)"))
		for _, u := range p.ImageURLs {
			children = append(children, block{
				Object: "block",
				Type:   "image",
				Image:  &imageBlock{Type: "external", External: externalFile{URL: u}},
			})
		}
	case p.PhotosPending:
		children = append(children, block{
			Object: "block",
			Type:   "callout",
			Callout: &calloutBlock{
				RichText: text(pendingPhotos),
				Icon:     emoji{Emoji: "📷"},
				Color:    "orange_background",
			},
		})
	}

	return pageRequest{
		Parent: parent{DatabaseID: p.DatabaseID},
		Properties: map[string]property{
			p.TitleKey:              {Title: text(f.Title())},
			"Telefon":               rich(f.ClientPhone),
			"Email":                 rich(f.ClientEmail),
			"Nr Rejestracyjny":      rich(f.VehiclePlate),
			"Marka":                 rich(f.VehicleMake),
			"Model":                 rich(f.VehicleModel),
			"Rok":                   rich(f.VehicleYear),
			"VIN":                   rich(f.VehicleVIN),
			"Opis Usterki (Klient)": rich(f.Description),
			"Status":                {Select: &selectOption{Name: "Nowy"}},
		},
		Children: children,
	}
}
