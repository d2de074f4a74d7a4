package settings

import "strings"

// DefaultTitleKey is the name of the title column in the Notion database.
const DefaultTitleKey = "Imię i Nazwisko"

// Settings holds credentials and IDs of the three external services.
// It is persisted verbatim, without encryption.
type Settings struct {
	NotionToken      string `json:"notion_token" yaml:"notionToken"`
	NotionDatabaseID string `json:"notion_database_id" yaml:"notionDatabaseId"`
	NotionTitleKey   string `json:"notion_title_key" yaml:"notionTitleKey"`
	ImgBBAPIKey      string `json:"imgbb_api_key" yaml:"imgbbApiKey"`

	EmailJSServiceID  string `json:"emailjs_service_id" yaml:"emailjsServiceId"`
	EmailJSTemplateID string `json:"emailjs_template_id" yaml:"emailjsTemplateId"`
	EmailJSPublicKey  string `json:"emailjs_public_key" yaml:"emailjsPublicKey"`
	EmailJSPrivateKey string `json:"emailjs_private_key" yaml:"emailjsPrivateKey"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (s Settings) Trimmed() Settings {
	return Settings{
		NotionToken:       strings.TrimSpace(s.NotionToken),
		NotionDatabaseID:  strings.TrimSpace(s.NotionDatabaseID),
		NotionTitleKey:    strings.TrimSpace(s.NotionTitleKey),
		ImgBBAPIKey:       strings.TrimSpace(s.ImgBBAPIKey),
		EmailJSServiceID:  strings.TrimSpace(s.EmailJSServiceID),
		EmailJSTemplateID: strings.TrimSpace(s.EmailJSTemplateID),
		EmailJSPublicKey:  strings.TrimSpace(s.EmailJSPublicKey),
		EmailJSPrivateKey: strings.TrimSpace(s.EmailJSPrivateKey),
	}
}

// TitleKey returns the configured title column or the default one.
func (s Settings) TitleKey() string {
	if s.NotionTitleKey == "" {
		return DefaultTitleKey
	}
	return s.NotionTitleKey
}

// EmailConfigured reports whether EmailJS can be called.
func (s Settings) EmailConfigured() bool {
	return s.EmailJSServiceID != "" && s.EmailJSTemplateID != "" && s.EmailJSPublicKey != ""
}

// Masked hides secrets, keeping the last four characters.
func (s Settings) Masked() Settings {
	out := s
	out.NotionToken = mask(s.NotionToken)
	out.ImgBBAPIKey = mask(s.ImgBBAPIKey)
	out.EmailJSPrivateKey = mask(s.EmailJSPrivateKey)
	return out
}

func mask(v string) string {
	r := []rune(v)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
