package delivery

import (
	"context"

	"github.com/bryanwahyu/moto-intake/internal/domain/intake"
)

// Page is the content of one notes-database entry.
type Page struct {
	DatabaseID string
	TitleKey   string
	Form       intake.Form
	Analysis   *intake.Analysis
	ImageURLs  []string
	// PhotosPending is set when photos exist but none could be hosted.
	PhotosPending bool
}

// NotesPublisher creates pages in the notes database (Notion).
type NotesPublisher interface {
	CreatePage(ctx context.Context, token string, p Page) (pageURL string, err error)
}

// ImageHost uploads a photo and returns its public URL (ImgBB).
type ImageHost interface {
	Upload(ctx context.Context, apiKey, filename string, data []byte) (string, error)
}

// MailAccount identifies the e-mail template and credentials (EmailJS).
type MailAccount struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
	PrivateKey string
}

// Mail is one templated message.
type Mail struct {
	To     string
	Params map[string]string
}

// Mailer sends templated e-mails.
type Mailer interface {
	Send(ctx context.Context, acct MailAccount, m Mail) error
}
