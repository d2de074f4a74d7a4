package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/moto-intake/internal/domain/delivery"
	domain "github.com/bryanwahyu/moto-intake/internal/domain/intake"
	"github.com/bryanwahyu/moto-intake/internal/domain/settings"
)

const missingColumnMarker = "property that exists"

// SaveToNotion pushes the intake to the notes database. Photos are hosted on ImgBB first,
// one by one; the first failed upload stops the loop and the page is saved with what was hosted.
func (s *Service) SaveToNotion(ctx context.Context, id domain.ID, confirmed bool) (*domain.Intake, error) {
	cfg := s.Settings.Get(ctx)
	if cfg.NotionToken == "" || cfg.NotionDatabaseID == "" {
		return nil, settings.ErrNotionNotConfigured
	}
	dbID, ok := settings.ExtractDatabaseID(cfg.NotionDatabaseID)
	if !ok {
		return nil, settings.ErrInvalidDatabaseID
	}

	// fase 1: cek guard dan tandai status di bawah lock
	unlock := s.locks.Lock(id)
	in, err := s.Repo.Get(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}
	now := s.clock().Now()
	switch {
	case in.Notion.Running(now):
		unlock()
		return nil, domain.ErrExportInProgress
	case in.Notion.Status == domain.NotionSuccess:
		unlock()
		return nil, domain.ErrAlreadyExported
	}
	if in.Analysis == nil && in.Form.ClientName == "" && !confirmed {
		unlock()
		return nil, domain.ErrConfirmationRequired
	}
	if in.Notion.Status.Busy() {
		s.log().Warn("stale notion export restarted",
			zap.String("intake_id", string(id)),
			zap.Time("started_at", in.Notion.StartedAt),
		)
	}
	uploading := cfg.ImgBBAPIKey != "" && len(in.Images) > 0
	in.Notion = domain.NotionExport{Status: domain.NotionSaving, StartedAt: now}
	if uploading {
		in.Notion.Status = domain.NotionUploadingImages
	}
	in.UpdatedAt = now
	err = s.Repo.Save(ctx, in)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("save intake: %w", err)
	}

	// dari sini status wajib ditulis walau request dibatalkan, biar gak nyangkut di "saving"
	saveCtx := context.WithoutCancel(ctx)
	finished := false
	defer func() {
		if !finished {
			s.abortExport(saveCtx, id)
		}
	}()

	// fase 2: upload foto (sequential)
	var urls []string
	var warning string
	if uploading {
		urls, warning = s.hostPhotos(ctx, in, cfg.ImgBBAPIKey)
		if err := s.setNotionStatus(saveCtx, id, domain.NotionExport{
			Status:    domain.NotionSaving,
			ImageURLs: urls,
			Warning:   warning,
			StartedAt: now,
		}); err != nil {
			return nil, err
		}
	}

	page := delivery.Page{
		DatabaseID:    dbID,
		TitleKey:      cfg.TitleKey(),
		Form:          in.Form,
		Analysis:      in.Analysis,
		ImageURLs:     urls,
		PhotosPending: len(urls) == 0 && len(in.Images) > 0,
	}
	pageURL, perr := s.Notes.CreatePage(ctx, cfg.NotionToken, page)

	// fase 3: simpan hasil
	result := domain.NotionExport{ImageURLs: urls, Warning: warning}
	var out error
	if perr != nil {
		msg := notionMessage(perr)
		result.Status = domain.NotionError
		result.Error = msg
		out = &ActionError{Message: "Błąd zapisu: " + msg, Err: perr}
		s.log().Error("notion export failed", zap.String("intake_id", string(id)), zap.Error(perr))
	} else {
		result.Status = domain.NotionSuccess
		if warning != "" || page.PhotosPending {
			result.Status = domain.NotionFallback
		}
		result.PageURL = pageURL
		s.log().Info("notion page created",
			zap.String("intake_id", string(id)),
			zap.String("page_url", pageURL),
			zap.Int("images", len(urls)),
		)
	}

	unlock = s.locks.Lock(id)
	defer unlock()
	latest, err := s.Repo.Get(saveCtx, id)
	if err != nil {
		if out != nil {
			return nil, out
		}
		return nil, err
	}
	latest.Notion = result
	latest.UpdatedAt = s.clock().Now()
	if err := s.Repo.Save(saveCtx, latest); err != nil {
		return nil, fmt.Errorf("save intake: %w", err)
	}
	finished = true
	if out != nil {
		return latest, out
	}
	return latest, nil
}

// abortExport marks an export that could not record its result as failed, so it can be retried.
func (s *Service) abortExport(ctx context.Context, id domain.ID) {
	unlock := s.locks.Lock(id)
	defer unlock()
	in, err := s.Repo.Get(ctx, id)
	if err != nil || !in.Notion.Status.Busy() {
		return
	}
	in.Notion.Status = domain.NotionError
	in.Notion.Error = "Zapis do Notion został przerwany."
	if err := s.Repo.Save(ctx, in); err != nil {
		s.log().Error("reset notion export", zap.String("intake_id", string(id)), zap.Error(err))
	}
}

func (s *Service) hostPhotos(ctx context.Context, in *domain.Intake, apiKey string) ([]string, string) {
	var urls []string
	for _, img := range in.Images {
		data, err := s.readPhoto(ctx, in.ID, img.ID)
		if err == nil {
			var url string
			url, err = s.Host.Upload(ctx, apiKey, img.Filename, data)
			if err == nil {
				urls = append(urls, url)
				continue
			}
		}
		s.log().Warn("imgbb upload failed, saving text only",
			zap.String("intake_id", string(in.ID)),
			zap.String("image_id", string(img.ID)),
			zap.Error(err),
		)
		return urls, fmt.Sprintf("Błąd wysyłania zdjęć do ImgBB: %s. Zapiszę dane tekstowe bez zdjęć.", upstreamText(err))
	}
	return urls, ""
}

func (s *Service) setNotionStatus(ctx context.Context, id domain.ID, exp domain.NotionExport) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	in, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	in.Notion = exp
	if err := s.Repo.Save(ctx, in); err != nil {
		return fmt.Errorf("save intake: %w", err)
	}
	return nil
}

// upstreamText drops the service prefix from upstream failures.
func upstreamText(err error) string {
	var up *delivery.UpstreamError
	switch {
	case errors.As(err, &up):
		return up.Detail()
	case errors.Is(err, domain.ErrPhotoMissing):
		return "zdjęcie nie jest już dostępne"
	}
	return err.Error()
}

// notionMessage turns a failed page creation into the text shown to the mechanic.
func notionMessage(err error) string {
	var up *delivery.UpstreamError
	if !errors.As(err, &up) {
		return err.Error()
	}
	if strings.Contains(up.Body, missingColumnMarker) {
		return "Nie znaleziono kolumny w Notion. Notion zwrócił: " + up.Message
	}
	return "Sprawdź nazwy kolumn."
}

// SendEmail mails the plain-text report. The recipient defaults to the client's address.
func (s *Service) SendEmail(ctx context.Context, id domain.ID, to string) (*domain.Intake, error) {
	cfg := s.Settings.Get(ctx)
	if !cfg.EmailConfigured() {
		return nil, settings.ErrEmailNotConfigured
	}
	in, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Analysis == nil {
		return nil, domain.ErrNotAnalyzed
	}
	recipient := strings.TrimSpace(to)
	if recipient == "" {
		recipient = strings.TrimSpace(in.Form.ClientEmail)
	}
	if recipient == "" {
		return nil, domain.ErrNoRecipient
	}

	doc, err := s.document(ctx, in, false)
	if err != nil {
		return nil, err
	}
	text, err := s.Renderer.Text(doc)
	if err != nil {
		return nil, fmt.Errorf("render text report: %w", err)
	}

	mail := delivery.Mail{
		To: recipient,
		Params: map[string]string{
			"to_email":    recipient,
			"to_name":     in.Form.ClientName,
			"vehicle":     doc.Vehicle(),
			"plate":       in.Form.VehiclePlate,
			"damages":     in.Analysis.Damages,
			"symptoms":    in.Analysis.Symptoms,
			"report_text": text,
			"notion_url":  in.Notion.PageURL,
		},
	}
	acct := delivery.MailAccount{
		ServiceID:  cfg.EmailJSServiceID,
		TemplateID: cfg.EmailJSTemplateID,
		PublicKey:  cfg.EmailJSPublicKey,
		PrivateKey: cfg.EmailJSPrivateKey,
	}
	if err := s.Mailer.Send(ctx, acct, mail); err != nil {
		s.log().Error("email dispatch failed", zap.String("intake_id", string(id)), zap.Error(err))
		return nil, &ActionError{Message: "Błąd wysyłki e-mail: " + upstreamText(err), Err: err}
	}

	unlock := s.locks.Lock(id)
	defer unlock()
	latest, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	latest.Email = &domain.EmailDispatch{SentTo: recipient, SentAt: s.clock().Now()}
	latest.UpdatedAt = latest.Email.SentAt
	if err := s.Repo.Save(ctx, latest); err != nil {
		return nil, fmt.Errorf("save intake: %w", err)
	}
	s.log().Info("report e-mailed", zap.String("intake_id", string(id)))
	return latest, nil
}
