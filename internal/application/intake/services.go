package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/moto-intake/internal/application"
	"github.com/bryanwahyu/moto-intake/internal/domain/ai"
	"github.com/bryanwahyu/moto-intake/internal/domain/delivery"
	domain "github.com/bryanwahyu/moto-intake/internal/domain/intake"
	"github.com/bryanwahyu/moto-intake/internal/domain/report"
	"github.com/bryanwahyu/moto-intake/internal/domain/settings"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	photoLoaders    = 4
)

// SettingsSource returns the current external-service settings.
type SettingsSource interface {
	Get(ctx context.Context) settings.Settings
}

// Service implements the intake use-cases. It is safe for concurrent use;
// mutations of the same intake are serialised.
type Service struct {
	Repo     domain.Repository
	Images   domain.ImageStore
	AI       ai.Client
	Settings SettingsSource
	Renderer report.Renderer
	Printer  report.PDFPrinter
	Notes    delivery.NotesPublisher
	Host     delivery.ImageHost
	Mailer   delivery.Mailer
	Clock    application.Clock
	Log      *zap.Logger

	locks keyedMutex
}

func (s *Service) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

//
// ==== FORM ====
//

// Create starts a new intake draft from the submitted form.
func (s *Service) Create(ctx context.Context, form domain.Form) (*domain.Intake, error) {
	now := s.clock().Now()
	in := &domain.Intake{
		ID:        domain.ID(uuid.New().String()),
		CreatedAt: now,
		UpdatedAt: now,
		Form:      form,
		Images:    []domain.Image{},
		Notion:    domain.NotionExport{Status: domain.NotionIdle},
	}
	if err := s.Repo.Save(ctx, in); err != nil {
		return nil, fmt.Errorf("save intake: %w", err)
	}
	s.log().Info("intake created", zap.String("intake_id", string(in.ID)))
	return in, nil
}

func (s *Service) Get(ctx context.Context, id domain.ID) (*domain.Intake, error) {
	return s.Repo.Get(ctx, id)
}

// List returns one page of intakes, newest first.
func (s *Service) List(ctx context.Context, page, pageSize int) (domain.PaginatedResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	items, total, err := s.Repo.Paginate(ctx, page, pageSize)
	if err != nil {
		return domain.PaginatedResult{}, err
	}
	if items == nil {
		items = []*domain.Intake{}
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return domain.PaginatedResult{
		Data:       items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// UpdateForm replaces the whole form of an intake.
func (s *Service) UpdateForm(ctx context.Context, id domain.ID, form domain.Form) (*domain.Intake, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	in, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.Form = form
	in.UpdatedAt = s.clock().Now()
	if err := s.Repo.Save(ctx, in); err != nil {
		return nil, fmt.Errorf("save intake: %w", err)
	}
	return in, nil
}

// Delete discards an intake together with its photos.
func (s *Service) Delete(ctx context.Context, id domain.ID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	in, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, img := range in.Images {
		if err := s.Images.Delete(ctx, domain.ImageKey(id, img.ID)); err != nil {
			s.log().Warn("delete photo", zap.String("intake_id", string(id)), zap.Error(err))
		}
	}
	return s.Repo.Delete(ctx, id)
}

//
// ==== PHOTOS ====
//

// AddImage attaches a photo. Only image/* content is accepted.
func (s *Service) AddImage(ctx context.Context, id domain.ID, filename, mimeType string, r io.Reader, size int64) (domain.Image, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.Image{}, domain.ErrInvalidImage
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	in, err := s.Repo.Get(ctx, id)
	if err != nil {
		return domain.Image{}, err
	}
	img := domain.Image{
		ID:         domain.ImageID(uuid.New().String()),
		Filename:   filename,
		MimeType:   mimeType,
		Size:       size,
		UploadedAt: s.clock().Now(),
	}
	key := domain.ImageKey(id, img.ID)
	if err := s.Images.Put(ctx, key, r, size, mimeType); err != nil {
		return domain.Image{}, fmt.Errorf("store photo: %w", err)
	}
	in.Images = append(in.Images, img)
	in.UpdatedAt = img.UploadedAt
	if err := s.Repo.Save(ctx, in); err != nil {
		_ = s.Images.Delete(context.Background(), key)
		return domain.Image{}, fmt.Errorf("save intake: %w", err)
	}
	return img, nil
}

// GetImage returns photo metadata and bytes for the preview.
func (s *Service) GetImage(ctx context.Context, id domain.ID, imageID domain.ImageID) (domain.Image, []byte, error) {
	in, err := s.Repo.Get(ctx, id)
	if err != nil {
		return domain.Image{}, nil, err
	}
	img, ok := in.Image(imageID)
	if !ok {
		return domain.Image{}, nil, domain.ErrNotFound
	}
	data, err := s.readPhoto(ctx, id, imageID)
	if err != nil {
		return domain.Image{}, nil, fmt.Errorf("load photo: %w", err)
	}
	return img, data, nil
}

// RemoveImage detaches a photo; the remaining ones keep their order.
func (s *Service) RemoveImage(ctx context.Context, id domain.ID, imageID domain.ImageID) (*domain.Intake, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	in, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !in.RemoveImage(imageID) {
		return nil, domain.ErrNotFound
	}
	in.UpdatedAt = s.clock().Now()
	if err := s.Repo.Save(ctx, in); err != nil {
		return nil, fmt.Errorf("save intake: %w", err)
	}
	if err := s.Images.Delete(ctx, domain.ImageKey(id, imageID)); err != nil {
		s.log().Warn("delete photo", zap.String("image_id", string(imageID)), zap.Error(err))
	}
	return in, nil
}

// readPhoto loads one photo. A photo listed on the intake whose bytes are gone is
// reported as ErrPhotoMissing, not as a missing intake.
func (s *Service) readPhoto(ctx context.Context, id domain.ID, imageID domain.ImageID) ([]byte, error) {
	data, err := s.Images.Get(ctx, domain.ImageKey(id, imageID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPhotoMissing
	}
	return data, err
}

// loadPhotos reads the bytes of every attached photo concurrently, keeping their order.
func (s *Service) loadPhotos(ctx context.Context, in *domain.Intake) ([][]byte, error) {
	out := make([][]byte, len(in.Images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(photoLoaders)
	for i, img := range in.Images {
		g.Go(func() error {
			data, err := s.readPhoto(gctx, in.ID, img.ID)
			if err != nil {
				return fmt.Errorf("load photo %s: %w", img.ID, err)
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

//
// ==== AI ====
//

// Analyze runs the damage analysis. The previous result is cleared first and only replaced on
// success, so a failed run leaves the intake without a result.
func (s *Service) Analyze(ctx context.Context, id domain.ID) (*domain.Intake, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	in, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(in.Images) == 0 {
		return nil, domain.ErrNoImages
	}

	in.Analysis = nil
	in.UpdatedAt = s.clock().Now()
	if err := s.Repo.Save(ctx, in); err != nil {
		return nil, fmt.Errorf("save intake: %w", err)
	}

	blobs, err := s.loadPhotos(ctx, in)
	if err != nil {
		return nil, err
	}
	req := ai.Request{Description: in.Form.Description, Photos: make([]ai.Photo, len(blobs))}
	for i, b := range blobs {
		req.Photos[i] = ai.Photo{MimeType: in.Images[i].MimeType, Data: b}
	}

	res, err := s.AI.Analyze(ctx, req)
	if err != nil {
		s.log().Error("ai analysis failed", zap.String("intake_id", string(id)), zap.Error(err))
		msg := err.Error()
		if errors.Is(err, ai.ErrEmptyResponse) {
			msg = "Pusta odpowiedź od AI"
		}
		return nil, &ActionError{Message: "Błąd analizy AI: " + msg, Err: err}
	}

	now := s.clock().Now()
	in.Analysis = &domain.Analysis{
		Damages:    res.Damages,
		Symptoms:   res.Symptoms,
		Model:      s.AI.Model(),
		AnalyzedAt: now,
	}
	in.UpdatedAt = now
	if err := s.Repo.Save(ctx, in); err != nil {
		return nil, fmt.Errorf("save intake: %w", err)
	}
	s.log().Info("intake analyzed", zap.String("intake_id", string(id)), zap.String("model", in.Analysis.Model))
	return in, nil
}

//
// ==== REPORT ====
//

func (s *Service) document(ctx context.Context, in *domain.Intake, withPhotos bool) (report.Document, error) {
	if in.Analysis == nil {
		return report.Document{}, domain.ErrNotAnalyzed
	}
	f := in.Form
	doc := report.Document{
		GeneratedAt:  s.clock().Now(),
		ClientName:   f.ClientName,
		ClientPhone:  f.ClientPhone,
		ClientEmail:  f.ClientEmail,
		VehiclePlate: f.VehiclePlate,
		VehicleMake:  f.VehicleMake,
		VehicleModel: f.VehicleModel,
		VehicleYear:  f.VehicleYear,
		VehicleVIN:   f.VehicleVIN,
		Description:  f.Description,
		Damages:      in.Analysis.Damages,
		Symptoms:     in.Analysis.Symptoms,
		PhotoCount:   len(in.Images),
	}
	if withPhotos && len(in.Images) > 0 {
		blobs, err := s.loadPhotos(ctx, in)
		if err != nil {
			return report.Document{}, err
		}
		for i, b := range blobs {
			doc.Photos = append(doc.Photos, report.Photo{MimeType: in.Images[i].MimeType, Data: b})
		}
	}
	return doc, nil
}

// RenderHTML returns the printable protocol.
func (s *Service) RenderHTML(ctx context.Context, id domain.ID) (string, error) {
	in, err := s.Repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	doc, err := s.document(ctx, in, true)
	if err != nil {
		return "", err
	}
	return s.Renderer.HTML(doc)
}

// RenderText returns the plain-text summary.
func (s *Service) RenderText(ctx context.Context, id domain.ID) (string, error) {
	in, err := s.Repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	doc, err := s.document(ctx, in, false)
	if err != nil {
		return "", err
	}
	return s.Renderer.Text(doc)
}

// RenderPDF prints the protocol and returns the PDF with its download name.
func (s *Service) RenderPDF(ctx context.Context, id domain.ID) ([]byte, string, error) {
	if s.Printer == nil {
		return nil, "", report.ErrPrinterUnavailable
	}
	in, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	doc, err := s.document(ctx, in, true)
	if err != nil {
		return nil, "", err
	}
	html, err := s.Renderer.HTML(doc)
	if err != nil {
		return nil, "", err
	}
	pdf, err := s.Printer.PrintPDF(ctx, html)
	if err != nil {
		return nil, "", fmt.Errorf("print pdf: %w", err)
	}
	return pdf, doc.Filename(), nil
}
