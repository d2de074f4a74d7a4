package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/bryanwahyu/moto-intake/internal/application"
	"github.com/bryanwahyu/moto-intake/internal/domain/ai"
	"github.com/bryanwahyu/moto-intake/internal/domain/delivery"
	domain "github.com/bryanwahyu/moto-intake/internal/domain/intake"
	"github.com/bryanwahyu/moto-intake/internal/domain/report"
	"github.com/bryanwahyu/moto-intake/internal/domain/settings"
)

var testNow = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

type memRepo struct {
	mu    sync.Mutex
	items map[domain.ID]domain.Intake
	saves int
}

func newMemRepo() *memRepo { return &memRepo{items: map[domain.ID]domain.Intake{}} }

func clone(in domain.Intake) *domain.Intake {
	out := in
	out.Images = append([]domain.Image{}, in.Images...)
	out.Notion.ImageURLs = append([]string(nil), in.Notion.ImageURLs...)
	if in.Analysis != nil {
		a := *in.Analysis
		out.Analysis = &a
	}
	if in.Email != nil {
		e := *in.Email
		out.Email = &e
	}
	return &out
}

func (r *memRepo) Save(ctx context.Context, in *domain.Intake) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[in.ID] = *clone(*in)
	r.saves++
	return nil
}

func (r *memRepo) Get(ctx context.Context, id domain.ID) (*domain.Intake, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(in), nil
}

func (r *memRepo) Delete(ctx context.Context, id domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memRepo) Paginate(ctx context.Context, page, pageSize int) ([]*domain.Intake, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*domain.Intake, 0, len(r.items))
	for _, in := range r.items {
		all = append(all, clone(in))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := min(start+pageSize, len(all))
	return all[start:end], int64(len(all)), nil
}

type memImages struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemImages() *memImages { return &memImages{data: map[string][]byte{}} }

func (m *memImages) Put(ctx context.Context, key string, r io.Reader, size int64, mimeType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func (m *memImages) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (m *memImages) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeAI struct {
	calls  int
	last   ai.Request
	result ai.Result
	err    error
	during func()
}

func (f *fakeAI) Analyze(ctx context.Context, req ai.Request) (ai.Result, error) {
	f.calls++
	f.last = req
	if f.during != nil {
		f.during()
	}
	return f.result, f.err
}

func (f *fakeAI) Model() string { return "fake-model" }

type staticSettings settings.Settings

func (s staticSettings) Get(ctx context.Context) settings.Settings { return settings.Settings(s) }

type fakeRenderer struct{}

func (fakeRenderer) HTML(doc report.Document) (string, error) {
	return "<h1>" + doc.VehiclePlate + "</h1>", nil
}

func (fakeRenderer) Text(doc report.Document) (string, error) {
	return fmt.Sprintf("RAPORT %s\n%s\nZdjęcia: %d/%d", doc.VehiclePlate, doc.Damages, doc.PhotoCount, len(doc.Photos)), nil
}

type fakePrinter struct{ html string }

func (p *fakePrinter) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	p.html = html
	return []byte("%PDF-1.4"), nil
}

type fakeNotes struct {
	pages []delivery.Page
	url   string
	err   error
}

func (f *fakeNotes) CreatePage(ctx context.Context, token string, p delivery.Page) (string, error) {
	f.pages = append(f.pages, p)
	return f.url, f.err
}

type fakeHost struct {
	uploaded []string
	failAt   int // 1-based, 0 never
}

func (f *fakeHost) Upload(ctx context.Context, apiKey, filename string, data []byte) (string, error) {
	if f.failAt > 0 && len(f.uploaded)+1 == f.failAt {
		return "", &delivery.UpstreamError{Service: "imgbb", StatusCode: 500}
	}
	f.uploaded = append(f.uploaded, filename)
	return "https://i.ibb.co/" + filename, nil
}

// cancellingHost cancels the request while the first photo is uploading.
type cancellingHost struct{ cancel context.CancelFunc }

func (h cancellingHost) Upload(ctx context.Context, apiKey, filename string, data []byte) (string, error) {
	h.cancel()
	return "", ctx.Err()
}

// ctxRepo refuses writes on a cancelled context and can fail the n-th Save (1-based).
type ctxRepo struct {
	*memRepo
	failOn int
	calls  int
}

func (r *ctxRepo) Save(ctx context.Context, in *domain.Intake) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.calls++
	if r.calls == r.failOn {
		return errors.New("database is locked")
	}
	return r.memRepo.Save(ctx, in)
}

type fakeMailer struct {
	sent []delivery.Mail
	acct delivery.MailAccount
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, acct delivery.MailAccount, m delivery.Mail) error {
	f.acct = acct
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

type fixture struct {
	svc    *Service
	repo   *memRepo
	images *memImages
	ai     *fakeAI
	notes  *fakeNotes
	host   *fakeHost
	mailer *fakeMailer
}

const testDBID = "6335b6e7997a4097b08f2cba5feb5c6a"

func newFixture(cfg settings.Settings) *fixture {
	f := &fixture{
		repo:   newMemRepo(),
		images: newMemImages(),
		ai:     &fakeAI{result: ai.Result{Damages: "Wgniecenie zderzaka", Symptoms: "Stuki przy skręcaniu"}},
		notes:  &fakeNotes{url: "https://www.notion.so/page-1"},
		host:   &fakeHost{},
		mailer: &fakeMailer{},
	}
	f.svc = &Service{
		Repo:     f.repo,
		Images:   f.images,
		AI:       f.ai,
		Settings: staticSettings(cfg),
		Renderer: fakeRenderer{},
		Notes:    f.notes,
		Host:     f.host,
		Mailer:   f.mailer,
		Clock:    application.FixedClock(testNow),
	}
	return f
}

func notionSettings() settings.Settings {
	return settings.Settings{NotionToken: "ntn_token", NotionDatabaseID: testDBID}
}
