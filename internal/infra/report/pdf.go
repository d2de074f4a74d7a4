package report

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// A4 in inches, 5 mm margins.
const (
	a4Width  = 8.27
	a4Height = 11.69
	margin   = 0.197
)

// PDFPrinter prints HTML with headless Chrome. The browser starts on first use and is reused.
type PDFPrinter struct {
	bin      string
	headless bool
	log      *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewPDFPrinter uses bin as the Chrome binary; empty means rod's default lookup/download.
func NewPDFPrinter(bin string, headless bool, log *zap.Logger) *PDFPrinter {
	if log == nil {
		log = zap.NewNop()
	}
	return &PDFPrinter{bin: bin, headless: headless, log: log}
}

func (p *PDFPrinter) ensureBrowser() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser != nil {
		if _, err := p.browser.Version(); err == nil {
			return p.browser, nil
		}
		p.log.Warn("stale browser connection, relaunching")
		_ = p.browser.Close()
		p.browser = nil
	}

	l := launcher.New().Headless(p.headless)
	if p.bin != "" {
		l = l.Bin(p.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	p.browser = b
	p.log.Info("headless chrome started")
	return b, nil
}

func (p *PDFPrinter) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	b, err := p.ensureBrowser()
	if err != nil {
		return nil, err
	}
	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	r, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
		PaperWidth:        f64(a4Width),
		PaperHeight:       f64(a4Height),
		MarginTop:         f64(margin),
		MarginBottom:      f64(margin),
		MarginLeft:        f64(margin),
		MarginRight:       f64(margin),
	})
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	return io.ReadAll(r)
}

// Close stops the browser.
func (p *PDFPrinter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser == nil {
		return nil
	}
	err := p.browser.Close()
	p.browser = nil
	return err
}

func f64(v float64) *float64 { return &v }
