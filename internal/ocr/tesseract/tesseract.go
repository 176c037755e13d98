// Package tesseract renders PDF pages with MuPDF and recognizes them with
// Tesseract. Both are cgo bindings.
package tesseract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/poledger/internal/ocr"
	"github.com/dgallion1/poledger/internal/ocr/hocr"
	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

// Options configures rendering and recognition.
type Options struct {
	DPI       int
	Languages []string
}

// Engine recognizes scanned ledger pages.
type Engine struct {
	opts          Options
	clientFactory func() *gosseract.Client
}

var _ ocr.Engine = (*Engine)(nil)

// New returns a tesseract engine. Zero options default to 300 DPI English.
func New(opts Options) *Engine {
	if opts.DPI <= 0 {
		opts.DPI = 300
	}
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"eng"}
	}
	return &Engine{opts: opts, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return ocr.EngineTesseract }

// Recognize renders every page of the PDF window and returns one text per page.
func (e *Engine) Recognize(ctx context.Context, data []byte) ([]string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	client := e.clientFactory()
	defer client.Close()
	if err := e.configure(client); err != nil {
		return nil, err
	}

	n := doc.NumPage()
	pages := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImagePNG(i, float64(e.opts.DPI))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		text, err := recognizePage(client, img)
		if err != nil {
			return nil, fmt.Errorf("recognize page %d: %w", i+1, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func (e *Engine) configure(c *gosseract.Client) error {
	if err := c.SetLanguage(e.opts.Languages...); err != nil {
		return fmt.Errorf("set languages: %w", err)
	}
	// The ledger is a single uniform block of text.
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return fmt.Errorf("set page segmentation: %w", err)
	}
	if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(e.opts.DPI)); err != nil {
		return fmt.Errorf("set dpi: %w", err)
	}
	return nil
}

func recognizePage(c *gosseract.Client, img []byte) (string, error) {
	if err := c.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	out, err := c.HOCRText()
	if err != nil {
		return "", err
	}
	return hocr.PageText(strings.NewReader(out))
}
