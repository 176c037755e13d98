// Package ocr turns the bytes of one page window into per-page text.
package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Engine recognizes the pages of one window. The returned slice holds the
// text of each page in order; its length never exceeds the window's page count.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, data []byte) ([]string, error)
}

// Engine names accepted by Select.
const (
	EngineAuto      = "auto"
	EngineTesseract = "tesseract"
	EngineTextLayer = "textlayer"
	EnginePlainText = "plaintext"
)

// Select builds the engine for name. tess is the image OCR engine used by
// "tesseract" and as the fallback of "auto"; it may be nil for "textlayer".
func Select(name string, tess Engine) (Engine, error) {
	switch name {
	case EngineTextLayer:
		return &TextLayer{}, nil
	case EngineTesseract:
		if tess == nil {
			return nil, fmt.Errorf("ocr engine %q not available", name)
		}
		return tess, nil
	case EngineAuto, "":
		if tess == nil {
			return &TextLayer{}, nil
		}
		return &Fallback{Primary: &TextLayer{}, Secondary: tess}, nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", name)
	}
}

// PlainText treats the window as already-recognized text, one page per
// form-feed separated section.
type PlainText struct{}

func (PlainText) Name() string { return EnginePlainText }

func (PlainText) Recognize(ctx context.Context, data []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return strings.Split(string(data), "\f"), nil
}

// Fallback runs Primary and switches to Secondary when Primary fails or
// yields no text on any page. Scanned ledgers have no text layer.
type Fallback struct {
	Primary   Engine
	Secondary Engine
}

func (f *Fallback) Name() string {
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

func (f *Fallback) Recognize(ctx context.Context, data []byte) ([]string, error) {
	pages, err := f.Primary.Recognize(ctx, data)
	if err == nil && !blank(pages) {
		return pages, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return f.Secondary.Recognize(ctx, data)
}

func blank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// Instrumented records the latency of every Recognize call.
type Instrumented struct {
	Engine Engine
	Stats  *LatencyStats
}

func (i *Instrumented) Name() string { return i.Engine.Name() }

func (i *Instrumented) Recognize(ctx context.Context, data []byte) ([]string, error) {
	start := time.Now()
	pages, err := i.Engine.Recognize(ctx, data)
	if i.Stats != nil {
		i.Stats.Record(time.Since(start).Milliseconds())
	}
	return pages, err
}
