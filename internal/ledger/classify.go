package ledger

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags a classified line.
type Kind int

const (
	Unrecognized Kind = iota
	Header
	LineItem
	AccountLine
	InvoicedLine
	InvoicedZeroLine
)

var kindNames = map[Kind]string{
	Unrecognized:     "unrecognized",
	Header:           "header",
	LineItem:         "line_item",
	AccountLine:      "account",
	InvoicedLine:     "invoiced",
	InvoicedZeroLine: "invoiced_zero",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Line is a classified text line. Only the fields for its Kind are set.
type Line struct {
	Kind Kind

	PO   POContext       // Header
	Item LineItemContext // LineItem

	AccountCode string          // AccountLine
	Amount      decimal.Decimal // AccountLine

	StillToInvoice decimal.Decimal // InvoicedLine, InvoicedZeroLine
	Percent        decimal.Decimal // InvoicedLine, InvoicedZeroLine
}

// noiseMarker starts a line tesseract produces from the ledger's ruling.
const noiseMarker = "ee en ed"

// IsNoise reports whether a trimmed line is skipped before classification.
func IsNoise(line string) bool {
	return line == "" || strings.HasPrefix(line, noiseMarker)
}

// Patterns is the fixed grammar of the PO ledger. Build it once with
// NewPatterns and share it; the matchers are safe for concurrent use.
type Patterns struct {
	Header       *regexp.Regexp
	LineItem     *regexp.Regexp
	Account      *regexp.Regexp
	Invoiced     *regexp.Regexp
	InvoicedZero *regexp.Regexp
}

// NewPatterns compiles the PO ledger grammar.
func NewPatterns() *Patterns {
	return &Patterns{
		Header: regexp.MustCompile(
			`^(4500\d{6})\s+(FO|NB)\s+(\d+)\s+(.+?)\s+(BC\d)\s+(\d{2}/\d{2}/\d{4})`),
		LineItem: regexp.MustCompile(
			`^(0\d{4})\s+(.+)`),
		Account: regexp.MustCompile(
			`^(?:L\s+)?(?:B\s+)?(\d)\s+([A-Z]{2,4}\d?)\s*(\d{4})?\s+\d+\s+(?:PU|EA|BU)\s+([\d,]+\.\d{2})\s*USD`),
		Invoiced: regexp.MustCompile(
			`^Still to be invoiced\s+(\d+|[OQ]+)\s+(?:PU|EA|BU)\s+([\d,]+\.\d{2})\s*USD\s+(\d+(?:\.\d+)?)\s*[%&$]*`),
		// OCR often reads a zero quantity as letters and drops the unit.
		InvoicedZero: regexp.MustCompile(
			`^Still to be invoiced\s+[OQ0]+\s+(?:(?:PU|EA|BU)\s+)?0\.00\s*USD\s+0\.00\s*[%&$]*`),
	}
}

// Classifier tags lines against a Patterns set.
type Classifier struct {
	p *Patterns
}

// NewClassifier returns a classifier over p, or over a fresh grammar if p is nil.
func NewClassifier(p *Patterns) *Classifier {
	if p == nil {
		p = NewPatterns()
	}
	return &Classifier{p: p}
}

// Classify tags one trimmed line. Lines that match no grammar, or whose
// numbers fail to parse, come back Unrecognized.
func (c *Classifier) Classify(line string) Line {
	if m := c.p.Header.FindStringSubmatch(line); m != nil {
		return Line{Kind: Header, PO: POContext{
			Number:     m[1],
			Type:       m[2],
			VendorID:   m[3],
			VendorName: strings.TrimSpace(m[4]),
			BuyerCode:  m[5],
			Date:       m[6],
		}}
	}

	if m := c.p.LineItem.FindStringSubmatch(line); m != nil {
		return Line{Kind: LineItem, Item: LineItemContext{
			Number:      m[1],
			Description: strings.TrimSpace(m[2]),
		}}
	}

	if m := c.p.Account.FindStringSubmatch(line); m != nil {
		amount, err := ParseAmount(m[4])
		if err != nil {
			return Line{Kind: Unrecognized}
		}
		return Line{
			Kind:        AccountLine,
			AccountCode: strings.TrimSpace(m[2] + " " + m[3]),
			Amount:      amount,
		}
	}

	if m := c.p.Invoiced.FindStringSubmatch(line); m != nil {
		amount, err := ParseAmount(m[2])
		if err != nil {
			return Line{Kind: Unrecognized}
		}
		pct, err := ParsePercent(m[3])
		if err != nil {
			return Line{Kind: Unrecognized}
		}
		return Line{Kind: InvoicedLine, StillToInvoice: amount, Percent: pct}
	}

	if c.p.InvoicedZero.MatchString(line) {
		return Line{Kind: InvoicedZeroLine, StillToInvoice: decimal.Zero, Percent: decimal.Zero}
	}

	return Line{Kind: Unrecognized}
}

// Lines splits page text into trimmed, non-noise lines.
func Lines(pageText string) []string {
	raw := strings.FieldsFunc(pageText, func(r rune) bool {
		return r == '\n' || r == '\r' || r == '\f' || r == '\v'
	})
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if IsNoise(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}
