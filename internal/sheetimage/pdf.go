package sheetimage

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// defaultPDFDPI renders PDF pages at a resolution where typical answer-sheet
// bubbles land inside the default candidate area range.
const defaultPDFDPI = 200

// LoadPDFPage renders one page of a PDF into a Sheet. Pages are zero-indexed.
func LoadPDFPage(path string, page int, dpi float64) (*Sheet, error) {
	if dpi <= 0 {
		dpi = defaultPDFDPI
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range, document has %d pages", page, doc.NumPage())
	}

	img, err := doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF page %d: %w", page, err)
	}

	sheet, err := FromImage(img)
	if err != nil {
		return nil, err
	}
	sheet.Path = path
	sheet.DPI = dpi
	return sheet, nil
}
