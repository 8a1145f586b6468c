// Package sheetimage loads scanned answer sheets into grayscale OpenCV mats.
// It accepts PNG, JPEG and TIFF scans directly and renders PDF pages through
// go-fitz, so sheets delivered as PDF feed the same pipeline.
package sheetimage

import (
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	_ "golang.org/x/image/tiff"
)

// Sheet is a decoded answer-sheet image. Gray is an 8-bit single-channel mat;
// every pipeline stage reads it without modifying it. Close releases the mat.
type Sheet struct {
	Path   string
	Gray   gocv.Mat
	Width  int
	Height int
	DPI    float64
}

// Close releases the underlying mat. The Sheet must not be used afterwards.
func (s *Sheet) Close() {
	if s != nil && !s.Gray.Empty() {
		s.Gray.Close()
	}
}

// Load decodes the image at path into a Sheet. PDF files render their first
// page; use LoadPDFPage to pick another page.
func Load(path string) (*Sheet, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return LoadPDFPage(path, 0, defaultPDFDPI)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	sheet, err := FromImage(img)
	if err != nil {
		return nil, err
	}
	sheet.Path = path

	if ext == ".tiff" || ext == ".tif" {
		if dpi, err := extractTIFFDPI(path); err == nil {
			sheet.DPI = dpi
		}
	}
	return sheet, nil
}

// FromImage converts an already-decoded image into a Sheet. Useful when the
// caller received bytes over the wire and decoded them upstream.
func FromImage(img image.Image) (*Sheet, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image")
	}

	gray := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 luma, 16-bit inputs
			gray.SetUCharAt(y, x, uint8((19595*r+38470*g+7471*b+1<<15)>>24))
		}
	}

	return &Sheet{Gray: gray, Width: w, Height: h}, nil
}

// extractTIFFDPI reads the X/Y resolution tags from a TIFF file's first IFD.
func extractTIFFDPI(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	header := make([]byte, 8)
	if _, err := file.Read(header); err != nil {
		return 0, err
	}

	var byteOrder binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		byteOrder = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		byteOrder = binary.BigEndian
	default:
		return 0, fmt.Errorf("not a valid TIFF file")
	}

	ifdOffset := byteOrder.Uint32(header[4:8])
	if _, err := file.Seek(int64(ifdOffset), 0); err != nil {
		return 0, err
	}

	var numEntries uint16
	if err := binary.Read(file, byteOrder, &numEntries); err != nil {
		return 0, err
	}

	const (
		tagXResolution    = 282
		tagResolutionUnit = 296
	)

	var xRes float64
	var resUnit uint16 = 2 // inches

	entry := make([]byte, 12)
	for i := uint16(0); i < numEntries; i++ {
		if _, err := file.Read(entry); err != nil {
			return 0, err
		}
		tag := byteOrder.Uint16(entry[0:2])
		switch tag {
		case tagXResolution:
			// RATIONAL stored at the offset in the value field
			valOffset := byteOrder.Uint32(entry[8:12])
			pos, _ := file.Seek(0, 1)
			if _, err := file.Seek(int64(valOffset), 0); err != nil {
				return 0, err
			}
			rational := make([]byte, 8)
			if _, err := file.Read(rational); err != nil {
				return 0, err
			}
			num := byteOrder.Uint32(rational[0:4])
			den := byteOrder.Uint32(rational[4:8])
			if den != 0 {
				xRes = float64(num) / float64(den)
			}
			if _, err := file.Seek(pos, 0); err != nil {
				return 0, err
			}
		case tagResolutionUnit:
			resUnit = byteOrder.Uint16(entry[8:10])
		}
	}

	if xRes == 0 {
		return 0, fmt.Errorf("no resolution tag")
	}
	if resUnit == 3 { // centimeters
		xRes *= 2.54
	}
	return xRes, nil
}
