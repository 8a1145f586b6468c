package sheetimage

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestFromImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 32, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			img.Pix[y*img.Stride+x] = uint8(x * 8)
		}
	}

	sheet, err := FromImage(img)
	if err != nil {
		t.Fatalf("FromImage: %v", err)
	}
	defer sheet.Close()

	if sheet.Width != 32 || sheet.Height != 16 {
		t.Errorf("size %dx%d, want 32x16", sheet.Width, sheet.Height)
	}
	if sheet.Gray.Rows() != 16 || sheet.Gray.Cols() != 32 {
		t.Errorf("mat %dx%d, want 16 rows x 32 cols", sheet.Gray.Rows(), sheet.Gray.Cols())
	}
	// Gray input passes through the luma transform unchanged, within rounding.
	for _, x := range []int{0, 8, 31} {
		want := x * 8
		got := int(sheet.Gray.GetUCharAt(4, x))
		if got < want-1 || got > want+1 {
			t.Errorf("pixel (%d,4) = %d, want about %d", x, got, want)
		}
	}
}

func TestFromImageEmpty(t *testing.T) {
	if _, err := FromImage(image.NewGray(image.Rect(0, 0, 0, 0))); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestLoadPNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 10))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Pix[5*img.Stride+7] = 0

	path := filepath.Join(t.TempDir(), "scan.png")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(file, img); err != nil {
		t.Fatal(err)
	}
	file.Close()

	sheet, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer sheet.Close()

	if sheet.Path != path {
		t.Errorf("path %q not recorded", sheet.Path)
	}
	if sheet.Width != 20 || sheet.Height != 10 {
		t.Errorf("size %dx%d, want 20x10", sheet.Width, sheet.Height)
	}
	if v := sheet.Gray.GetUCharAt(5, 7); v > 1 {
		t.Errorf("dark pixel read as %d", v)
	}
	if v := sheet.Gray.GetUCharAt(0, 0); v < 199 || v > 201 {
		t.Errorf("light pixel read as %d", v)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadUndecodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}
