package romloader

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

func createTestImageFile(t *testing.T, data []byte) string {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to create test image file: %v", err)
	}
	return path
}

func createTestZipFile(t *testing.T, imageData []byte, imageName string) string {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.zip")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create zip file: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	fw, err := w.Create(imageName)
	if err != nil {
		t.Fatalf("failed to create file in zip: %v", err)
	}
	if _, err := fw.Write(imageData); err != nil {
		t.Fatalf("failed to write to zip: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return path
}

func createTestGzipFile(t *testing.T, imageData []byte) string {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.bin.gz")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create gzip file: %v", err)
	}
	defer f.Close()

	w := gzip.NewWriter(f)
	if _, err := w.Write(imageData); err != nil {
		t.Fatalf("failed to write to gzip: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close gzip: %v", err)
	}
	return path
}

func TestLoader_RawImageLoad(t *testing.T) {
	testData := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	path := createTestImageFile(t, testData)

	data, name, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if !bytes.Equal(data, testData) {
		t.Errorf("data mismatch: expected %v, got %v", testData, data)
	}
	if name != "test.bin" {
		t.Errorf("name mismatch: expected test.bin, got %s", name)
	}
}

func TestLoader_ZipLoad(t *testing.T) {
	testData := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	path := createTestZipFile(t, testData, "game.bin")

	data, name, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if !bytes.Equal(data, testData) {
		t.Errorf("data mismatch: expected %v, got %v", testData, data)
	}
	if name != "game.bin" {
		t.Errorf("name mismatch: expected game.bin, got %s", name)
	}
}

func TestLoader_GzipLoad(t *testing.T) {
	testData := []byte{0x11, 0x22, 0x33, 0x44, 0x55}
	path := createTestGzipFile(t, testData)

	data, _, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if !bytes.Equal(data, testData) {
		t.Errorf("data mismatch: expected %v, got %v", testData, data)
	}
}

func TestLoader_FormatDetectionMagic(t *testing.T) {
	testCases := []struct {
		header   []byte
		path     string
		expected formatType
	}{
		{[]byte{0x50, 0x4B, 0x03, 0x04}, "file.dat", formatZIP},
		{[]byte{0x50, 0x4B, 0x05, 0x06}, "file.dat", formatZIP},
		{[]byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, "file.dat", format7z},
		{[]byte{0x1F, 0x8B}, "file.dat", formatGzip},
		{[]byte{0x52, 0x61, 0x72, 0x21}, "file.dat", formatRAR},
	}

	for _, tc := range testCases {
		result := detectFormat(tc.header, tc.path)
		if result != tc.expected {
			t.Errorf("detectFormat(%v, %s): expected %d, got %d", tc.header, tc.path, tc.expected, result)
		}
	}
}

func TestLoader_FormatDetectionExtension(t *testing.T) {
	testCases := []struct {
		path     string
		expected formatType
	}{
		{"game.bin", formatRawImage},
		{"game.BIN", formatRawImage},
		{"game.rom", formatRawImage},
		{"game.img", formatRawImage},
		{"game.zip", formatZIP},
		{"game.ZIP", formatZIP},
		{"game.7z", format7z},
		{"game.gz", formatGzip},
		{"game.tgz", formatGzip},
		{"game.tar.gz", formatGzip},
		{"game.rar", formatRAR},
		{"game.unknown", formatUnknown},
	}

	for _, tc := range testCases {
		result := detectFormat([]byte{}, tc.path)
		if result != tc.expected {
			t.Errorf("detectFormat([], %s): expected %d, got %d", tc.path, tc.expected, result)
		}
	}
}

func TestLoader_NoImageInArchive(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.zip")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}

	w := zip.NewWriter(f)
	fw, _ := w.Create("readme.txt")
	fw.Write([]byte("hello"))
	w.Close()
	f.Close()

	_, _, err = LoadImage(path)
	if err != ErrNoImageFile {
		t.Errorf("expected ErrNoImageFile, got %v", err)
	}
}

func TestLoader_FileTooLarge(t *testing.T) {
	largeData := make([]byte, maxImageSize+1)

	tmpDir := t.TempDir()
	gzPath := filepath.Join(tmpDir, "large.bin.gz")
	f, err := os.Create(gzPath)
	if err != nil {
		t.Fatalf("failed to create gzip: %v", err)
	}

	w := gzip.NewWriter(f)
	w.Write(largeData)
	w.Close()
	f.Close()

	_, _, err = LoadImage(gzPath)
	if err == nil {
		t.Error("expected error for oversized file")
	}
}

func TestLoader_FileNotFound(t *testing.T) {
	_, _, err := LoadImage("/nonexistent/path/game.bin")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoader_IsImageFile(t *testing.T) {
	testCases := []struct {
		name     string
		expected bool
	}{
		{"game.bin", true},
		{"game.BIN", true},
		{"game.rom", true},
		{"game.img", true},
		{"game.txt", false},
		{"game.bin.bak", false},
		{"game", false},
		{"bin", false},
		{".bin", true},
	}

	for _, tc := range testCases {
		result := isImageFile(tc.name)
		if result != tc.expected {
			t.Errorf("isImageFile(%q): expected %v, got %v", tc.name, tc.expected, result)
		}
	}
}

func TestLoader_ZipWithSubdirectory(t *testing.T) {
	testData := []byte{0x12, 0x34, 0x56}
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.zip")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}

	w := zip.NewWriter(f)
	fw, _ := w.Create("roms/games/test.bin")
	fw.Write(testData)
	w.Close()
	f.Close()

	data, name, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if !bytes.Equal(data, testData) {
		t.Errorf("data mismatch: expected %v, got %v", testData, data)
	}
	if name != "test.bin" {
		t.Errorf("name should be just the filename, got %s", name)
	}
}

func TestLoader_EmptyFile(t *testing.T) {
	path := createTestImageFile(t, []byte{})

	data, _, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty data, got %d bytes", len(data))
	}
}

func TestLoader_MaxImageSizeConstant(t *testing.T) {
	if maxImageSize < 1*1024*1024 {
		t.Errorf("maxImageSize too small: %d bytes", maxImageSize)
	}
	if maxImageSize > 16*1024*1024 {
		t.Errorf("maxImageSize unexpectedly large: %d bytes", maxImageSize)
	}
}

func TestLoader_MagicBytesDefinition(t *testing.T) {
	if !bytes.Equal(magicZIP, []byte{0x50, 0x4B, 0x03, 0x04}) {
		t.Error("ZIP magic bytes incorrect")
	}
	if !bytes.Equal(magic7z, []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}) {
		t.Error("7z magic bytes incorrect")
	}
	if !bytes.Equal(magicGzip, []byte{0x1F, 0x8B}) {
		t.Error("gzip magic bytes incorrect")
	}
	if !bytes.Equal(magicRAR, []byte{0x52, 0x61, 0x72, 0x21}) {
		t.Error("RAR magic bytes incorrect")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte{0x01, 0x02, 0x03})
	b := Fingerprint([]byte{0x01, 0x02, 0x03})
	c := Fingerprint([]byte{0x01, 0x02, 0x04})

	if a != b {
		t.Fatalf("Fingerprint not deterministic: %x != %x", a, b)
	}
	if a == c {
		t.Fatalf("Fingerprint collided on different input")
	}
}
