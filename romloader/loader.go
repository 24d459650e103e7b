// Package romloader loads a program image from a file path, transparently
// extracting it from a compressed archive (ZIP, 7z, gzip, RAR) when the
// source isn't a raw binary. A .tar.gz is decompressed as a single gzip
// stream; its tar container is not unpacked. It is a cmd-only convenience: the core
// engine packages (cpu, clock, opt, state, machine) never touch a filesystem
// path directly, they only ever see the bytes a host hands them through a
// Controller.
package romloader

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// Magic bytes for format detection.
var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06} // empty zip
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21} // "Rar!"
)

// maxImageSize is a safety limit on the size of an extracted program image.
const maxImageSize = 8 * 1024 * 1024

// imageExtensions lists the file extensions LoadImage treats as a raw,
// uncompressed program image rather than an archive to extract from.
var imageExtensions = []string{".bin", ".rom", ".img"}

// ErrNoImageFile is returned when an archive contains no file matching one
// of imageExtensions.
var ErrNoImageFile = errors.New("no program image found in archive")

// ErrUnsupportedFormat is returned for unrecognized file formats.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrFileTooLarge is returned when extracted content exceeds maxImageSize.
var ErrFileTooLarge = errors.New("file exceeds maximum size limit")

// formatType is the detected container format of a source path.
type formatType int

const (
	formatUnknown formatType = iota
	formatRawImage
	formatZIP
	format7z
	formatGzip
	formatRAR
)

// LoadImage loads a program image from a file path, automatically detecting
// and extracting from an archive if needed. It returns the image bytes, the
// name of the image entry (useful for display), and any error encountered.
func LoadImage(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("romloader: open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, "", fmt.Errorf("romloader: read header: %w", err)
	}
	header = header[:n]

	format := detectFormat(header, path)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, "", fmt.Errorf("romloader: seek: %w", err)
	}

	switch format {
	case formatRawImage:
		data, err := limitedRead(f)
		if err != nil {
			return nil, "", fmt.Errorf("romloader: read image: %w", err)
		}
		return data, filepath.Base(path), nil

	case formatZIP:
		return extractFromZIP(path)

	case format7z:
		return extractFrom7z(path)

	case formatGzip:
		return extractFromGzip(path)

	case formatRAR:
		return extractFromRAR(path)

	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Fingerprint returns the CRC32 (IEEE) checksum of data, the same hash family
// a catalog of known program images would be keyed by.
func Fingerprint(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// detectFormat determines the container format from magic bytes, falling
// back to the file extension when the header is inconclusive.
func detectFormat(header []byte, path string) formatType {
	ext := strings.ToLower(filepath.Ext(path))

	if len(header) >= 4 {
		if bytes.HasPrefix(header, magicZIP) || bytes.HasPrefix(header, magicZIPEnd) {
			return formatZIP
		}
		if bytes.HasPrefix(header, magicRAR) {
			return formatRAR
		}
	}
	if len(header) >= 6 && bytes.HasPrefix(header, magic7z) {
		return format7z
	}
	if len(header) >= 2 && bytes.HasPrefix(header, magicGzip) {
		return formatGzip
	}

	switch ext {
	case ".zip":
		return formatZIP
	case ".7z":
		return format7z
	case ".gz", ".tgz":
		return formatGzip
	case ".rar":
		return formatRAR
	}
	if strings.HasSuffix(strings.ToLower(path), ".tar.gz") {
		return formatGzip
	}
	if isImageFile(path) {
		return formatRawImage
	}

	return formatUnknown
}

// isImageFile reports whether name has one of imageExtensions.
func isImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// limitedRead reads from r up to maxImageSize bytes, erroring if exceeded.
func limitedRead(r io.Reader) ([]byte, error) {
	lr := io.LimitReader(r, maxImageSize+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// extractFromZIP returns the first image-extension entry in a ZIP archive.
func extractFromZIP(path string) ([]byte, string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("romloader: open zip: %w", err)
	}
	defer r.Close()

	for _, entry := range r.File {
		if entry.FileInfo().IsDir() || !isImageFile(entry.Name) {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, "", fmt.Errorf("romloader: open %s: %w", entry.Name, err)
		}
		data, err := limitedRead(rc)
		rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("romloader: read %s: %w", entry.Name, err)
		}
		return data, filepath.Base(entry.Name), nil
	}

	return nil, "", ErrNoImageFile
}

// extractFrom7z returns the first image-extension entry in a 7z archive.
func extractFrom7z(path string) ([]byte, string, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("romloader: open 7z: %w", err)
	}
	defer r.Close()

	for _, entry := range r.File {
		if entry.FileInfo().IsDir() || !isImageFile(entry.Name) {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, "", fmt.Errorf("romloader: open %s: %w", entry.Name, err)
		}
		data, err := limitedRead(rc)
		rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("romloader: read %s: %w", entry.Name, err)
		}
		return data, filepath.Base(entry.Name), nil
	}

	return nil, "", ErrNoImageFile
}

// extractFromGzip decompresses a single-file gzip stream (optionally a
// .tar.gz, treated here as a flat gzip since program images are never
// themselves tarballs of multiple files).
func extractFromGzip(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("romloader: open gzip: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, "", fmt.Errorf("romloader: gzip header: %w", err)
	}
	defer gr.Close()

	data, err := limitedRead(gr)
	if err != nil {
		return nil, "", fmt.Errorf("romloader: inflate: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return data, name, nil
}
