// Package state implements the machine snapshot codec: a JSON envelope
// carrying the CPU register file and a ROM/RAM partition of the attached
// memory controller's address space, with ROM identified by MD5 and RAM
// carried compressed and base64-encoded.
package state

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/user-none/meen/cpu"
)

// Range is a contiguous span of the 16-bit address space, used to mark
// which bytes belong to ROM; everything outside the declared ROM ranges is
// RAM.
type Range struct {
	Offset uint16
	Size   uint32
}

// CpuState is the subset of *cpu.CPU the codec needs; accepting the
// interface rather than the concrete type keeps this package testable
// without a real CPU.
type CpuState interface {
	Save() string
	Load(snapshot string, checkUuid bool) error
}

type envelope struct {
	Cpu    json.RawMessage `json:"cpu"`
	Memory memorySubtree   `json:"memory"`
}

type memorySubtree struct {
	Uuid string      `json:"uuid"`
	Rom  romSubtree  `json:"rom"`
	Ram  *ramSubtree `json:"ram,omitempty"`
}

type romSubtree struct {
	Bytes  string     `json:"bytes,omitempty"`
	Offset uint16     `json:"offset,omitempty"`
	Size   uint32     `json:"size,omitempty"`
	Block  []romBlock `json:"block,omitempty"`
}

type romBlock struct {
	Bytes  string `json:"bytes"`
	Offset uint16 `json:"offset"`
	Size   uint32 `json:"size"`
}

type ramSubtree struct {
	Size  uint32 `json:"size"`
	Bytes string `json:"bytes"`
}

// complement returns the ascending RAM ranges left over once the given ROM
// ranges are removed from the full 0..0xFFFF address space.
func complement(rom []Range) []Range {
	covered := make([]bool, 0x10000)
	for _, r := range rom {
		for a := uint32(r.Offset); a < uint32(r.Offset)+r.Size && a < 0x10000; a++ {
			covered[a] = true
		}
	}

	var ram []Range
	start := -1
	for a := 0; a <= 0x10000; a++ {
		isRam := a < 0x10000 && !covered[a]
		if isRam && start < 0 {
			start = a
		} else if !isRam && start >= 0 {
			ram = append(ram, Range{Offset: uint16(start), Size: uint32(a - start)})
			start = -1
		}
	}
	return ram
}

func readRange(mem, io cpu.Controller, r Range) []byte {
	buf := make([]byte, r.Size)
	for i := range buf {
		buf[i] = mem.Read(r.Offset+uint16(i), io)
	}
	return buf
}

func writeRange(mem, io cpu.Controller, offset uint16, data []byte) {
	for i, b := range data {
		mem.Write(offset+uint16(i), b, io)
	}
}

func md5Hex(ranges [][]byte) string {
	h := md5.New()
	for _, b := range ranges {
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// BinToTxt encodes bin per the named compressor then encoder, in that
// order: "zlib"/"none" for compressor, "base64" for encoder.
func BinToTxt(encoder, compressor string, bin []byte) (string, error) {
	if encoder != "base64" {
		return "", ErrEncoder
	}

	payload := bin
	if compressor == "zlib" {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(bin); err != nil {
			return "", fmt.Errorf("state: %w", err)
		}
		if err := w.Close(); err != nil {
			return "", fmt.Errorf("state: %w", err)
		}
		payload = buf.Bytes()
	} else if compressor != "none" {
		return "", ErrCompressor
	}

	return base64.StdEncoding.EncodeToString(payload), nil
}

// TxtToBin is the inverse of BinToTxt: base64-decode, then decompress if
// decompressor is "zlib".
func TxtToBin(decoder, decompressor string, src string) ([]byte, error) {
	if decoder != "base64" {
		return nil, ErrEncoder
	}

	decoded, err := base64.StdEncoding.DecodeString(src)
	if err != nil {
		return nil, fmt.Errorf("state: %w: %w", ErrJsonParse, err)
	}

	switch decompressor {
	case "none":
		return decoded, nil
	case "zlib":
		r, err := zlib.NewReader(bytes.NewReader(decoded))
		if err != nil {
			return nil, fmt.Errorf("state: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("state: %w", err)
		}
		return out, nil
	default:
		return nil, ErrCompressor
	}
}

// splitScheme strips a recognized "scheme://" prefix chain and returns the
// remaining payload along with the innermost scheme name ("base64",
// "md5", "zlib" or "file").
func splitScheme(uri string) (scheme, rest string, err error) {
	const base64Prefix = "base64://"
	const filePrefix = "file://"

	switch {
	case strings.HasPrefix(uri, filePrefix):
		return "file", strings.TrimPrefix(uri, filePrefix), nil
	case strings.HasPrefix(uri, base64Prefix):
		rest = strings.TrimPrefix(uri, base64Prefix)
		if strings.HasPrefix(rest, "zlib://") {
			return "zlib", strings.TrimPrefix(rest, "zlib://"), nil
		}
		if strings.HasPrefix(rest, "md5://") {
			return "md5", strings.TrimPrefix(rest, "md5://"), nil
		}
		return "base64", rest, nil
	default:
		return "", "", ErrUriScheme
	}
}
