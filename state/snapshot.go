package state

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"

	"github.com/user-none/meen/cpu"
)

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// Save captures cpuState and the attached controllers' memory into the
// snapshot JSON envelope. romRanges marks which address ranges are ROM (as
// declared by the most recent successful Load, or empty before any Load);
// everything else is treated as RAM.
func Save(cpuState CpuState, mem, io cpu.Controller, memUuid [16]byte, romRanges []Range, encoder, compressor string) (string, error) {
	if memUuid == ([16]byte{}) {
		return "", ErrIncompatibleUuid
	}

	cpuJSON := cpuState.Save()

	// Each declared ROM range gets its own identity-check block, so Load
	// knows exactly which offset/size the digest covers.
	blocks := make([]romBlock, len(romRanges))
	for i, r := range romRanges {
		digest := md5Hex([][]byte{readRange(mem, io, r)})
		blocks[i] = romBlock{Bytes: "base64://md5://" + digest, Offset: r.Offset, Size: r.Size}
	}

	var romJSON string
	switch len(blocks) {
	case 0:
		romJSON = fmt.Sprintf(`{"bytes":"base64://md5://%s","offset":0,"size":0}`, md5Hex(nil))
	case 1:
		b, _ := json.Marshal(blocks[0])
		romJSON = string(b)
	default:
		b, _ := json.Marshal(struct {
			Block []romBlock `json:"block"`
		}{blocks})
		romJSON = string(b)
	}

	ramRanges := complement(romRanges)

	var ramBuf []byte
	for _, r := range ramRanges {
		ramBuf = append(ramBuf, readRange(mem, io, r)...)
	}

	ramJSONStr := "null"
	if len(ramRanges) > 0 {
		ramEncoded, err := BinToTxt(encoder, compressor, ramBuf)
		if err != nil {
			return "", err
		}
		scheme := encoder + "://"
		if compressor != "none" {
			scheme += compressor + "://"
		}
		b, _ := json.Marshal(ramSubtree{Size: uint32(len(ramBuf)), Bytes: scheme + ramEncoded})
		ramJSONStr = string(b)
	}

	return fmt.Sprintf(`{"cpu":%s,"memory":{"uuid":"base64://%s","rom":%s,"ram":%s}}`,
		cpuJSON, b64(memUuid[:]), romJSON, ramJSONStr), nil
}

// Load restores cpuState and the attached controllers' memory from a
// snapshot produced by Save. It returns the ROM ranges declared by the
// snapshot, for the caller to pass into the next Save call.
func Load(snapshot string, cpuState CpuState, mem, io cpu.Controller, memUuid [16]byte, fs afero.Fs) ([]Range, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	var env envelope
	if err := json.Unmarshal([]byte(snapshot), &env); err != nil {
		return nil, fmt.Errorf("state: %w: %w", ErrJsonParse, err)
	}

	if env.Memory.Uuid != "" {
		decoded, err := TxtToBin("base64", "none", trimScheme(env.Memory.Uuid))
		if err != nil || len(decoded) != len(memUuid) || string(decoded) != string(memUuid[:]) {
			return nil, ErrIncompatibleUuid
		}
	} else if env.Memory.Ram != nil {
		return nil, ErrJsonConfig
	}

	entries := env.Memory.Rom.Block
	if len(entries) == 0 {
		entries = []romBlock{{Bytes: env.Memory.Rom.Bytes, Offset: env.Memory.Rom.Offset, Size: env.Memory.Rom.Size}}
	}

	var romRanges []Range
	for _, entry := range entries {
		r, err := loadRomEntry(entry, mem, io, fs)
		if err != nil {
			return nil, err
		}
		if r.Size > 0 {
			romRanges = append(romRanges, r)
		}
	}

	ramRanges := complement(romRanges)
	ramTotal := uint32(0)
	for _, r := range ramRanges {
		ramTotal += r.Size
	}

	if env.Memory.Ram != nil {
		scheme, payload, err := splitScheme(env.Memory.Ram.Bytes)
		if err != nil {
			return nil, err
		}
		decompressor := "none"
		if scheme == "zlib" {
			decompressor = "zlib"
		}
		data, err := TxtToBin("base64", decompressor, payload)
		if err != nil {
			return nil, err
		}
		if uint32(len(data)) != ramTotal || env.Memory.Ram.Size != ramTotal {
			return nil, ErrIncompatibleRam
		}
		offset := 0
		for _, r := range ramRanges {
			writeRange(mem, io, r.Offset, data[offset:offset+int(r.Size)])
			offset += int(r.Size)
		}
	} else {
		for _, r := range ramRanges {
			writeRange(mem, io, r.Offset, make([]byte, r.Size))
		}
	}

	if err := cpuState.Load(string(env.Cpu), env.Memory.Ram != nil); err != nil {
		return nil, err
	}

	return romRanges, nil
}

// loadRomEntry applies one rom bytes entry and returns the Range it covers.
// An md5-only entry is an identity check against whatever the memory
// controller already holds over [offset, offset+size) and declares no new
// range beyond what was already there.
func loadRomEntry(entry romBlock, mem, io cpu.Controller, fs afero.Fs) (Range, error) {
	scheme, payload, err := splitScheme(entry.Bytes)
	if err != nil {
		return Range{}, err
	}

	r := Range{Offset: entry.Offset, Size: entry.Size}

	switch scheme {
	case "file":
		data, err := afero.ReadFile(fs, payload)
		if err != nil {
			return Range{}, fmt.Errorf("state: %w", err)
		}
		if r.Size == 0 {
			r.Size = uint32(len(data))
		}
		if int(r.Size) > len(data) {
			return Range{}, ErrIncompatibleRom
		}
		writeRange(mem, io, r.Offset, data[:r.Size])
		return r, nil
	case "zlib":
		data, err := TxtToBin("base64", "zlib", payload)
		if err != nil {
			return Range{}, err
		}
		if r.Size == 0 {
			r.Size = uint32(len(data))
		}
		writeRange(mem, io, r.Offset, data)
		return r, nil
	case "base64":
		data, err := TxtToBin("base64", "none", payload)
		if err != nil {
			return Range{}, err
		}
		if r.Size == 0 {
			r.Size = uint32(len(data))
		}
		writeRange(mem, io, r.Offset, data)
		return r, nil
	case "md5":
		current := readRange(mem, io, r)
		if md5Hex([][]byte{current}) != payload {
			return Range{}, ErrIncompatibleRom
		}
		return r, nil
	}

	return Range{}, ErrUriScheme
}

func trimScheme(uri string) string {
	const prefix = "base64://"
	if len(uri) >= len(prefix) && uri[:len(prefix)] == prefix {
		return uri[len(prefix):]
	}
	return uri
}
