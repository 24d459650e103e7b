package state

import "errors"

var (
	// ErrIncompatibleUuid is returned when a snapshot's memory uuid does
	// not match the attached memory controller.
	ErrIncompatibleUuid = errors.New("the uuid to load does not match this component")

	// ErrIncompatibleRom is returned when a snapshot's declared ROM MD5
	// does not match what the attached memory controller currently holds.
	ErrIncompatibleRom = errors.New("the rom to load is incompatible with this component")

	// ErrIncompatibleRam is returned when a snapshot's RAM payload size
	// does not match the derived RAM ranges' total size.
	ErrIncompatibleRam = errors.New("the ram to load is incompatible with this component")

	// ErrUriScheme is returned when a bytes field uses a scheme other
	// than file://, base64://, base64://zlib:// or base64://md5://.
	ErrUriScheme = errors.New("the uri scheme is not supported")

	// ErrEncoder is returned when an encoder name other than "base64" is
	// requested.
	ErrEncoder = errors.New("the binary to text encoder is unknown")

	// ErrCompressor is returned when a compressor name other than "zlib"
	// or "none" is requested.
	ErrCompressor = errors.New("the compressor is unknown")

	// ErrJsonParse is returned when a snapshot, or a bytes field within
	// it, fails to parse.
	ErrJsonParse = errors.New("a JSON parse error occurred while processing the configuration file/string")

	// ErrJsonConfig is returned when a snapshot is structurally well-formed
	// JSON but violates a required field relationship, such as carrying a
	// ram block with no memory uuid to check it against.
	ErrJsonConfig = errors.New("the snapshot configuration is invalid")
)
