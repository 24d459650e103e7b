package opt

import "errors"

var (
	// ErrJsonConfig is returned when a configuration parameter's value is
	// invalid (e.g. a negative isrFreq) or a SetOptions input uses a
	// scheme this package does not recognize.
	ErrJsonConfig = errors.New("a JSON configuration parameter is invalid")

	// ErrJsonParse is returned when SetOptions input is not valid JSON.
	ErrJsonParse = errors.New("a JSON parse error occurred while processing the configuration file/string")

	// ErrEncoder is returned when the encoder option names anything other
	// than "base64".
	ErrEncoder = errors.New("the binary to text encoder is unknown")

	// ErrCompressor is returned when the compressor option names anything
	// other than "zlib" or "none".
	ErrCompressor = errors.New("the compressor is unknown")

	// ErrUnknownOption is returned, alongside an otherwise successful
	// merge of the recognized keys, when SetOptions input contains keys
	// outside the Options schema.
	ErrUnknownOption = errors.New("an unknown JSON option was encountered and ignored")
)
