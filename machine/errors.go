package machine

import (
	"errors"

	"github.com/user-none/meen/opt"
)

// Sentinel errors, one for one with the reference errc enum. Call sites
// wrap these with fmt.Errorf("...: %w", ErrX) so errors.Is composes.
var (
	// ErrBusy is returned by any configuration or attach/detach call made
	// while the run loop is active.
	ErrBusy = errors.New("the machine is currently running")

	// ErrClockSamplingFreq is returned when the configured clock sampling
	// frequency cannot be honored at the host's timer resolution.
	ErrClockSamplingFreq = errors.New("clock: sampling frequency unavailable at requested resolution")

	// ErrCpu is returned by Run when no cpu has been constructed.
	ErrCpu = errors.New("the cpu has not been initialized")

	// ErrMemoryController is returned when an operation requires an
	// attached memory controller and none is attached.
	ErrMemoryController = errors.New("the memory controller has not been attached")

	// ErrIoController is returned when an operation requires an attached
	// io controller and none is attached.
	ErrIoController = errors.New("the io controller has not been attached")

	// ErrInvalidArgument is returned when a nil controller is attached.
	ErrInvalidArgument = errors.New("an invalid argument was supplied")

	// ErrJsonParse is returned by SetOptions when the options string fails
	// to parse as JSON. It is the opt package's sentinel.
	ErrJsonParse = opt.ErrJsonParse

	// ErrJsonConfig is returned by SetOptions when an option value is
	// invalid or the input uses an unrecognized scheme prefix. It is the
	// opt package's sentinel.
	ErrJsonConfig = opt.ErrJsonConfig

	// ErrEncoder is returned by SetOptions when an encoder name other than
	// "base64" is requested. It is the opt package's sentinel.
	ErrEncoder = opt.ErrEncoder

	// ErrCompressor is returned by SetOptions when a compressor name other
	// than "zlib" or "none" is requested. It is the opt package's sentinel.
	ErrCompressor = opt.ErrCompressor

	// ErrIncompatibleUuid is returned when a snapshot's memory uuid does
	// not match the attached memory controller's, or the controller's
	// uuid is the reserved all-zero "no identity" value.
	ErrIncompatibleUuid = errors.New("the uuid to load does not match this component")

	// ErrIncompatibleRom is returned when a snapshot's declared ROM
	// content does not match what the attached memory controller
	// currently holds.
	ErrIncompatibleRom = errors.New("the rom to load is incompatible with this component")

	// ErrIncompatibleRam is returned when a snapshot's RAM payload size
	// does not match the memory controller's derived RAM ranges.
	ErrIncompatibleRam = errors.New("the ram to load is incompatible with this component")

	// ErrUriScheme is returned when a bytes field uses an unsupported
	// scheme.
	ErrUriScheme = errors.New("the uri scheme is not supported")

	// ErrAsync is returned by WaitForCompletion when the machine was
	// never run, or its run future is otherwise invalid.
	ErrAsync = errors.New("the machine is not running asynchronously")

	// ErrNotImplemented is returned by operations this engine does not
	// support.
	ErrNotImplemented = errors.New("this operation is not implemented")

	// ErrUnknownOption is returned (informationally, alongside a still
	// applied partial merge) when SetOptions sees a key it does not
	// recognize. It is the opt package's sentinel.
	ErrUnknownOption = opt.ErrUnknownOption
)
