package cpu

import "errors"

// ErrJsonParse is returned when a snapshot string is not valid JSON.
var ErrJsonParse = errors.New("a JSON parse error occurred while processing the configuration file/string")

// ErrIncompatibleUuid is returned by Load when the snapshot's cpu uuid does
// not match this cpu implementation.
var ErrIncompatibleUuid = errors.New("the uuid to load does not match this component")
