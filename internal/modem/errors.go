package modem

import "errors"

// Precondition errors. They are returned wrapped with context; test with errors.Is.
var (
	ErrInvalidOrder           = errors.New("constellation order must be a power of two >= 2")
	ErrMisalignedBitLength    = errors.New("bit count is not a multiple of bits per symbol")
	ErrMisalignedSymbolLength = errors.New("symbol count is not a multiple of the subcarrier count")
	ErrDimensionMismatch      = errors.New("channel estimate does not match the subcarrier count")
	ErrUnsupportedLayout      = errors.New("constellation is not a rectangular grid")
	ErrInsufficientSamples    = errors.New("received stream is shorter than the reference")
	ErrInvalidFrameParams     = errors.New("invalid OFDM frame parameters")
)
