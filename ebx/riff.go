package ebx

import (
	"fmt"

	"github.com/frostbite-tools/ebx/schema"
)

// riffReader/riffWriter are dispatch-seam stubs for the RIFF dialect
// (on-wire version 6): spec.md §1 scopes full RIFF decode/encode out of
// this implementation, but Open/NewWriter still need to recognize the
// magic and fail with a clear, typed error instead of misreading it as
// Partition bytes.
type riffReader struct {
	data   []byte
	oracle schema.Oracle
}

func newRIFFReader(data []byte, oracle schema.Oracle) *riffReader {
	return &riffReader{data: data, oracle: oracle}
}

// ReadAsset implements Reader. RIFF decoding is out of scope; this
// always reports ErrUnsupported so callers can distinguish "recognized
// but unimplemented dialect" from a bad-magic failure.
func (r *riffReader) ReadAsset() (*Asset, error) {
	return nil, fmt.Errorf("%w: RIFF dialect decoding is not implemented", ErrUnsupported)
}

type riffWriter struct {
	oracle schema.Oracle
}

func newRIFFWriter(oracle schema.Oracle) *riffWriter {
	return &riffWriter{oracle: oracle}
}

// WriteAsset implements Writer. See riffReader.ReadAsset.
func (w *riffWriter) WriteAsset(asset *Asset) ([]byte, error) {
	return nil, fmt.Errorf("%w: RIFF dialect encoding is not implemented", ErrUnsupported)
}
