package backend

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/flate"
)

// chunkHeader precedes every compressed chunk written to a column file:
//
//	uint32 elemCount
//	uint32 compLen
//	uint64 checksum (xxhash of the compressed payload)
const chunkHeaderLen = 4 + 4 + 8

// writeChunk flattens values with encodeValues, compresses them at the
// configured level — for fixed-width types optionally byte-shuffled
// first — and appends one chunk record to w.
func writeChunk(w io.Writer, typ PrimType, values []interface{}, level int, shuffle bool) error {
	raw, err := encodeValues(typ, values)
	if err != nil {
		return err
	}
	if shuffle {
		raw = shuffleBytes(raw, elemWidth(typ))
	}

	var compBuf bytes.Buffer
	fw, err := flate.NewWriter(&compBuf, normalizeLevel(level))
	if err != nil {
		return fmt.Errorf("backend: building compressor: %w", err)
	}
	if _, err := fw.Write(raw); err != nil {
		return err
	}
	if err := fw.Close(); err != nil {
		return err
	}

	sum := xxhash.Sum64(compBuf.Bytes())

	var hdr [chunkHeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(values)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(compBuf.Len()))
	binary.LittleEndian.PutUint64(hdr[8:16], sum)

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(compBuf.Bytes())
	return err
}

// readChunk reads one chunk record from r and returns its decoded values.
func readChunk(r io.Reader, typ PrimType, shuffle bool) ([]interface{}, error) {
	var hdr [chunkHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err // io.EOF propagates to the caller as end-of-column
	}
	count := int(binary.LittleEndian.Uint32(hdr[0:4]))
	compLen := binary.LittleEndian.Uint32(hdr[4:8])
	wantSum := binary.LittleEndian.Uint64(hdr[8:16])

	comp := make([]byte, compLen)
	if _, err := io.ReadFull(r, comp); err != nil {
		return nil, fmt.Errorf("backend: truncated chunk: %w", err)
	}
	if gotSum := xxhash.Sum64(comp); gotSum != wantSum {
		return nil, fmt.Errorf("backend: chunk checksum mismatch: got %x want %x", gotSum, wantSum)
	}

	fr := flate.NewReader(bytes.NewReader(comp))
	defer fr.Close()
	raw, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("backend: decompressing chunk: %w", err)
	}
	if shuffle {
		raw = unshuffleBytes(raw, elemWidth(typ))
	}
	return decodeValues(typ, raw, count)
}

func normalizeLevel(level int) int {
	if level < flate.HuffmanOnly {
		return flate.DefaultCompression
	}
	if level > flate.BestCompression {
		return flate.BestCompression
	}
	return level
}
