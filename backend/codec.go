package backend

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// encodeValues packs a slice of boxed primitive values into a flat byte
// buffer, one fixed-width record per value (strings are length-prefixed).
// This is the pre-compression representation of one chunk's payload.
func encodeValues(typ PrimType, values []interface{}) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range values {
		if err := encodeOne(&buf, typ, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeOne(buf *bytes.Buffer, typ PrimType, v interface{}) error {
	switch typ {
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("backend: value %v is not a bool", v)
		}
		sym := symFalse
		if b {
			sym = symTrue
		}
		buf.WriteByte(byte(sym))
	case Int8:
		n, ok := v.(int8)
		if !ok {
			return fmt.Errorf("backend: value %v is not an int8", v)
		}
		buf.WriteByte(byte(n))
	case Int16:
		n, ok := v.(int16)
		if !ok {
			return fmt.Errorf("backend: value %v is not an int16", v)
		}
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(n))
		buf.Write(b[:])
	case Int32:
		n, ok := v.(int32)
		if !ok {
			return fmt.Errorf("backend: value %v is not an int32", v)
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(n))
		buf.Write(b[:])
	case Int64:
		n, ok := v.(int64)
		if !ok {
			return fmt.Errorf("backend: value %v is not an int64", v)
		}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(n))
		buf.Write(b[:])
	case Uint8:
		n, ok := v.(uint8)
		if !ok {
			return fmt.Errorf("backend: value %v is not a uint8", v)
		}
		buf.WriteByte(n)
	case Uint16:
		n, ok := v.(uint16)
		if !ok {
			return fmt.Errorf("backend: value %v is not a uint16", v)
		}
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], n)
		buf.Write(b[:])
	case Uint32:
		n, ok := v.(uint32)
		if !ok {
			return fmt.Errorf("backend: value %v is not a uint32", v)
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], n)
		buf.Write(b[:])
	case Uint64:
		n, ok := v.(uint64)
		if !ok {
			return fmt.Errorf("backend: value %v is not a uint64", v)
		}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], n)
		buf.Write(b[:])
	case Float32:
		n, ok := v.(float32)
		if !ok {
			return fmt.Errorf("backend: value %v is not a float32", v)
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(n))
		buf.Write(b[:])
	case Float64:
		n, ok := v.(float64)
		if !ok {
			return fmt.Errorf("backend: value %v is not a float64", v)
		}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(n))
		buf.Write(b[:])
	case String:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("backend: value %v is not a string", v)
		}
		var lb [4]byte
		binary.LittleEndian.PutUint32(lb[:], uint32(len(s)))
		buf.Write(lb[:])
		buf.WriteString(s)
	default:
		return invalidType(typ)
	}
	return nil
}

// decodeValues unpacks count values of typ from a flat byte buffer produced
// by encodeValues.
func decodeValues(typ PrimType, data []byte, count int) ([]interface{}, error) {
	out := make([]interface{}, 0, count)
	r := bytes.NewReader(data)
	for i := 0; i < count; i++ {
		v, err := decodeOne(r, typ)
		if err != nil {
			return nil, fmt.Errorf("backend: decoding element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeOne(r *bytes.Reader, typ PrimType) (interface{}, error) {
	switch typ {
	case Bool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return boolSymbol(b) == symTrue, nil
	case Int8:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return int8(b), nil
	case Int16:
		var b [2]byte
		if _, err := r.Read(b[:]); err != nil {
			return nil, err
		}
		return int16(binary.LittleEndian.Uint16(b[:])), nil
	case Int32:
		var b [4]byte
		if _, err := r.Read(b[:]); err != nil {
			return nil, err
		}
		return int32(binary.LittleEndian.Uint32(b[:])), nil
	case Int64:
		var b [8]byte
		if _, err := r.Read(b[:]); err != nil {
			return nil, err
		}
		return int64(binary.LittleEndian.Uint64(b[:])), nil
	case Uint8:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return uint8(b), nil
	case Uint16:
		var b [2]byte
		if _, err := r.Read(b[:]); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint16(b[:]), nil
	case Uint32:
		var b [4]byte
		if _, err := r.Read(b[:]); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint32(b[:]), nil
	case Uint64:
		var b [8]byte
		if _, err := r.Read(b[:]); err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint64(b[:]), nil
	case Float32:
		var b [4]byte
		if _, err := r.Read(b[:]); err != nil {
			return nil, err
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(b[:])), nil
	case Float64:
		var b [8]byte
		if _, err := r.Read(b[:]); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b[:])), nil
	case String:
		var lb [4]byte
		if _, err := r.Read(lb[:]); err != nil {
			return nil, err
		}
		n := binary.LittleEndian.Uint32(lb[:])
		sb := make([]byte, n)
		if _, err := r.Read(sb); err != nil {
			return nil, err
		}
		return string(sb), nil
	default:
		return nil, invalidType(typ)
	}
}

// shuffle applies the byte-shuffle filter (transpose of per-element byte
// planes), used optionally ahead of compression for fixed-width types; it
// is a no-op for String since elements are not fixed width.
func shuffleBytes(data []byte, elemWidth int) []byte {
	if elemWidth <= 1 || len(data)%elemWidth != 0 {
		return data
	}
	n := len(data) / elemWidth
	out := make([]byte, len(data))
	for i := 0; i < n; i++ {
		for b := 0; b < elemWidth; b++ {
			out[b*n+i] = data[i*elemWidth+b]
		}
	}
	return out
}

func unshuffleBytes(data []byte, elemWidth int) []byte {
	if elemWidth <= 1 || len(data)%elemWidth != 0 {
		return data
	}
	n := len(data) / elemWidth
	out := make([]byte, len(data))
	for i := 0; i < n; i++ {
		for b := 0; b < elemWidth; b++ {
			out[i*elemWidth+b] = data[b*n+i]
		}
	}
	return out
}

func elemWidth(typ PrimType) int {
	switch typ {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0 // String: variable width, shuffle not applicable
	}
}
