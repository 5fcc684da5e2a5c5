package peripheral

import (
	"encoding/binary"
	"fmt"
)

// Shift applies an arithmetic bit shift to every sample in buf, in place.
// A positive shift moves bits left, a negative shift moves them right.
//
// Some I2S MEMS microphones clock their data one bit late, which halves every
// sample; a shift of 1 on each captured buffer corrects it.
// buf must hold whole samples of bitsPerSample bits.
func Shift(buf []byte, bitsPerSample int, shift int) error {
	if shift == 0 {
		return nil
	}
	width := bitsPerSample / 8
	if len(buf)%max(width, 1) != 0 {
		return fmt.Errorf("%w: %d bytes is not a whole number of %d bit samples", ErrUnsupportedConfig, len(buf), bitsPerSample)
	}

	switch bitsPerSample {
	case 16:
		for i := 0; i < len(buf); i += 2 {
			v := int16(binary.LittleEndian.Uint16(buf[i:]))
			binary.LittleEndian.PutUint16(buf[i:], uint16(shift16(v, shift)))
		}
	case 24:
		for i := 0; i < len(buf); i += 3 {
			v := int32(uint32(buf[i])<<8|uint32(buf[i+1])<<16|uint32(buf[i+2])<<24) >> 8
			v = shift32(v, shift)
			buf[i] = byte(v)
			buf[i+1] = byte(v >> 8)
			buf[i+2] = byte(v >> 16)
		}
	case 32:
		for i := 0; i < len(buf); i += 4 {
			v := int32(binary.LittleEndian.Uint32(buf[i:]))
			binary.LittleEndian.PutUint32(buf[i:], uint32(shift32(v, shift)))
		}
	default:
		return fmt.Errorf("%w: cannot shift %d bit samples", ErrUnsupportedConfig, bitsPerSample)
	}
	return nil
}

func shift16(v int16, shift int) int16 {
	if shift > 0 {
		return v << shift
	}
	return v >> -shift
}

func shift32(v int32, shift int) int32 {
	if shift > 0 {
		return v << shift
	}
	return v >> -shift
}
