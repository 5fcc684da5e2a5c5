package wavcontainer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Parse reads and validates a RIFF/WAVE header from r.
//
// Sub-chunks are walked in whatever order they appear; chunks other than
// "fmt " and "data" are skipped using their declared length. The data payload
// is never read. On success r is positioned at the first sample byte.
func Parse(r io.ReadSeeker) (Container, error) {
	var c Container

	var riff [12]byte
	if err := readHeaderBytes(r, riff[:], 0); err != nil {
		return Container{}, err
	}
	if [4]byte(riff[0:4]) != riffChunkToken {
		return Container{}, malformed(0, "chunk ID %q is not RIFF", riff[0:4])
	}
	if [4]byte(riff[8:12]) != waveFormatType {
		return Container{}, malformed(8, "RIFF type %q is not WAVE", riff[8:12])
	}

	// Data chunks declared longer than the file (streaming writers leave the
	// size unset) are clamped to what is actually there.
	fileSize, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return Container{}, fmt.Errorf("could not determine file size: %w", err)
	}
	offset, err := r.Seek(int64(len(riff)), io.SeekStart)
	if err != nil {
		return Container{}, fmt.Errorf("could not seek past RIFF header: %w", err)
	}

	foundFmt, foundData := false, false
	for !(foundFmt && foundData) {
		var chunkHeader [8]byte
		err := readHeaderBytes(r, chunkHeader[:], offset)
		if err != nil {
			if errors.Is(err, ErrMalformedHeader) && !foundFmt {
				return Container{}, malformed(offset, "missing fmt chunk")
			}
			if errors.Is(err, ErrMalformedHeader) && !foundData {
				return Container{}, malformed(offset, "missing data chunk")
			}
			return Container{}, err
		}

		id := [4]byte(chunkHeader[0:4])
		size := int64(binary.LittleEndian.Uint32(chunkHeader[4:8]))
		payloadOffset := offset + int64(len(chunkHeader))
		next := payloadOffset + size + size%2

		switch id {
		case fmtChunkToken:
			if foundFmt {
				return Container{}, malformed(offset, "duplicate fmt chunk")
			}
			if size < pcmFmtChunkSize {
				return Container{}, malformed(offset, "fmt chunk of %d bytes", size)
			}
			var fmtChunk [pcmFmtChunkSize]byte
			if err := readHeaderBytes(r, fmtChunk[:], payloadOffset); err != nil {
				return Container{}, err
			}
			c.FormatTag = binary.LittleEndian.Uint16(fmtChunk[0:2])
			c.Channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			c.SampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			c.ByteRate = int(binary.LittleEndian.Uint32(fmtChunk[8:12]))
			c.BlockAlign = int(binary.LittleEndian.Uint16(fmtChunk[12:14]))
			c.BitsPerSample = int(binary.LittleEndian.Uint16(fmtChunk[14:16]))
			if err := c.validate(payloadOffset); err != nil {
				return Container{}, err
			}
			foundFmt = true

		case dataChunkToken:
			if foundData {
				return Container{}, malformed(offset, "duplicate data chunk")
			}
			c.DataOffset = payloadOffset
			c.DataLength = min(size, max(fileSize-payloadOffset, 0))
			foundData = true
		}

		if foundFmt && foundData {
			break
		}
		if next >= fileSize {
			// Nothing left to walk; let the next header read report what is missing.
			next = fileSize
		}
		if offset, err = r.Seek(next, io.SeekStart); err != nil {
			return Container{}, fmt.Errorf("could not seek to chunk at %d: %w", next, err)
		}
	}

	if _, err := r.Seek(c.DataOffset, io.SeekStart); err != nil {
		return Container{}, fmt.Errorf("could not seek to sample data: %w", err)
	}
	return c, nil
}

// WriteHeader writes the canonical 44-byte header for c to w.
func WriteHeader(w io.Writer, c Container) error {
	header := c.Header()
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("could not write WAV header: %w", err)
	}
	return nil
}

func readHeaderBytes(r io.Reader, buf []byte, offset int64) error {
	_, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return malformed(offset, "truncated header")
	default:
		return fmt.Errorf("could not read WAV header: %w", err)
	}
}
