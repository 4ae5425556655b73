package media

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"io"
)

type icoDirEntry struct {
	Width    uint8
	Height   uint8
	Colors   uint8
	Reserved uint8
	Planes   uint16
	BitCount uint16
	Size     uint32
	Offset   uint32
}

// writeICO encodes the images as an icon container with PNG payloads, the
// form browsers have accepted for favicon.ico for a long time.
func writeICO(w io.Writer, images ...image.Image) error {
	payloads := make([][]byte, len(images))
	for i, img := range images {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return err
		}
		payloads[i] = buf.Bytes()
	}

	header := []any{uint16(0), uint16(1), uint16(len(images))}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return err
		}
	}

	offset := uint32(6 + 16*len(images))
	for i, img := range images {
		bounds := img.Bounds()
		entry := icoDirEntry{
			Width:    icoDimension(bounds.Dx()),
			Height:   icoDimension(bounds.Dy()),
			Planes:   1,
			BitCount: 32,
			Size:     uint32(len(payloads[i])),
			Offset:   offset,
		}
		if err := binary.Write(w, binary.LittleEndian, entry); err != nil {
			return err
		}
		offset += entry.Size
	}
	for _, payload := range payloads {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// A zero byte means 256 in the icon directory.
func icoDimension(size int) uint8 {
	if size >= 256 {
		return 0
	}
	return uint8(size)
}
