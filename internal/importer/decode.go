package importer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// NewUTF8Reader returns a reader yielding r decoded to UTF-8.
//
// A BOM wins; otherwise valid UTF-8 passes through, then chardet guesses,
// and anything left is read as Windows-1252, which is what Portuguese bank
// exports use.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 8192)

	buf, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("peek: %w", err)
	}

	switch {
	case bytes.HasPrefix(buf, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
		return br, nil
	case bytes.HasPrefix(buf, bomUTF16LE):
		return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()), nil
	case bytes.HasPrefix(buf, bomUTF16BE):
		return transform.NewReader(br, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()), nil
	}

	if validUTF8Prefix(buf) {
		return br, nil
	}

	if result, err := chardet.NewTextDetector().DetectBest(buf); err == nil {
		switch result.Charset {
		case "UTF-8":
			return br, nil
		case "ISO-8859-9":
			return transform.NewReader(br, charmap.ISO8859_9.NewDecoder()), nil
		case "ISO-8859-15":
			return transform.NewReader(br, charmap.ISO8859_15.NewDecoder()), nil
		}
	}

	return transform.NewReader(br, charmap.Windows1252.NewDecoder()), nil
}

// validUTF8Prefix is utf8.Valid tolerant of a rune cut at the end of the peek window.
func validUTF8Prefix(buf []byte) bool {
	for i := 0; i < utf8.UTFMax && len(buf) > 0; i++ {
		if utf8.Valid(buf) {
			return true
		}

		if buf[len(buf)-1] >= utf8.RuneSelf {
			buf = buf[:len(buf)-1]
			continue
		}

		return false
	}

	return utf8.Valid(buf)
}
