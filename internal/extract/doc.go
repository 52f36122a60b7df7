package extract

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/kailas-cloud/storyrag/internal/domain"
)

// Word 97-2003 binary layout.
const (
	wordIdent       = 0xA5EC
	fibFlagsOffset  = 0x000A
	fibClxOffset    = 0x01A2 // fcClx, followed by lcbClx
	fibMinSize      = 0x01AA
	flagEncrypted   = 0x0100
	flagWhichTable  = 0x0200
	clxPrc          = 0x01
	clxPcdt         = 0x02
	pcdSize         = 8
	fcCompressedBit = 0x40000000
)

// Field markers: instruction text sits between begin and separator.
const (
	fieldBegin     = 0x13
	fieldSeparator = 0x14
	fieldEnd       = 0x15
)

var errNotWord = errors.New("not a word document")

func extractDOC(data []byte) (string, error) {
	cfb, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: open compound file: %v", domain.ErrCorruptFile, err)
	}

	streams := make(map[string][]byte, 3)
	for entry, err := cfb.Next(); err == nil; entry, err = cfb.Next() {
		switch entry.Name {
		case "WordDocument", "0Table", "1Table":
			buf, rerr := io.ReadAll(entry)
			if rerr != nil {
				return "", fmt.Errorf("%w: read %s: %v", domain.ErrCorruptFile, entry.Name, rerr)
			}
			streams[entry.Name] = buf
		}
	}

	word, ok := streams["WordDocument"]
	if !ok {
		return "", fmt.Errorf("%w: %v", domain.ErrCorruptFile, errNotWord)
	}
	text, err := decodeWordDocument(word, streams["0Table"], streams["1Table"])
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
	}
	return text, nil
}

// decodeWordDocument walks the piece table referenced by the FIB and
// concatenates every text piece.
func decodeWordDocument(word, table0, table1 []byte) (string, error) {
	if len(word) < fibMinSize {
		return "", fmt.Errorf("fib truncated: %d bytes", len(word))
	}
	if binary.LittleEndian.Uint16(word) != wordIdent {
		return "", errNotWord
	}

	flags := binary.LittleEndian.Uint16(word[fibFlagsOffset:])
	if flags&flagEncrypted != 0 {
		return "", errors.New("encrypted documents are not supported")
	}
	table := table0
	if flags&flagWhichTable != 0 {
		table = table1
	}
	if table == nil {
		return "", errors.New("table stream missing")
	}

	fcClx := binary.LittleEndian.Uint32(word[fibClxOffset:])
	lcbClx := binary.LittleEndian.Uint32(word[fibClxOffset+4:])
	if uint64(fcClx)+uint64(lcbClx) > uint64(len(table)) {
		return "", fmt.Errorf("clx out of range: %d+%d > %d", fcClx, lcbClx, len(table))
	}

	plc, err := findPlcPcd(table[fcClx : fcClx+lcbClx])
	if err != nil {
		return "", err
	}
	raw, err := readPieces(word, plc)
	if err != nil {
		return "", err
	}
	return cleanWordText(raw), nil
}

// findPlcPcd skips Prc entries and returns the PlcPcd payload of the Pcdt.
func findPlcPcd(clx []byte) ([]byte, error) {
	pos := 0
	for pos < len(clx) {
		switch clx[pos] {
		case clxPrc:
			if pos+3 > len(clx) {
				return nil, errors.New("prc truncated")
			}
			pos += 3 + int(binary.LittleEndian.Uint16(clx[pos+1:]))
		case clxPcdt:
			if pos+5 > len(clx) {
				return nil, errors.New("pcdt truncated")
			}
			lcb := int(binary.LittleEndian.Uint32(clx[pos+1:]))
			start := pos + 5
			if lcb < 4 || start+lcb > len(clx) {
				return nil, fmt.Errorf("plcpcd size %d out of range", lcb)
			}
			return clx[start : start+lcb], nil
		default:
			return nil, fmt.Errorf("unexpected clx entry 0x%02x", clx[pos])
		}
	}
	return nil, errors.New("pcdt not found")
}

// readPieces decodes each piece: compressed pieces are Windows-1252,
// the rest UTF-16LE.
func readPieces(word, plc []byte) (string, error) {
	if (len(plc)-4)%(4+pcdSize) != 0 {
		return "", fmt.Errorf("plcpcd size %d is not a piece table", len(plc))
	}
	n := (len(plc) - 4) / (4 + pcdSize)
	cps := make([]uint32, n+1)
	for i := range cps {
		cps[i] = binary.LittleEndian.Uint32(plc[i*4:])
	}
	pcds := plc[(n+1)*4:]

	ansi := charmap.Windows1252.NewDecoder()
	utf16 := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

	var b strings.Builder
	for i := range n {
		if cps[i+1] < cps[i] {
			return "", fmt.Errorf("piece %d: character positions out of order", i)
		}
		chars := uint64(cps[i+1] - cps[i])
		fc := binary.LittleEndian.Uint32(pcds[i*pcdSize+2:])

		var (
			decoded []byte
			err     error
		)
		if fc&fcCompressedBit != 0 {
			off := uint64(fc&^fcCompressedBit) / 2
			if off+chars > uint64(len(word)) {
				return "", fmt.Errorf("piece %d out of range", i)
			}
			decoded, err = ansi.Bytes(word[off : off+chars])
		} else {
			off := uint64(fc)
			if off+2*chars > uint64(len(word)) {
				return "", fmt.Errorf("piece %d out of range", i)
			}
			decoded, err = utf16.Bytes(word[off : off+2*chars])
		}
		if err != nil {
			return "", fmt.Errorf("piece %d: %w", i, err)
		}
		b.Write(decoded)
	}
	return b.String(), nil
}

// cleanWordText maps Word control characters to plain text and drops
// field instructions while keeping field results.
func cleanWordText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	// one entry per open field, true while still in its instruction part
	var fields []bool
	hidden := 0
	for _, r := range s {
		switch r {
		case fieldBegin:
			fields = append(fields, true)
			hidden++
			continue
		case fieldSeparator:
			if n := len(fields); n > 0 && fields[n-1] {
				fields[n-1] = false
				hidden--
			}
			continue
		case fieldEnd:
			if n := len(fields); n > 0 {
				if fields[n-1] {
					hidden--
				}
				fields = fields[:n-1]
			}
			continue
		}
		if hidden > 0 {
			continue
		}
		switch {
		case r == '\r' || r == '\v' || r == '\f':
			b.WriteByte('\n')
		case r == '\t' || r == '\n':
			b.WriteRune(r)
		case r < 0x20:
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
