package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/storyrag/internal/domain"
)

const docxBody = "word/document.xml"

func extractDOCX(data []byte, maxBody int64) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open docx: %v", domain.ErrCorruptFile, err)
	}

	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		if f.UncompressedSize64 > uint64(maxBody) {
			return "", fmt.Errorf("%w: %s expands to %d bytes, limit %d",
				domain.ErrCorruptFile, docxBody, f.UncompressedSize64, maxBody)
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", domain.ErrCorruptFile, docxBody, err)
		}
		defer rc.Close()
		return parseDOCXBody(&limitedReader{r: rc, left: maxBody})
	}
	return "", fmt.Errorf("%w: %s missing", domain.ErrCorruptFile, docxBody)
}

// parseDOCXBody collects the text of every w:t under each top-level w:p,
// including runs nested in hyperlinks, insertions, smart tags and content controls.
func parseDOCXBody(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		paras  []string
		para   strings.Builder
		depth  int
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, errBodyTooLarge) {
				return "", fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, docxBody, err)
			}
			return "", fmt.Errorf("%w: parse %s: %v", domain.ErrCorruptFile, docxBody, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				depth++
			case "t":
				inText = depth > 0
			case "tab":
				if depth > 0 {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 {
					para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 {
					paras = append(paras, para.String())
					para.Reset()
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.Join(paras, "\n"), nil
}

var errBodyTooLarge = errors.New("document body exceeds size limit")

// limitedReader fails with errBodyTooLarge instead of truncating like io.LimitReader.
type limitedReader struct {
	r    io.Reader
	left int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.left <= 0 {
		// One more byte decides between an exact fit and an overflow.
		var one [1]byte
		n, err := l.r.Read(one[:])
		if n > 0 {
			return 0, errBodyTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > l.left {
		p = p[:l.left]
	}
	n, err := l.r.Read(p)
	l.left -= int64(n)
	return n, err
}
