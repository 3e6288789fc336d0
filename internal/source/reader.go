package source

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"ipanalyzer/internal/domain"
)

// Encoding names reported in Document.Encoding.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF16       = "utf-16"
	EncodingWindows1252 = "windows-1252"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Document is one loaded raw text source.
type Document struct {
	Name      string
	Kind      domain.SourceKind
	Text      string
	SHA256    string
	SizeBytes int64
	Encoding  string
}

// Reader loads source files into text.
type Reader struct {
	maxBytes int64
	log      zerolog.Logger
}

// NewReader creates a Reader. maxBytes <= 0 disables the size check.
func NewReader(maxBytes int64, log zerolog.Logger) *Reader {
	return &Reader{maxBytes: maxBytes, log: log}
}

// ReadFile loads the file at path.
func (r *Reader) ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnreadable, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnreadable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrSourceUnreadable, path)
	}
	if err := r.checkSize(info.Size()); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnreadable, err)
	}
	return r.Read(filepath.Base(path), data)
}

// Read converts already-loaded bytes named name into a Document. The kind
// is chosen from the extension, falling back to content detection.
func (r *Reader) Read(name string, data []byte) (*Document, error) {
	if err := r.checkSize(int64(len(data))); err != nil {
		return nil, err
	}

	kind, err := detectKind(name, data)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Name:      name,
		Kind:      kind,
		SHA256:    Checksum(data),
		SizeBytes: int64(len(data)),
	}

	switch kind {
	case domain.SourceDOCX:
		text, err := docxText(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnreadable, name, err)
		}
		doc.Text = text
		doc.Encoding = EncodingUTF8
		if strings.TrimSpace(text) == "" {
			r.log.Warn().Str("file", name).Msg("source.Reader: document has no text")
		}
	default:
		text, enc, err := decodeText(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnreadable, name, err)
		}
		if enc != EncodingUTF8 {
			r.log.Warn().Str("file", name).Str("encoding", enc).Msg("source.Reader: file is not valid UTF-8, decoded with fallback")
		}
		doc.Text = text
		doc.Encoding = enc
	}

	r.log.Info().Str("file", name).Str("kind", string(kind)).Str("size", humanize.Bytes(uint64(doc.SizeBytes))).
		Msg("source.Reader: source loaded")
	return doc, nil
}

// FromText wraps text received directly (for example in an API request).
func FromText(name, text string) *Document {
	if name == "" {
		name = "input.txt"
	}
	return &Document{
		Name:      name,
		Kind:      domain.SourceText,
		Text:      text,
		SHA256:    Checksum([]byte(text)),
		SizeBytes: int64(len(text)),
		Encoding:  EncodingUTF8,
	}
}

// Checksum returns the lowercase hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (r *Reader) checkSize(size int64) error {
	if r.maxBytes > 0 && size > r.maxBytes {
		return fmt.Errorf("%w: %s exceeds %s", domain.ErrSourceTooLarge,
			humanize.Bytes(uint64(size)), humanize.Bytes(uint64(r.maxBytes)))
	}
	return nil
}

func detectKind(name string, data []byte) (domain.SourceKind, error) {
	detected := mimetype.Detect(data)

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if kind, ok := domain.AllowedExtensions[ext]; ok {
		if kind == domain.SourceDOCX && !matches(detected, "application/zip") {
			return "", fmt.Errorf("%w: %s is not a valid .docx archive", domain.ErrSourceUnreadable, name)
		}
		return kind, nil
	}

	for mt := detected; mt != nil; mt = mt.Parent() {
		for ct, kind := range domain.AllowedContentTypes {
			if mt.Is(ct) {
				return kind, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q (detected %s)", domain.ErrUnsupportedSource, name, detected.String())
}

// matches reports whether mt or one of its parents is contentType.
func matches(mt *mimetype.MIME, contentType string) bool {
	for ; mt != nil; mt = mt.Parent() {
		if mt.Is(contentType) {
			return true
		}
	}
	return false
}

// decodeText returns data as UTF-8. Input with a UTF-16 byte order mark is
// transcoded; other invalid UTF-8 is read as Windows-1252, which never fails.
func decodeText(data []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		out, err := decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data)
		return out, EncodingUTF16, err
	case utf8.Valid(data):
		return string(bytes.TrimPrefix(data, utf8BOM)), EncodingUTF8, nil
	default:
		out, err := decodeWith(charmap.Windows1252, data)
		return out, EncodingWindows1252, err
	}
}

func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.Join(errors.New("decoding text"), err)
	}
	return string(out), nil
}
