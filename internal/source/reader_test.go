package source_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/source"
)

func newReader(maxBytes int64) *source.Reader {
	return source.NewReader(maxBytes, zerolog.Nop())
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	ct, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`))
	require.NoError(t, err)

	doc, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = doc.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestRead_PlainText(t *testing.T) {
	data := []byte("login from 8.8.8.8 at 2024-08-21 10:00:00\n")
	doc, err := newReader(0).Read("access.log", data)
	require.NoError(t, err)

	assert.Equal(t, "access.log", doc.Name)
	assert.Equal(t, domain.SourceLog, doc.Kind)
	assert.Equal(t, string(data), doc.Text)
	assert.Equal(t, source.EncodingUTF8, doc.Encoding)
	assert.Equal(t, int64(len(data)), doc.SizeBytes)
	assert.Len(t, doc.SHA256, 64)
	assert.Equal(t, source.Checksum(data), doc.SHA256)
}

func TestRead_StripsUTF8BOM(t *testing.T) {
	doc, err := newReader(0).Read("export.csv", []byte("\xEF\xBB\xBFip,ts\n1.1.1.1,now\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCSV, doc.Kind)
	assert.Equal(t, "ip,ts\n1.1.1.1,now\n", doc.Text)
}

func TestRead_Windows1252Fallback(t *testing.T) {
	doc, err := newReader(0).Read("notes.txt", []byte("acceso desde 8.8.8.8 a las 10:00, caf\xe9"))
	require.NoError(t, err)
	assert.Equal(t, source.EncodingWindows1252, doc.Encoding)
	assert.Equal(t, "acceso desde 8.8.8.8 a las 10:00, café", doc.Text)
}

func TestRead_UTF16WithBOM(t *testing.T) {
	data := []byte{0xFF, 0xFE}
	for _, r := range "ip 1.2.3.4" {
		data = append(data, byte(r), 0)
	}
	doc, err := newReader(0).Read("dump.txt", data)
	require.NoError(t, err)
	assert.Equal(t, source.EncodingUTF16, doc.Encoding)
	assert.Equal(t, "ip 1.2.3.4", doc.Text)
}

func TestRead_Docx(t *testing.T) {
	body := `<w:p><w:r><w:t>First 8.8.8.8</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve">2024-01-01</w:t></w:r></w:p>` +
		`<w:p></w:p>` +
		`<w:p><w:r><w:t>   </w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second</w:t><w:br/><w:t>1.1.1.1</w:t></w:r></w:p>`

	doc, err := newReader(0).Read("Report.DOCX", buildDocx(t, body))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDOCX, doc.Kind)
	assert.Equal(t, "First 8.8.8.8\t2024-01-01\nSecond\n1.1.1.1", doc.Text)
}

func TestRead_DocxExtensionWithoutArchive(t *testing.T) {
	_, err := newReader(0).Read("fake.docx", []byte("just text, not a zip"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnreadable)
}

func TestRead_DocxMissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("other.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = newReader(0).Read("broken.docx", buf.Bytes())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnreadable)
}

func TestRead_DetectsTextWithoutKnownExtension(t *testing.T) {
	doc, err := newReader(0).Read("README", []byte("plain text mentioning 10.0.0.1\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceText, doc.Kind)
}

func TestRead_RejectsBinary(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")
	_, err := newReader(0).Read("image.png", png)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedSource)
}

func TestRead_TooLarge(t *testing.T) {
	_, err := newReader(10).Read("big.txt", bytes.Repeat([]byte("a"), 11))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceTooLarge)
	assert.Contains(t, err.Error(), "10 B")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "incident.txt")
	require.NoError(t, os.WriteFile(path, []byte("8.8.8.8"), 0o600))

	doc, err := newReader(1024).ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "incident.txt", doc.Name)
	assert.Equal(t, "8.8.8.8", doc.Text)
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := newReader(0).ReadFile(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, domain.ErrSourceUnreadable)

	_, err = newReader(0).ReadFile(dir)
	assert.ErrorIs(t, err, domain.ErrSourceUnreadable)

	big := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(big, bytes.Repeat([]byte("x"), 100), 0o600))
	_, err = newReader(50).ReadFile(big)
	assert.ErrorIs(t, err, domain.ErrSourceTooLarge)
}

func TestFromText(t *testing.T) {
	doc := source.FromText("", "1.1.1.1")
	assert.Equal(t, "input.txt", doc.Name)
	assert.Equal(t, domain.SourceText, doc.Kind)
	assert.Equal(t, int64(7), doc.SizeBytes)
	assert.Equal(t, source.Checksum([]byte("1.1.1.1")), doc.SHA256)
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", source.Checksum(nil))
}
