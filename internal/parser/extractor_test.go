package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"ats-scorer-go/internal/ats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractText(_ context.Context, _ []byte, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestExtractorPlainText(t *testing.T) {
	e := NewExtractor()
	text, err := e.Extract(context.Background(), ats.RawDocument{
		Name:   "resume.txt",
		Format: ats.FormatTXT,
		Data:   []byte("Jane Doe\nPython developer"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nPython developer", text)
}

func TestExtractorDetectsFormatFromName(t *testing.T) {
	e := NewExtractor()
	text, err := e.Extract(context.Background(), ats.RawDocument{Name: "cv.TXT", Data: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestExtractorUnsupportedFormat(t *testing.T) {
	e := NewExtractor()
	tests := []ats.RawDocument{
		{Name: "resume.odt", Data: []byte("x")},
		{Name: "resume.pdf", Format: ats.FormatPDF, Data: []byte("%PDF")},
	}
	for _, doc := range tests {
		t.Run(doc.Name, func(t *testing.T) {
			_, err := e.Extract(context.Background(), doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, ats.ErrUnsupportedFormat)
		})
	}
}

func TestExtractorPDFFallback(t *testing.T) {
	doc := ats.RawDocument{Name: "resume.pdf", Format: ats.FormatPDF, Data: []byte("%PDF-1.4")}

	t.Run("primary succeeds", func(t *testing.T) {
		primary := &fakeExtractor{text: "primary"}
		fallback := &fakeExtractor{text: "fallback"}
		e := NewExtractor(WithFormat(ats.FormatPDF, primary), WithPDFFallback(fallback))

		text, err := e.Extract(context.Background(), doc)
		require.NoError(t, err)
		assert.Equal(t, "primary", text)
		assert.Equal(t, 0, fallback.calls)
	})

	t.Run("fallback used on failure", func(t *testing.T) {
		primary := &fakeExtractor{err: errors.New("bad xref")}
		fallback := &fakeExtractor{text: "fallback"}
		e := NewExtractor(WithFormat(ats.FormatPDF, primary), WithPDFFallback(fallback))

		text, err := e.Extract(context.Background(), doc)
		require.NoError(t, err)
		assert.Equal(t, "fallback", text)
		assert.Equal(t, 1, fallback.calls)
	})

	t.Run("both fail", func(t *testing.T) {
		e := NewExtractor(
			WithFormat(ats.FormatPDF, &fakeExtractor{err: errors.New("bad xref")}),
			WithPDFFallback(&fakeExtractor{err: errors.New("no pages")}),
		)
		_, err := e.Extract(context.Background(), doc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad xref")
		assert.Contains(t, err.Error(), "no pages")
	})

	t.Run("no fallback", func(t *testing.T) {
		e := NewExtractor(WithFormat(ats.FormatPDF, &fakeExtractor{err: errors.New("bad xref")}))
		_, err := e.Extract(context.Background(), doc)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ats.ErrUnsupportedFormat)
	})
}

func TestExtractorDocx(t *testing.T) {
	data := buildDocx(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		`<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>Skills</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>Python &amp; SQL</w:t></w:r></w:p>`+
		`</w:body></w:document>`)

	e := NewExtractor()
	text, err := e.Extract(context.Background(), ats.RawDocument{Name: "resume.docx", Format: ats.FormatDOCX, Data: data})
	require.NoError(t, err)
	assert.Contains(t, text, "Jane Doe\n")
	assert.Contains(t, text, "Skills\n")
	assert.Contains(t, text, "Python & SQL")
}

func TestDocxXMLToText(t *testing.T) {
	in := `<w:p><w:r><w:t>A</w:t><w:tab/><w:t>B</w:t></w:r></w:p><w:p><w:r><w:t>C&lt;D</w:t><w:br/><w:t>E</w:t></w:r></w:p>`
	assert.Equal(t, "A\tB\nC<D\nE\n", docxXMLToText(in))
}

func TestPDFExtractorsRejectGarbage(t *testing.T) {
	_, err := PlainPDFTextExtractor{}.ExtractText(context.Background(), []byte("not a pdf"), "x.pdf")
	assert.Error(t, err)
}

func TestNewEinoPDFTextExtractorOptions(t *testing.T) {
	e, err := NewEinoPDFTextExtractor(context.Background(), WithEinoTimeout(0))
	require.NoError(t, err)
	require.NotNil(t, e.parser)
	assert.Equal(t, defaultEinoTimeout, e.timeout)

	e, err = NewEinoPDFTextExtractor(context.Background(), WithEinoTimeout(5e9))
	require.NoError(t, err)
	assert.Equal(t, int64(5e9), int64(e.timeout))
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/document.xml":            documentXML,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	}
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
