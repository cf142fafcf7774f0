package upload

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"taskmanager/internal/apperr"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

func memFile(name, contentType string, data []byte) File {
	return File{
		Filename:    name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestValidateAcceptsPDFs(t *testing.T) {
	files := []File{
		memFile("a.pdf", PDFType, pdfBytes),
		memFile("b.pdf", "application/pdf; charset=binary", pdfBytes),
		memFile("c.pdf", PDFType, pdfBytes),
	}
	assert.NoError(t, Validate(files))
	assert.NoError(t, Validate(nil))
}

func TestValidateRejectsFourthFile(t *testing.T) {
	files := make([]File, 4)
	for i := range files {
		files[i] = memFile("x.pdf", PDFType, pdfBytes)
	}
	err := Validate(files)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, MsgTooManyFiles, apperr.Message(err))
}

func TestValidateRejectsOversize(t *testing.T) {
	f := memFile("big.pdf", PDFType, pdfBytes)
	f.Size = MaxFileSize + 1
	err := Validate([]File{f})
	assert.Equal(t, MsgTooLarge, apperr.Message(err))
}

func TestValidateRejectsDeclaredType(t *testing.T) {
	err := Validate([]File{memFile("notes.txt", "text/plain", []byte("hello"))})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, MsgNotPDF, apperr.Message(err))
}

func TestValidateRejectsDisguisedContent(t *testing.T) {
	err := Validate([]File{memFile("fake.pdf", PDFType, []byte("MZ\x90\x00 not a pdf at all"))})
	assert.Equal(t, MsgNotPDF, apperr.Message(err))
}
