package upload

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"

	"taskmanager/internal/apperr"
)

const (
	// FieldName is the multipart field carrying task documents.
	FieldName   = "documents"
	MaxFiles    = 3
	MaxFileSize = 5 << 20
	PDFType     = "application/pdf"
)

const (
	MsgTooManyFiles = "Too many files. Maximum is 3 files"
	MsgTooLarge     = "File size too large. Maximum size is 5MB"
	MsgNotPDF       = "Only PDF files are allowed"
)

// File is one uploaded document before it reaches blob storage.
type File struct {
	Filename    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

func FromMultipart(headers []*multipart.FileHeader) []File {
	files := make([]File, 0, len(headers))
	for _, h := range headers {
		h := h
		files = append(files, File{
			Filename:    h.Filename,
			Size:        h.Size,
			ContentType: h.Header.Get("Content-Type"),
			Open: func() (io.ReadCloser, error) {
				return h.Open()
			},
		})
	}
	return files
}

// Validate checks one upload batch. The cap applies to the batch, not to the
// documents already attached to a task.
func Validate(files []File) error {
	if len(files) > MaxFiles {
		return apperr.Validation(MsgTooManyFiles)
	}
	for _, f := range files {
		if f.Size > MaxFileSize {
			return apperr.Validation(MsgTooLarge)
		}
		mediaType, _, err := mime.ParseMediaType(f.ContentType)
		if err != nil || mediaType != PDFType {
			return apperr.Validation(MsgNotPDF)
		}
		if err := sniff(f); err != nil {
			return err
		}
	}
	return nil
}

// sniff makes sure the bytes agree with the declared type.
func sniff(f File) error {
	if f.Open == nil {
		return apperr.Validation(MsgNotPDF)
	}
	rc, err := f.Open()
	if err != nil {
		return apperr.Internal(fmt.Sprintf("Error reading %s", f.Filename), err)
	}
	defer rc.Close()

	mt, err := mimetype.DetectReader(rc)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("Error reading %s", f.Filename), err)
	}
	if !mt.Is(PDFType) {
		return apperr.Validation(MsgNotPDF)
	}
	return nil
}
