package store

import (
	"mime"
	"path/filepath"

	"github.com/azydesilva/ecorporate-server/domain"
)

type File struct {
	Name     string
	MimeType string
	Payload  []byte
}

func (f File) ContentType() string {
	if f.MimeType != "" {
		return f.MimeType
	}
	return mime.TypeByExtension(filepath.Ext(f.Name))
}

// FromPending converts a staged document into an uploadable file.
func FromPending(doc domain.PendingDocument) File {
	return File{
		Name:     doc.Name,
		MimeType: doc.MimeType,
		Payload:  doc.Payload,
	}
}
