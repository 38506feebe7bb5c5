// Package analysis implements the file analysis flow: an uploaded image or
// PDF is downloaded, classified, described by the AI provider with
// rate-limit aware retries, recorded, and answered with a text reply.
package analysis

import (
	"path/filepath"
	"strings"
)

const (
	// DefaultPhotoName is used for photos, which carry no file name.
	DefaultPhotoName = "image.jpg"
	// DefaultDocumentName stands in for a document sent without a name. It
	// has no suffix, so such a document is never analyzed.
	DefaultDocumentName = "document"
)

// Source tells whether a file arrived as a named document or as a photo.
type Source int

const (
	SourceDocument Source = iota
	SourcePhoto
)

func (s Source) String() string {
	if s == SourcePhoto {
		return "photo"
	}
	return "document"
}

// InboundFile references an uploaded file. It lives for one event only.
type InboundFile struct {
	FileID string
	Name   string
	Source Source
}

// NewDocumentFile builds an InboundFile for a document upload. An empty
// name falls back to DefaultDocumentName.
func NewDocumentFile(fileID, name string) InboundFile {
	if strings.TrimSpace(name) == "" {
		name = DefaultDocumentName
	}
	return InboundFile{FileID: fileID, Name: name, Source: SourceDocument}
}

// NewPhotoFile builds an InboundFile for a photo upload.
func NewPhotoFile(fileID string) InboundFile {
	return InboundFile{FileID: fileID, Name: DefaultPhotoName, Source: SourcePhoto}
}

// Event is one inbound file delivered to a chat.
type Event struct {
	ChatID int64
	File   InboundFile
}

// Kind is the processing path chosen for a file.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindDocument:
		return "document"
	default:
		return "unsupported"
	}
}

// Classify picks the processing path from the file name suffix,
// ignoring case.
func Classify(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return KindImage
	case ".pdf":
		return KindDocument
	default:
		return KindUnsupported
	}
}
