// Package media classifies and validates cue media files.
package media

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrFileTooLarge     = errors.New("file too large")
	ErrQuotaExceeded    = errors.New("presentation storage quota exceeded")
	ErrEmptyFile        = errors.New("file is empty")
)

// Kind groups content types by how a cue renders them.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

const sniffLen = 3072

var allowed = map[string]Kind{
	"image/jpeg":  KindImage,
	"image/png":   KindImage,
	"image/gif":   KindImage,
	"image/webp":  KindImage,
	"video/mp4":   KindVideo,
	"video/webm":  KindVideo,
	"video/3gpp":  KindVideo,
	"audio/mpeg":  KindAudio,
	"audio/wav":   KindAudio,
	"audio/x-wav": KindAudio,
	"audio/ogg":   KindAudio,
}

// Media describes a stored cue file.
type Media struct {
	Key         string `json:"-"`
	Name        string `json:"name"`
	ContentType string `json:"type"`
	Kind        Kind   `json:"kind"`
	Size        int64  `json:"size"`
}

// Limits bounds file sizes.
type Limits struct {
	MaxFileSize         int64
	MaxPresentationSize int64
}

// DefaultLimits mirrors the service defaults.
var DefaultLimits = Limits{MaxFileSize: 50 << 20, MaxPresentationSize: 50 << 20}

// Check validates a new file of the given size against the limits, where
// used is the bytes already stored in the presentation (excluding any file
// being replaced).
func (l Limits) Check(size, used int64) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if l.MaxFileSize > 0 && size > l.MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, l.MaxFileSize)
	}
	if l.MaxPresentationSize > 0 && used+size > l.MaxPresentationSize {
		return fmt.Errorf("%w: %d of %d bytes used", ErrQuotaExceeded, used, l.MaxPresentationSize)
	}
	return nil
}

// Classify maps a content type onto a Kind.
func Classify(contentType string) (Kind, error) {
	base, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		base = strings.ToLower(strings.TrimSpace(contentType))
	}
	kind, ok := allowed[base]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMedia, contentType)
	}
	return kind, nil
}

// Sniff detects the content type of r from its leading bytes. The returned
// reader replays the consumed bytes. Only when the content is generic
// (binary or plain text) is the declared type used, then the file extension.
func Sniff(r io.Reader, declared, filename string) (string, io.Reader, error) {
	head, body, err := peek(r, sniffLen)
	if err != nil {
		return "", nil, err
	}
	return detect(head, declared, filename), body, nil
}

// peek reads up to n leading bytes. Seekable readers are rewound and
// returned as-is so callers can still retry reads.
func peek(r io.Reader, n int) ([]byte, io.Reader, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		head := make([]byte, n)
		read, err := io.ReadFull(rs, head)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil, fmt.Errorf("read file header: %w", err)
		}
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, nil, fmt.Errorf("rewind file: %w", err)
		}
		return head[:read], rs, nil
	}

	br := bufio.NewReaderSize(r, n)
	head, err := br.Peek(n)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("read file header: %w", err)
	}
	return head, br, nil
}

func detect(head []byte, declared, filename string) string {
	detected := mimetype.Detect(head)
	for m := detected; m != nil; m = m.Parent() {
		if _, ok := allowed[m.String()]; ok {
			return m.String()
		}
		if base, _, err := mime.ParseMediaType(m.String()); err == nil {
			if _, ok := allowed[base]; ok {
				return base
			}
		}
	}

	// Content recognised as something specific keeps its real type so
	// Classify rejects it whatever the client claims.
	if !generic(detected) {
		return detected.String()
	}

	if base, _, err := mime.ParseMediaType(declared); err == nil {
		if _, ok := allowed[base]; ok {
			return base
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); byExt != "" {
		if base, _, err := mime.ParseMediaType(byExt); err == nil {
			if _, ok := allowed[base]; ok {
				return base
			}
		}
	}
	return detected.String()
}

func generic(m *mimetype.MIME) bool {
	return m.Is("application/octet-stream") || m.Is("text/plain")
}

// Key returns the object storage key for a file stored in a presentation.
func Key(presentationID, objectID string) string {
	return "presentations/" + presentationID + "/" + objectID
}
