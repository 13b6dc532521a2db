package media

import (
	"bytes"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the coarse content category the client-facing detect endpoint
// routes on. Only KindImage is accepted; everything else maps
// to HTTP 501 except KindUnknown, which maps to a 200 "Incorrect Result".
type Kind string

const (
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindApp      Kind = "app"
	KindAudio    Kind = "audio"
	KindArchive  Kind = "archive"
	KindDocument Kind = "document"
	KindFont     Kind = "font"
	KindUnknown  Kind = "unknown"
)

// SniffKind classifies the payload's content kind by magic bytes, using
// mimetype's sniffing tree.
func SniffKind(b []byte) Kind {
	mt := mimetype.Detect(b)
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is("image/png"), m.Is("image/jpeg"), m.Is("image/gif"),
			m.Is("image/webp"), m.Is("image/bmp"), m.Is("image/tiff"):
			return KindImage
		}
	}
	root := mt.String()
	switch {
	case hasPrefix(root, "image/"):
		return KindImage
	case hasPrefix(root, "video/"):
		return KindVideo
	case hasPrefix(root, "audio/"):
		return KindAudio
	case isApp(root):
		return KindApp
	case isArchive(root):
		return KindArchive
	case isDocument(root):
		return KindDocument
	case isFont(root):
		return KindFont
	default:
		return KindUnknown
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func isApp(mt string) bool {
	switch mt {
	case "application/x-executable", "application/x-mach-binary",
		"application/x-elf", "application/vnd.microsoft.portable-executable",
		"application/x-msdownload", "application/vnd.android.package-archive":
		return true
	}
	return false
}

func isArchive(mt string) bool {
	switch mt {
	case "application/zip", "application/x-tar", "application/gzip",
		"application/x-7z-compressed", "application/x-rar-compressed",
		"application/x-bzip2", "application/x-xz":
		return true
	}
	return false
}

func isDocument(mt string) bool {
	switch mt {
	case "application/pdf", "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel", "text/plain", "text/csv", "text/html",
		"application/rtf":
		return true
	}
	return false
}

func isFont(mt string) bool {
	switch mt {
	case "font/ttf", "font/otf", "font/woff", "font/woff2",
		"application/font-sfnt", "application/vnd.ms-fontobject":
		return true
	}
	return false
}

// Extension sniffs an image's extension by magic bytes, in probe order:
// PNG, JPEG/JPEG2000 (reported "jpg"), GIF, WebP, falling back to "png"
// for anything else (including already-canonical PNG bytes produced by
// Canonicalize).
func Extension(b []byte) string {
	switch {
	case bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")):
		return "png"
	case bytes.HasPrefix(b, []byte("\xff\xd8\xff")):
		return "jpg"
	case bytes.HasPrefix(b, []byte("\x00\x00\x00\x0cjP  ")) || bytes.HasPrefix(b, []byte("\xff\x4f\xff\x51")):
		return "jpg"
	case bytes.HasPrefix(b, []byte("GIF87a")) || bytes.HasPrefix(b, []byte("GIF89a")):
		return "gif"
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return "webp"
	default:
		return "png"
	}
}
