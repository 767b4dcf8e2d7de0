package transport

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
)

// AttachmentReader decodes one attached file's raw bytes into text
// appended to the turn's query, or returns an error if the content
// cannot be read as that format.
type AttachmentReader func(raw []byte) (string, error)

// readers is the fixed file-extension to AttachmentReader table (spec.md
// §4.10: "binary attachments are decoded by file extension against a
// fixed reader table; unknown extensions emit an error frame and discard
// the attachment"). There is no registration hook: an unsupported
// extension is a client-visible error, not a server configuration gap.
var readers = map[string]AttachmentReader{
	".txt": readPlainText,
	".md":  readPlainText,
	".csv": readPlainText,
	".log": readPlainText,
}

func readPlainText(raw []byte) (string, error) {
	return string(raw), nil
}

// ErrUnsupportedAttachment is returned by decodeAttachment when fileName's
// extension has no entry in readers.
type ErrUnsupportedAttachment struct {
	Ext string
}

func (e ErrUnsupportedAttachment) Error() string {
	return fmt.Sprintf("transport: unsupported attachment extension %q", e.Ext)
}

// decodeAttachment reads a client frame's base64-encoded file payload and
// returns the text it contributes to the turn's query.
func decodeAttachment(fileName, fileDataB64 string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	reader, ok := readers[ext]
	if !ok {
		return "", ErrUnsupportedAttachment{Ext: ext}
	}
	raw, err := base64.StdEncoding.DecodeString(fileDataB64)
	if err != nil {
		return "", fmt.Errorf("transport: decoding attachment: %w", err)
	}
	return reader(raw)
}
