// Package attachments records uploaded files on their owning note.
//
// The cloud note store is a Postgres table of notes carrying a JSONB
// attachments array. When no database is configured the LogSink stands in so
// uploads still complete locally.
package attachments

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Meta describes an uploaded object as stored on the note.
type Meta struct {
	URL         string `json:"url"`
	Path        string `json:"path"`
	Name        string `json:"name"`
	SizeBytes   int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// ObjectKey builds the storage key for an attachment upload:
// users/{owner}/attachments/{note}/{unixMillis}_{name}.
func ObjectKey(ownerID, noteID, name string, now time.Time) string {
	return fmt.Sprintf("users/%s/attachments/%s/%d_%s",
		keySegment(ownerID), keySegment(noteID), now.UnixMilli(), sanitizeName(name))
}

func keySegment(value string) string {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, "/", "_")
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
