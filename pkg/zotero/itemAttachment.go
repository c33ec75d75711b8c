package zotero

import (
	"path/filepath"
	"strings"
)

// link modes of attachments whose file lives in zotero storage. linked_file
// and linked_url attachments have no downloadable content on the server.
var storedLinkModes = []string{"imported_file", "imported_url"}

// IsStoredAttachment reports whether the item is an attachment with a file
// stored in the cloud library.
func (item *Item) IsStoredAttachment() bool {
	if item.Data.ItemType != "attachment" {
		return false
	}
	for _, mode := range storedLinkModes {
		if item.Data.LinkMode == mode {
			return true
		}
	}
	return false
}

// AttachmentExt returns the file extension for an attachment, dot included.
// The original filename wins; without one the content type decides (pdf or
// snapshot html, as the zotero client stores them).
func (item *Item) AttachmentExt() string {
	if ext := filepath.Ext(item.Data.Filename); ext != "" {
		return ext
	}
	if strings.Contains(item.Data.ContentType, "pdf") {
		return ".pdf"
	}
	return ".html"
}
