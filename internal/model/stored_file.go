package model

import "time"

// Storage folders. The set is fixed; nothing outside it is ever read or served.
const (
	FolderUploads = "uploads"
	FolderBooks   = "books"
)

// Folders lists every folder the File Store manages.
var Folders = []string{FolderUploads, FolderBooks}

// StoredFile describes a file persisted in one of the storage folders.
// The filename is the only metadata; bytes stay with the store.
type StoredFile struct {
	Folder  string    `json:"folder"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Key returns the folder-qualified path, e.g. "uploads/20240101-120000.wav".
func (f StoredFile) Key() string {
	return f.Folder + "/" + f.Name
}

// IsFolder reports whether name is one of the managed folders.
func IsFolder(name string) bool {
	for _, f := range Folders {
		if f == name {
			return true
		}
	}
	return false
}
