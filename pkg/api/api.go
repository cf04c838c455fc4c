// Package api holds the JSON bodies exchanged between the server and the
// CLI client.
package api

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatSize renders a byte count for display, e.g. "1.5 KiB".
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// Endpoint: GET /api/images
type Image struct {
	Key           string    `json:"key"`
	Name          string    `json:"name"`
	Folder        string    `json:"folder"`
	URL           string    `json:"url"`
	CDNURL        string    `json:"cdnUrl"`
	Size          int64     `json:"size"`
	SizeFormatted string    `json:"sizeFormatted"`
	ContentType   string    `json:"contentType,omitempty"`
	Uploaded      time.Time `json:"uploaded"`
	ETag          string    `json:"etag"`
}
type Folder struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	FullPath      string `json:"fullPath"`
	ObjectCount   int    `json:"objectCount"`
	Size          int64  `json:"size"`
	SizeFormatted string `json:"sizeFormatted"`
}
type ListResponse struct {
	Images []Image `json:"images"`
	// Folders is only present for a listing of the root.
	Folders   []Folder `json:"folders,omitempty"`
	Truncated bool     `json:"truncated"`
	// Cursor is null unless Truncated is true.
	Cursor *string `json:"cursor"`
	Total  int     `json:"total"`
}

// Endpoint: POST /api/images
type UploadResponse struct {
	Success       bool   `json:"success"`
	Key           string `json:"key"`
	Name          string `json:"name"`
	Folder        string `json:"folder"`
	URL           string `json:"url"`
	CDNURL        string `json:"cdnUrl"`
	Size          int64  `json:"size"`
	SizeFormatted string `json:"sizeFormatted"`
	ContentType   string `json:"contentType"`
}

// Endpoint: DELETE /api/images/{key}
type DeleteImageResponse struct {
	Message string `json:"message"`
	Key     string `json:"key"`
}

// Endpoint: GET /api/folders
type FoldersResponse struct {
	Folders []Folder `json:"folders"`
}

// Endpoint: POST /api/folders
type CreateFolderRequest struct {
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}
type CreateFolderResponse struct {
	Success  bool   `json:"success"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	FullPath string `json:"fullPath"`
	Message  string `json:"message"`
}

// Endpoint: DELETE /api/folders
type DeleteFolderRequest struct {
	Path string `json:"path"`
}
type DeleteFailure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}
type DeleteFolderResponse struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	DeletedCount int             `json:"deletedCount"`
	Failures     []DeleteFailure `json:"failures"`
}

// Endpoint: POST /api/upload-key
type UploadKeyRequest struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Folder      string `json:"folder,omitempty"`
}
type UploadKeyResponse struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
	CDNURL      string `json:"cdnUrl"`
}

// Endpoint: GET /api/stats
type StatsBucket struct {
	Count         int    `json:"count" yaml:"count"`
	Size          int64  `json:"size" yaml:"size"`
	SizeFormatted string `json:"sizeFormatted" yaml:"sizeFormatted"`
}
type DayStat struct {
	Date        string `json:"date" yaml:"date"`
	StatsBucket `yaml:",inline"`
}
type ExtensionStat struct {
	Extension   string `json:"extension" yaml:"extension"`
	StatsBucket `yaml:",inline"`
}
type FolderStat struct {
	Folder      string `json:"folder" yaml:"folder"`
	StatsBucket `yaml:",inline"`
}
type StatsResponse struct {
	TotalImages        int             `json:"totalImages" yaml:"totalImages"`
	TotalSize          int64           `json:"totalSize" yaml:"totalSize"`
	TotalSizeFormatted string          `json:"totalSizeFormatted" yaml:"totalSizeFormatted"`
	DailyStats         []DayStat       `json:"dailyStats" yaml:"dailyStats"`
	ExtensionStats     []ExtensionStat `json:"extensionStats" yaml:"extensionStats"`
	FolderStats        []FolderStat    `json:"folderStats" yaml:"folderStats"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Endpoint: GET /api/auth
type Principal struct {
	ID   string `json:"id"`
	Type string `json:"type"` // api or basic
}
