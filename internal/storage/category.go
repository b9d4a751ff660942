package storage

import (
	"path/filepath"
	"strings"
)

// Category is one of the fixed top-level folders under the storage root.
type Category string

const (
	CategoryAudio     Category = "audio"
	CategoryVideo     Category = "video"
	CategoryPictures  Category = "pictures"
	CategoryDocuments Category = "documents"
	CategoryFiles     Category = "files"
)

// categoryOrder is also the search order for name-only lookups.
var categoryOrder = []Category{
	CategoryAudio,
	CategoryVideo,
	CategoryPictures,
	CategoryDocuments,
	CategoryFiles,
}

var extensionCategories = map[string]Category{
	".mp4": CategoryVideo, ".mkv": CategoryVideo, ".3gp": CategoryVideo,
	".avi": CategoryVideo, ".mov": CategoryVideo, ".webm": CategoryVideo,

	".mp3": CategoryAudio, ".wav": CategoryAudio, ".m4a": CategoryAudio,
	".flac": CategoryAudio, ".aac": CategoryAudio, ".ogg": CategoryAudio,

	".jpg": CategoryPictures, ".jpeg": CategoryPictures, ".png": CategoryPictures,
	".gif": CategoryPictures, ".bmp": CategoryPictures, ".webp": CategoryPictures,
	".svg": CategoryPictures,

	".pdf": CategoryDocuments, ".doc": CategoryDocuments, ".docx": CategoryDocuments,
	".xls": CategoryDocuments, ".xlsx": CategoryDocuments, ".txt": CategoryDocuments,
	".ppt": CategoryDocuments, ".pptx": CategoryDocuments, ".csv": CategoryDocuments,
}

// Categories returns every category in lookup order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// Classify maps a file name to its category by extension. Unknown or
// missing extensions fall into CategoryFiles.
func Classify(fileName string) Category {
	ext := strings.ToLower(filepath.Ext(fileName))
	if c, ok := extensionCategories[ext]; ok {
		return c
	}
	return CategoryFiles
}

// ParseCategory validates a category name taken from a request path.
func ParseCategory(s string) (Category, bool) {
	for _, c := range categoryOrder {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

func (c Category) String() string {
	return string(c)
}
