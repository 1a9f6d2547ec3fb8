package storagekey

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var extPattern = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// Ext returns the lowercased extension of filename without the dot, or ""
// when it is missing or contains anything but [a-z0-9]{1,10}.
func Ext(filename string) string {
	// Normalize windows separators so path.Ext sees only the base name.
	filename = strings.ReplaceAll(filename, `\`, "/")
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(path.Base(filename)), "."))
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}

// ForDataset builds projects/{projectID}/{uuid}{.ext}. Only the sanitized
// extension of the original filename survives into the key.
func ForDataset(projectID int64, filename string) string {
	key := fmt.Sprintf("projects/%d/%s", projectID, uuid.NewString())
	if ext := Ext(filename); ext != "" {
		key += "." + ext
	}
	return key
}
