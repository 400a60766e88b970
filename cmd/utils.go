package cmd

import (
	"os"
)

// FileExists reports whether filePath names a regular file, e.g. the
// optional configuration file.
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
