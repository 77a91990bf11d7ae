// Package paths resolves the on-disk locations under the data directory.
package paths

import "path/filepath"

// Data returns the data directory. A relative directory is resolved
// against the working directory.
func Data(workingDir, directory string) string {
	if filepath.IsAbs(directory) {
		return directory
	}
	return filepath.Join(workingDir, directory)
}

func Transcripts(data string) string {
	return filepath.Join(data, "transcripts")
}

func Log(data string) string {
	return filepath.Join(data, "log")
}
