package logging

import (
	"path/filepath"
	"strings"
)

// CommonDir returns the deepest directory containing every given path. It is
// used to display test items relative to the root they were discovered under.
func CommonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	common := filepath.Dir(paths[0])
	for _, path := range paths[1:] {
		dir := filepath.Dir(path)
		for !strings.HasPrefix(dir+string(filepath.Separator), common+string(filepath.Separator)) {
			parent := filepath.Dir(common)
			if parent == common {
				return common
			}
			common = parent
		}
	}
	return common
}
