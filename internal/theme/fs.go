package theme

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// CollectHTML walks rootDir recursively and returns every *.html path in
// lexical order.  A missing rootDir yields no files and no error.
func CollectHTML(rootDir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".html") {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
