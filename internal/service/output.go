package service

import (
	"os"
	"path/filepath"
	"strings"

	"streetclip/internal/models"
)

// OutputPaths resolves where the map and the vector drawing are written.
//
// An existing directory receives <kinds>_map.html and <kinds>_map.svg. A path
// ending in .html or .svg is used as is for that format, the other format
// goes next to it with its own extension. Any other value is used as a base
// name. Without a path the files land in dir.
func OutputPaths(exportPath, dir string, kinds []models.DataKind) (htmlPath, svgPath string) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	stem := strings.Join(names, "-") + "_map"

	var base string
	switch {
	case exportPath == "":
		base = filepath.Join(dir, stem)
	case isDir(exportPath):
		base = filepath.Join(exportPath, stem)
	case strings.EqualFold(filepath.Ext(exportPath), ".html"):
		return exportPath, strings.TrimSuffix(exportPath, filepath.Ext(exportPath)) + ".svg"
	case strings.EqualFold(filepath.Ext(exportPath), ".svg"):
		return strings.TrimSuffix(exportPath, filepath.Ext(exportPath)) + ".html", exportPath
	default:
		base = exportPath + "_map"
	}
	return base + ".html", base + ".svg"
}

func isDir(path string) bool {
	if strings.HasSuffix(path, string(os.PathSeparator)) {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
