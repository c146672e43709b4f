package graph

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// AssetFields are the data keys holding file paths.
var AssetFields = []string{"image_path", "music_path", "character_image"}

// ResolveAssetPaths turns relative asset paths into absolute ones rooted at
// baseDir.
func ResolveAssetPaths(t *Template, baseDir string) {
	rewriteAssets(t, func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	})
}

// RelativizeAssetPaths stores existing absolute asset paths relative to
// baseDir. Paths outside baseDir stay absolute and are logged.
func RelativizeAssetPaths(t *Template, baseDir string, logger *slog.Logger) {
	rewriteAssets(t, func(p string) string {
		if !filepath.IsAbs(p) {
			return p
		}
		if _, err := os.Stat(p); err != nil {
			return p
		}
		rel, err := filepath.Rel(baseDir, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			logger.Warn("asset outside project directory, keeping absolute path", "path", p, "project", baseDir)
			return p
		}
		return filepath.ToSlash(rel)
	})
}

func rewriteAssets(t *Template, fn func(string) string) {
	for _, n := range t.Nodes.All() {
		var next Data
		for _, field := range AssetFields {
			p, ok := n.Data[field].(string)
			if !ok || p == "" {
				continue
			}
			np := fn(p)
			if np == p {
				continue
			}
			if next == nil {
				next = n.Data.Clone()
			}
			next[field] = np
		}
		if next != nil {
			n.Data = next
		}
	}
}
