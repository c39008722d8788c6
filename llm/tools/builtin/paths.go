package builtin

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileConfig configures the file-reading tools.
type FileConfig struct {
	// UploadDir is where uploaded files live. Relative tool arguments resolve against it.
	UploadDir string

	// RestrictToUploadDir rejects paths that resolve outside UploadDir.
	RestrictToUploadDir bool
}

// resolve turns a tool argument into a filesystem path.
func (c FileConfig) resolve(arg string) (string, error) {
	p := strings.Trim(strings.TrimSpace(arg), "\"'`")
	if p == "" {
		return "", fmt.Errorf("no file path given")
	}
	if c.UploadDir != "" && !filepath.IsAbs(p) {
		p = filepath.Join(c.UploadDir, p)
	}
	p = filepath.Clean(p)

	if !c.RestrictToUploadDir || c.UploadDir == "" {
		return p, nil
	}

	root, err := filepath.Abs(c.UploadDir)
	if err != nil {
		return "", fmt.Errorf("resolve upload directory: %w", err)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	if realRoot, err := filepath.EvalSymlinks(root); err == nil {
		root = realRoot
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the upload directory", p)
	}
	return abs, nil
}
