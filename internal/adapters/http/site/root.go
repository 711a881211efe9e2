// Package site serves the browser front end from a directory on disk.
package site

import (
	"errors"
	"fmt"
	"net/http"
	"os"
)

// Error constants
var (
	ErrNoDirectory = errors.New("static directory not configured")
	ErrNotDir      = errors.New("static path is not a directory")
)

// Handler returns a file server rooted at dir. Directory listings are disabled;
// a directory without index.html answers 404.
func Handler(dir string) (http.Handler, error) {
	if dir == "" {
		return nil, ErrNoDirectory
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("static dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDir, dir)
	}
	return http.FileServer(noListing{http.Dir(dir)}), nil
}

// noListing hides directories that have no index page.
type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !info.IsDir() {
		return f, nil
	}
	index, err := n.fs.Open(name + "/index.html")
	if err != nil {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	_ = index.Close()
	return f, nil
}
