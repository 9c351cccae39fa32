package vst2

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// ErrNotFound is returned when plugin is not found in scanned paths.
var ErrNotFound = errors.New("plugin not found")

// Cache is a list of plugin libraries found in scan paths.
type Cache struct {
	Paths []string
	Libs  Libraries
}

// Libraries are plugin library paths grouped by directory and keyed by
// plugin name.
type Libraries map[string]map[string]string

var (
	defaultScanPaths = getDefaultScanPaths()
	ext              = getExt()
)

// NewCache scans default paths and provided paths for plugin libraries.
// Libraries are not loaded.
func NewCache(paths ...string) *Cache {
	c := Cache{
		Paths: uniquePaths(append(defaultScanPaths, paths...)),
	}
	c.Scan()
	return &c
}

// Scan walks the scan paths. Paths that can't be read are skipped.
func (c *Cache) Scan() {
	c.Libs = make(Libraries)
	for _, path := range c.Paths {
		_ = filepath.WalkDir(path, c.scanLibs)
	}
}

func (c *Cache) scanLibs(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return nil
	}
	if !strings.HasSuffix(d.Name(), ext) {
		return nil
	}
	dir := filepath.Dir(path)
	if _, ok := c.Libs[dir]; !ok {
		c.Libs[dir] = make(map[string]string)
	}
	c.Libs[dir][strings.TrimSuffix(d.Name(), ext)] = path
	// darwin plugins are bundles.
	if d.IsDir() {
		return filepath.SkipDir
	}
	return nil
}

// Find returns path of the plugin library by its name.
func (c *Cache) Find(name string) (string, error) {
	for _, dir := range c.dirs() {
		if path, ok := c.Libs[dir][name]; ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %v", ErrNotFound, name, c.Paths)
}

func (c *Cache) dirs() []string {
	dirs := make([]string, 0, len(c.Libs))
	for dir := range c.Libs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func getDefaultScanPaths() (paths []string) {
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"~/Library/Audio/Plug-Ins/VST",
			"/Library/Audio/Plug-Ins/VST",
		}
	case "windows":
		paths = []string{
			"C:\\Program Files (x86)\\Steinberg\\VSTPlugins",
			"C:\\Program Files\\Steinberg\\VSTPlugins",
		}
	}
	if envVstPath := os.Getenv("VST_PATH"); envVstPath != "" {
		paths = append(paths, filepath.SplitList(envVstPath)...)
	}
	return
}

func getExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".vst"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

func uniquePaths(paths []string) []string {
	u := make([]string, 0, len(paths))
	m := make(map[string]bool)
	for _, val := range paths {
		if !m[val] {
			m[val] = true
			u = append(u, val)
		}
	}
	return u
}

func (c Cache) String() string {
	var buf bytes.Buffer
	buf.WriteString("Scan paths:\n")
	for _, path := range c.Paths {
		fmt.Fprintf(&buf, "\t%v\n", path)
	}
	buf.WriteString("Available plugins:\n")
	buf.WriteString(c.Libs.String())
	return buf.String()
}

func (libraries Libraries) String() string {
	var buf bytes.Buffer
	dirs := make([]string, 0, len(libraries))
	for dir := range libraries {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		fmt.Fprintf(&buf, "\t%v\n", dir)
		names := make([]string, 0, len(libraries[dir]))
		for name := range libraries[dir] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&buf, "\t\t%v\n", name)
		}
	}
	return buf.String()
}
