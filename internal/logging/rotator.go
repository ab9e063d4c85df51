package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// RotatorConfig configures a FileRotator.
type RotatorConfig struct {
	Path       string
	MaxSizeMB  int64 // zero disables size rotation
	MaxAgeDays int   // zero keeps rotated files regardless of age
	MaxBackups int   // zero keeps every rotated file
	Compress   bool
}

// FileRotator is an io.Writer over a log file that rotates on size and at
// day boundaries. Rotated files are named <name>-<timestamp><ext>, gzipped
// when enabled, and pruned by count and age.
type FileRotator struct {
	cfg RotatorConfig
	now func() time.Time

	mu      sync.Mutex
	file    *os.File
	size    int64
	opened  time.Time
	pending sync.WaitGroup
}

// NewFileRotator opens the log file, creating its directory.
func NewFileRotator(cfg RotatorConfig) (*FileRotator, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	r := &FileRotator{cfg: cfg, now: time.Now}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) openFile() error {
	file, err := os.OpenFile(r.cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	r.file = file
	r.size = info.Size()
	r.opened = r.now()
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			return 0, err
		}
	}

	if r.shouldRotate(int64(len(p))) {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// shouldRotate reports whether writing n more bytes needs a new file. An
// empty file is never rotated for size, so one oversized entry still lands.
func (r *FileRotator) shouldRotate(n int64) bool {
	if max := r.cfg.MaxSizeMB * 1024 * 1024; max > 0 && r.size > 0 && r.size+n > max {
		return true
	}
	y1, m1, d1 := r.opened.Date()
	y2, m2, d2 := r.now().Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// Rotate forces a rotation.
func (r *FileRotator) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotate()
}

func (r *FileRotator) rotate() error {
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("close current log: %w", err)
		}
		r.file = nil
	}

	rotated := r.rotatedName(r.now())
	if err := os.Rename(r.cfg.Path, rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	if err := r.openFile(); err != nil {
		return err
	}

	// compression must finish before pruning looks at the directory
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		if r.cfg.Compress {
			compressFile(rotated)
		}
		r.cleanup()
	}()
	return nil
}

// rotatedName picks an unused name for a file rotated at t.
func (r *FileRotator) rotatedName(t time.Time) string {
	dir, name, ext := r.parts()
	stamp := t.Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("%s-%s%s", name, stamp, ext))
	for i := 1; exists(path) || exists(path+".gz"); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s-%s.%d%s", name, stamp, i, ext))
	}
	return path
}

func (r *FileRotator) parts() (dir, name, ext string) {
	base := filepath.Base(r.cfg.Path)
	ext = filepath.Ext(base)
	return filepath.Dir(r.cfg.Path), strings.TrimSuffix(base, ext), ext
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// compressFile gzips path and removes the original on success.
func compressFile(path string) {
	input, err := os.Open(path)
	if err != nil {
		return
	}
	defer input.Close()

	output, err := os.Create(path + ".gz")
	if err != nil {
		return
	}

	gz := gzip.NewWriter(output)
	gz.Name = filepath.Base(path)
	_, err = io.Copy(gz, input)
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if cerr := output.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

// cleanup removes rotated files beyond MaxBackups or older than MaxAgeDays.
func (r *FileRotator) cleanup() {
	rotated, err := r.rotatedFiles()
	if err != nil {
		return
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	files := make([]fileInfo, 0, len(rotated))
	for _, p := range rotated {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path: p, modTime: info.ModTime()})
	}
	slices.SortFunc(files, func(a, b fileInfo) int {
		return a.modTime.Compare(b.modTime)
	})

	if n := r.cfg.MaxBackups; n > 0 && len(files) > n {
		for _, f := range files[:len(files)-n] {
			os.Remove(f.path)
		}
		files = files[len(files)-n:]
	}

	if r.cfg.MaxAgeDays > 0 {
		cutoff := r.now().AddDate(0, 0, -r.cfg.MaxAgeDays)
		for _, f := range files {
			if f.modTime.Before(cutoff) {
				os.Remove(f.path)
			}
		}
	}
}

func (r *FileRotator) rotatedFiles() ([]string, error) {
	dir, name, ext := r.parts()
	return filepath.Glob(filepath.Join(dir, name+"-*"+ext+"*"))
}

// Files returns the current log file followed by the rotated ones.
func (r *FileRotator) Files() ([]string, error) {
	rotated, err := r.rotatedFiles()
	return append([]string{r.cfg.Path}, rotated...), err
}

// Close waits for background compression and closes the file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending.Wait()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// Sync flushes any buffered data to the file.
func (r *FileRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}
