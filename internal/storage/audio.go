package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidFilename is returned when an upload has no usable file name.
var ErrInvalidFilename = errors.New("invalid file name")

// SaveUpload stores an uploaded file under dir using the client's file name
// and returns that name. Path components are stripped. An existing file with
// the same name is overwritten.
func SaveUpload(dir string, file *multipart.FileHeader) (string, error) {
	name, err := cleanName(file.Filename)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	if err := copyUpload(file, filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return name, nil
}

// Scratch is a per-request staging copy of an upload.
type Scratch struct {
	Path string
	Size int64
}

// Stage copies an upload into dir under a fresh random name that keeps the
// original extension. The caller must Release the scratch file.
func Stage(dir string, file *multipart.FileHeader) (*Scratch, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	var ext string
	if name, err := cleanName(file.Filename); err == nil {
		ext = strings.ToLower(filepath.Ext(name))
	}
	dst := filepath.Join(dir, uuid.NewString()+ext)
	if err := copyUpload(file, dst); err != nil {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("failed to stage file: %w", err)
	}

	var size int64
	if info, err := os.Stat(dst); err == nil {
		size = info.Size()
	}
	return &Scratch{Path: dst, Size: size}, nil
}

// Release deletes the scratch file. Releasing twice is not an error.
func (s *Scratch) Release() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// cleanName reduces a client supplied name to its final path element.
func cleanName(name string) (string, error) {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return "", ErrInvalidFilename
	}
	return name, nil
}

// copyUpload writes the uploaded file to dst.
func copyUpload(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	return writeFile(dst, src)
}

// writeFile creates dst from src. A failed Close fails the write.
func writeFile(dst string, src io.Reader) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, src)
	return err
}
