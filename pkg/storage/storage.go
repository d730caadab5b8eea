// Package storage keeps inspection photos, laudo PDFs and payment receipts in
// an object store (S3 or a local directory).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"vistorias/pkg/texto"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the subset of blob operations the API needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// Move renames an object; backends without rename copy then delete.
	Move(ctx context.Context, src, dst string) error
	// URL returns a URL a browser can fetch the object from.
	URL(ctx context.Context, key string) (string, error)
}

// FotoKey is the initial key of an uploaded photo.
func FotoKey(vistoriaID uint, ext string) string {
	return fmt.Sprintf("vistorias/%d/fotos/%s%s", vistoriaID, uuid.NewString(), normExt(ext))
}

// ChecklistFotoKey is the key a photo is renamed to once it satisfies a
// checklist item: the item order and name make the bucket browsable.
func ChecklistFotoKey(vistoriaID uint, ordem int, nome string, fotoID uint, ext string) string {
	slug := texto.Slug(nome)
	if slug == "" {
		slug = "item"
	}
	return fmt.Sprintf("vistorias/%d/checklist/%02d-%s-%d%s", vistoriaID, ordem, slug, fotoID, normExt(ext))
}

func LaudoKey(vistoriaID uint, numero string) string {
	return fmt.Sprintf("vistorias/%d/laudo/%s.pdf", vistoriaID, numero)
}

func ComprovanteKey(loteID uint, ext string) string {
	return fmt.Sprintf("pagamentos/%d/comprovante-%d%s", loteID, time.Now().Unix(), normExt(ext))
}

// Ext returns the extension of a key including the dot.
func Ext(key string) string { return path.Ext(key) }

func normExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)[1:]
	if k == "" || k != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return k, nil
}
