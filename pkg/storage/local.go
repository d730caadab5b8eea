package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// LocalOptions configure a LocalStore. URLs are signed with Secret and expire
// after TTL; an empty Secret gets a random one, valid until restart.
type LocalOptions struct {
	Root      string
	URLPrefix string
	Secret    string
	TTL       time.Duration
}

// LocalStore keeps objects under a directory. It serves them itself, but only
// through the signed URLs it hands out.
type LocalStore struct {
	Root      string
	URLPrefix string

	secret []byte
	ttl    time.Duration
}

func NewLocalStore(o LocalOptions) (*LocalStore, error) {
	if err := os.MkdirAll(o.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if o.Secret == "" {
		o.Secret = uuid.NewString()
	}
	if o.TTL <= 0 {
		o.TTL = 15 * time.Minute
	}
	return &LocalStore{
		Root:      o.Root,
		URLPrefix: strings.TrimSuffix(o.URLPrefix, "/"),
		secret:    []byte(o.Secret),
		ttl:       o.TTL,
	}, nil
}

func (l *LocalStore) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.Root, filepath.FromSlash(k)), nil
}

func (l *LocalStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (l *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (l *LocalStore) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *LocalStore) Move(_ context.Context, src, dst string) error {
	sp, err := l.path(src)
	if err != nil {
		return err
	}
	dp, err := l.path(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dp), 0o755); err != nil {
		return err
	}
	if err := os.Rename(sp, dp); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// URL returns URLPrefix/key with a token bound to the key.
func (l *LocalStore) URL(_ context.Context, key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	tok, err := l.sign(k)
	if err != nil {
		return "", err
	}
	parts := strings.Split(k, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}
	return l.URLPrefix + "/" + strings.Join(parts, "/") + "?token=" + url.QueryEscape(tok), nil
}

func (l *LocalStore) sign(key string) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
	})
	return t.SignedString(l.secret)
}

func (l *LocalStore) verify(key, tok string) error {
	_, err := jwt.ParseWithClaims(tok, &jwt.RegisteredClaims{}, l.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(key))
	return err
}

func (l *LocalStore) keyFunc(*jwt.Token) (interface{}, error) { return l.secret, nil }

// ServeHTTP serves one object per signed URL. Mount it with the URL prefix
// stripped. Directories are never listed.
func (l *LocalStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	k, err := cleanKey(r.URL.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := l.verify(k, r.URL.Query().Get("token")); err != nil {
		http.Error(w, "link inválido ou expirado", http.StatusForbidden)
		return
	}
	f, err := os.Open(filepath.Join(l.Root, filepath.FromSlash(k)))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil || !st.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}
