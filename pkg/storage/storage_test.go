package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	k := FotoKey(7, "JPG")
	assert.True(t, strings.HasPrefix(k, "vistorias/7/fotos/"))
	assert.True(t, strings.HasSuffix(k, ".jpg"))

	assert.Equal(t, "vistorias/7/checklist/03-numero-de-inscricao-42.png",
		ChecklistFotoKey(7, 3, "Número de Inscrição", 42, ".png"))
	assert.Equal(t, "vistorias/7/laudo/LN-1.pdf", LaudoKey(7, "LN-1"))
	assert.Equal(t, ".png", Ext("a/b/c.png"))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStore(LocalOptions{Root: t.TempDir(), URLPrefix: "/uploads/", Secret: "s"})
	require.NoError(t, err)

	require.NoError(t, st.Put(ctx, "vistorias/1/fotos/a.jpg", strings.NewReader("img"), 3, "image/jpeg"))
	rc, err := st.Get(ctx, "vistorias/1/fotos/a.jpg")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "img", string(b))

	require.NoError(t, st.Move(ctx, "vistorias/1/fotos/a.jpg", "vistorias/1/checklist/01-proa-1.jpg"))
	_, err = st.Get(ctx, "vistorias/1/fotos/a.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	u, err := st.URL(ctx, "vistorias/1/checklist/01-proa-1.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "/uploads/vistorias/1/checklist/01-proa-1.jpg?token="), u)

	require.NoError(t, st.Delete(ctx, "vistorias/1/checklist/01-proa-1.jpg"))
	require.NoError(t, st.Delete(ctx, "vistorias/1/checklist/01-proa-1.jpg"), "deleting twice is not an error")
	assert.ErrorIs(t, st.Move(ctx, "missing", "other"), ErrNotFound)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	st, err := NewLocalStore(LocalOptions{Root: t.TempDir(), URLPrefix: "/uploads"})
	require.NoError(t, err)
	err = st.Put(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	failDel bool
	copies  []string
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDel {
		return nil, errors.New("access denied")
	}
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, err := url.PathUnescape(strings.TrimPrefix(*in.CopySource, *in.Bucket+"/"))
	if err != nil {
		return nil, err
	}
	f.copies = append(f.copies, *in.CopySource)
	b, ok := f.objects[src]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	f.objects[*in.Key] = b
	return &s3.CopyObjectOutput{}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://s3.test/" + *in.Bucket + "/" + *in.Key + "?sig=1"}, nil
}

func TestS3StoreMove(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	st := NewS3StoreWithClient(fake, fakePresigner{}, "fotos", time.Minute)

	require.NoError(t, st.Put(ctx, "a.jpg", strings.NewReader("img"), 3, "image/jpeg"))
	require.NoError(t, st.Move(ctx, "a.jpg", "b.jpg"))
	assert.NotContains(t, fake.objects, "a.jpg")
	assert.Equal(t, []byte("img"), fake.objects["b.jpg"])

	_, err := st.Get(ctx, "a.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.Move(ctx, "nope.jpg", "c.jpg"), ErrNotFound)

	u, err := st.URL(ctx, "b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://s3.test/fotos/b.jpg?sig=1", u)
}

func TestS3StoreMoveDeleteFailureKeepsSource(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	st := NewS3StoreWithClient(fake, fakePresigner{}, "fotos", 0)
	require.NoError(t, st.Put(ctx, "a.jpg", strings.NewReader("img"), 3, ""))
	fake.failDel = true

	err := st.Move(ctx, "a.jpg", "b.jpg")
	require.Error(t, err)
	assert.Contains(t, fake.objects, "a.jpg")
	assert.Contains(t, fake.objects, "b.jpg")
}

func TestS3StoreMoveEscapesCopySource(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	st := NewS3StoreWithClient(fake, fakePresigner{}, "fotos", time.Minute)
	require.NoError(t, st.Put(ctx, "vistorias/1/fotos/lado direito ç.jpg", strings.NewReader("img"), 3, ""))

	require.NoError(t, st.Move(ctx, "vistorias/1/fotos/lado direito ç.jpg", "vistorias/1/checklist/01-boreste-1.jpg"))
	require.Len(t, fake.copies, 1)
	assert.Equal(t, "fotos/vistorias/1/fotos/lado%20direito%20%C3%A7.jpg", fake.copies[0])
	assert.Equal(t, []byte("img"), fake.objects["vistorias/1/checklist/01-boreste-1.jpg"])
}

func TestLocalStoreServesSignedURLsOnly(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	st, err := NewLocalStore(LocalOptions{Root: root, URLPrefix: "/uploads", Secret: "s", TTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, "vistorias/1/fotos/a b.jpg", strings.NewReader("img"), 3, "image/jpeg"))
	require.NoError(t, st.Put(ctx, "vistorias/1/fotos/c.jpg", strings.NewReader("other"), 5, "image/jpeg"))

	srv := httptest.NewServer(http.StripPrefix("/uploads/", st))
	defer srv.Close()
	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	u, err := st.URL(ctx, "vistorias/1/fotos/a b.jpg")
	require.NoError(t, err)
	code, body := get(u)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "img", body)

	code, _ = get("/uploads/vistorias/1/fotos/a%20b.jpg")
	assert.Equal(t, http.StatusForbidden, code, "unsigned")

	tok := u[strings.Index(u, "?"):]
	code, _ = get("/uploads/vistorias/1/fotos/c.jpg" + tok)
	assert.Equal(t, http.StatusForbidden, code, "token bound to another key")

	code, _ = get("/uploads/vistorias/1/fotos/")
	assert.Equal(t, http.StatusNotFound, code, "no directory listing")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vistorias", "1", "dir"), 0o755))
	d, err := st.URL(ctx, "vistorias/1/dir")
	require.NoError(t, err)
	code, _ = get(d)
	assert.Equal(t, http.StatusNotFound, code, "signed directory")

	expired, err := NewLocalStore(LocalOptions{Root: root, URLPrefix: "/uploads", Secret: "s", TTL: time.Minute})
	require.NoError(t, err)
	expired.ttl = -time.Minute
	old, err := expired.URL(ctx, "vistorias/1/fotos/c.jpg")
	require.NoError(t, err)
	code, _ = get(old)
	assert.Equal(t, http.StatusForbidden, code, "expired")
}
