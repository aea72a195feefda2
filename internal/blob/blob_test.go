// MIT License

// Copyright (c) 2018 Akhil Indurti

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:

// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.

// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package blob

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func TestObjectName(t *testing.T) {
	now := time.UnixMilli(1718000000123)
	for _, c := range []struct{ in, want string }{
		{"chart.png", "1718000000123-chart.png"},
		{"btc  weekly chart.png", "1718000000123-btc--weekly-chart.png"},
		{"tab\tname.jpg", "1718000000123-tab-name.jpg"},
		{"/home/me/Desktop/my chart.png", "1718000000123-my-chart.png"},
	} {
		assert.Equal(t, c.want, ObjectName(now, c.in), c.in)
	}
}

func TestUploadAndOpen(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFS(dir, "https://cdn.example.com/media/")
	require.NoError(t, err)

	body := "not really a png"
	obj, err := fs.Upload(context.Background(), "1718-chart.png", strings.NewReader(body))
	require.NoError(t, err)
	sum := blake3.Sum256([]byte(body))
	assert.Equal(t, Object{Key: "1718-chart.png", Size: int64(len(body)), Sum: hex.EncodeToString(sum[:])}, obj)

	f, err := fs.Open(obj.Key)
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are cleaned up")
}

func TestPublicURL(t *testing.T) {
	fs, err := NewFS(t.TempDir(), "/media")
	require.NoError(t, err)
	assert.Equal(t, "/media/1718-chart.png", fs.PublicURL("1718-chart.png"))
	assert.Equal(t, "/media/1718-a%3Fb.png", fs.PublicURL("1718-a?b.png"))
}

func TestRejectsUnsafeKeys(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFS(filepath.Join(dir, "media"), "/media")
	require.NoError(t, err)
	for _, key := range []string{"", "../escape", "a/b", `a\b`, "..", ".upload-1", "x..y"} {
		_, err := fs.Upload(context.Background(), key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		_, err = fs.Open(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
	_, err = os.Stat(filepath.Join(dir, "escape"))
	assert.True(t, os.IsNotExist(err))
}

func TestOpenMissing(t *testing.T) {
	fs, err := NewFS(t.TempDir(), "/media")
	require.NoError(t, err)
	_, err = fs.Open("missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadCancelled(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFS(dir, "/media")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fs.Upload(ctx, "late.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
