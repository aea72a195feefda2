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

package backup

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"slayer.id/slayer/internal/store"
)

func open(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "slayer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := open(t)
	a, err := src.Insert(ctx, store.Post{Title: "first", Content: "**bold** call", Category: store.BTC})
	require.NoError(t, err)
	b, err := src.Insert(ctx, store.Post{Title: "second", Category: store.News, ImageURL: "/media/1-x.png"})
	require.NoError(t, err)
	_, err = src.AdjustReaction(ctx, a.ID, store.Rocket, 3)
	require.NoError(t, err)
	b.Title = "second, edited"
	_, err = src.Update(ctx, b)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := Export(ctx, &buf, src)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst := open(t)
	n, err = Import(ctx, bytes.NewReader(buf.Bytes()), dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	want, err := src.List(ctx, store.All)
	require.NoError(t, err)
	got, err := dst.List(ctx, store.All)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// importing twice replaces rather than duplicates
	n, err = Import(ctx, bytes.NewReader(buf.Bytes()), dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, err = dst.List(ctx, store.All)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestImportRejectsBadRecords(t *testing.T) {
	ctx := context.Background()

	_, err := Import(ctx, strings.NewReader("plain text"), open(t))
	assert.Error(t, err)

	var buf bytes.Buffer
	zw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339)
	_, err = zw.Write([]byte(`{"id":"ok","title":"t","category":"alt","created_at":"` + created + `"}` + "\n" +
		`{"id":"bad","title":"t","category":"memes","created_at":"` + created + `"}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	s := open(t)
	n, err := Import(ctx, &buf, s)
	assert.Equal(t, 1, n)
	assert.ErrorContains(t, err, "record 2")
	assert.True(t, store.IsKind(err, store.KindInvalid))
}
