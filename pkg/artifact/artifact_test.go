// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	a := New("hello.txt", KindDocument, []byte("hello"))
	assert.True(t, strings.HasPrefix(a.ID, "art_"))
	assert.True(t, ValidID(a.ID))
	assert.Equal(t, int64(5), a.Bytes)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", a.SHA256)
	assert.True(t, strings.HasPrefix(a.MimeType, "text/plain"))
}

func TestDetectMimeType_FallsBackToContent(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	assert.Equal(t, "image/png", DetectMimeType("", png))
	assert.Equal(t, "application/pdf", DetectMimeType("report.pdf", nil))
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("art_0b6e-AZ"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("../x"))
	assert.False(t, ValidID("a/b"))
	assert.False(t, ValidID(strings.Repeat("a", 129)))
}

func TestNewest(t *testing.T) {
	now := time.Now()
	all := []*Artifact{
		{ID: "b", CreatedAt: now},
		{ID: "c", CreatedAt: now.Add(time.Second)},
		{ID: "a", CreatedAt: now},
	}
	got := Newest(all, 0)
	assert.Equal(t, []string{"c", "a", "b"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Len(t, Newest(got, 1), 1)
}
