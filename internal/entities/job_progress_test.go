package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChapterJobKey_RoundTrip(t *testing.T) {
	bookID, chapter, ok := ParseChapterJobKey(ChapterJobKey(12, 3))
	assert.True(t, ok)
	assert.Equal(t, uint(12), bookID)
	assert.Equal(t, 3, chapter)

	for _, key := range []string{"", "book:1", "upload", "book:x:chapter:2"} {
		_, _, ok := ParseChapterJobKey(key)
		assert.False(t, ok, key)
	}
}

func TestJobProgress_Percent(t *testing.T) {
	assert.Equal(t, 0, JobProgress{}.Percent())
	assert.Equal(t, 25, JobProgress{Total: 8, Processed: 2}.Percent())
}
