package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordBoundedSubstringMatchesWholeWord(t *testing.T) {
	assert.True(t, wordBoundedSubstring("please do not spam here", "spam"))
	assert.True(t, wordBoundedSubstring("spam", "spam"))
	assert.True(t, wordBoundedSubstring("SPAM now", "spam"))
}

func TestWordBoundedSubstringRejectsPartialWord(t *testing.T) {
	assert.False(t, wordBoundedSubstring("spammer central", "spam"))
	assert.False(t, wordBoundedSubstring("no-spam-zone", "spam"))
}

func TestWordBoundedSubstringEmptyTrigger(t *testing.T) {
	assert.False(t, wordBoundedSubstring("anything", ""))
}

func TestGlobMatchWildcards(t *testing.T) {
	assert.True(t, globMatch("*crypto*", "free crypto giveaway"))
	assert.True(t, globMatch("buy now?", "buy nowx"))
	assert.False(t, globMatch("buy now", "do not buy now please"))
}

func TestGlobMatchCaseInsensitive(t *testing.T) {
	assert.True(t, globMatch("*FREE*", "totally free stuff"))
}

func TestParseInt64(t *testing.T) {
	assert.Equal(t, int64(42), parseInt64("42"))
	assert.Equal(t, int64(0), parseInt64(""))
}
