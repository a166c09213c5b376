package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExclusionSetExactMatch(t *testing.T) {
	s := NewExclusionSet(" CacheBinsAll , views", "", "watchdog_php")

	assert.Equal(t, []string{"CacheBinsAll", "views", "watchdog_php"}, s.Names())
	assert.True(t, s.Excludes("CacheBinsAll", "cache_bins_all", "cache"))
	assert.True(t, s.Excludes("ViewsCount", "views_count", "views"))
	assert.True(t, s.Excludes("WatchdogPhp", "watchdog_php", "watchdog"))

	// No substring matching either way.
	assert.False(t, s.Excludes("CacheBinsAllExtra", "cache_bins_all_extra", "cache"))
	assert.False(t, s.Excludes("CacheBins", "cache_bins", "cache"))
}

func TestExclusionSetZeroValue(t *testing.T) {
	var s ExclusionSet
	assert.False(t, s.Excludes("A", "a", "cache"))
	assert.Equal(t, 0, s.Len())

	s.Add("a,b")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Excludes("", "a", ""))
}
