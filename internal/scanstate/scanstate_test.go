package scanstate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xqb64/tsunami/internal/portset"
)

func seed(ports ...portset.Port) map[portset.Port]struct{} {
	s := make(map[portset.Port]struct{}, len(ports))
	for _, p := range ports {
		s[p] = struct{}{}
	}
	return s
}

func TestNewTableStartsNotInspected(t *testing.T) {
	tbl := NewTable(seed(80, 443))
	assert.Equal(t, 2, tbl.Len())

	info, ok := tbl.Get(80)
	assert.True(t, ok)
	assert.Equal(t, NotInspected, info.Status)
	assert.Zero(t, info.Retried)
}

func TestMarkOpenIdempotentUnderDuplicates(t *testing.T) {
	tbl := NewTable(seed(443))

	assert.True(t, tbl.MarkOpenIfUndecided(443))
	assert.False(t, tbl.MarkOpenIfUndecided(443)) // second SYN|ACK is a no-op

	info, _ := tbl.Get(443)
	assert.Equal(t, Open, info.Status)
}

func TestMarkClosedDoesNotOverrideOpen(t *testing.T) {
	tbl := NewTable(seed(22))
	tbl.MarkOpenIfUndecided(22)

	assert.False(t, tbl.MarkClosedIfUndecided(22))
	info, _ := tbl.Get(22)
	assert.Equal(t, Open, info.Status)
}

func TestUnknownPortIsIgnored(t *testing.T) {
	tbl := NewTable(seed(80))
	assert.False(t, tbl.MarkOpenIfUndecided(9999))
}

func TestPendingRespectsMaxRetries(t *testing.T) {
	tbl := NewTable(seed(1, 2, 3))
	tbl.IncrementRetriedAll() // retried = 1 for all

	pending := tbl.Pending(1)
	assert.Empty(t, pending, "max_retries=1: no port should need another dispatch")
}

func TestIncrementRetriedNeverExceedsMax(t *testing.T) {
	tbl := NewTable(seed(80))
	tbl.IncrementRetried([]portset.Port{80}, 3)
	tbl.IncrementRetried([]portset.Port{80}, 3)
	tbl.IncrementRetried([]portset.Port{80}, 3)
	tbl.IncrementRetried([]portset.Port{80}, 3)

	info, _ := tbl.Get(80)
	assert.Equal(t, 3, info.Retried)
}

func TestFinalizeFilteredOnlyAffectsNotInspected(t *testing.T) {
	tbl := NewTable(seed(1, 2))
	tbl.MarkOpenIfUndecided(1)
	tbl.IncrementRetried([]portset.Port{1, 2}, 3)
	tbl.IncrementRetried([]portset.Port{1, 2}, 3)
	tbl.IncrementRetried([]portset.Port{1, 2}, 3)

	tbl.FinalizeFiltered(3)

	openInfo, _ := tbl.Get(1)
	assert.Equal(t, Open, openInfo.Status)

	filteredInfo, _ := tbl.Get(2)
	assert.Equal(t, Filtered, filteredInfo.Status)
}

func TestCountTalliesClosedFilteredAndRetries(t *testing.T) {
	tbl := NewTable(seed(1, 2, 3))
	tbl.MarkClosedIfUndecided(1)
	tbl.IncrementRetried([]portset.Port{2, 3}, 5)
	tbl.IncrementRetried([]portset.Port{2, 3}, 5)
	tbl.FinalizeFiltered(2)

	counts := tbl.Count()
	assert.Equal(t, 1, counts.Closed)
	assert.Equal(t, 2, counts.Filtered)
	assert.Equal(t, 2, counts.RetriedMoreThanOnce)
}
