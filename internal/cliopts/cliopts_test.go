package cliopts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xqb64/tsunami/internal/portset"
)

func TestValidateRejectsEmptyPortsAndRanges(t *testing.T) {
	o := Options{Target: "127.0.0.1"}
	assert.Error(t, o.Validate())
}

func TestValidateAcceptsPortsOnly(t *testing.T) {
	o := Options{Target: "127.0.0.1", Ports: []portset.Port{80}}
	assert.NoError(t, o.Validate())
}

func TestValidateAcceptsRangesOnly(t *testing.T) {
	o := Options{Target: "127.0.0.1", Ranges: []rangeValue{{Start: 1, End: 2}}}
	assert.NoError(t, o.Validate())
}

func TestRangeValueUnmarshalText(t *testing.T) {
	var r rangeValue
	assert.NoError(t, r.UnmarshalText([]byte("100-200")))
	assert.Equal(t, rangeValue{Start: 100, End: 200}, r)

	assert.Error(t, r.UnmarshalText([]byte("not-a-range")))
}

func TestRangesAsPortset(t *testing.T) {
	o := Options{Ranges: []rangeValue{{Start: 1, End: 2}, {Start: 10, End: 20}}}
	got := o.RangesAsPortset()
	assert.Equal(t, []portset.Range{{Start: 1, End: 2}, {Start: 10, End: 20}}, got)
}
