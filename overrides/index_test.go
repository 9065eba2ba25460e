package overrides_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/schedule-engine/overrides"
)

func TestDriftIndex_ClaimByID_Once(t *testing.T) {
	idx := overrides.NewDriftIndex([]overrides.Record{rec("o1", "A")})

	got, ok := idx.ClaimByID("o1")
	assert.True(t, ok)
	assert.Equal(t, "A", got.Name)

	_, ok = idx.ClaimByID("o1")
	assert.False(t, ok, "second claim by id must fail")

	_, ok = idx.ClaimByName("A")
	assert.False(t, ok, "claim through the other key must fail too")

	assert.Empty(t, idx.RemainingOrphans())
}

func TestDriftIndex_ClaimByName_RemovesIDKey(t *testing.T) {
	idx := overrides.NewDriftIndex([]overrides.Record{rec("o1", "A"), rec("o2", "B")})

	_, ok := idx.ClaimByName("B")
	assert.True(t, ok)

	_, ok = idx.ClaimByID("o2")
	assert.False(t, ok)

	assert.Equal(t, []overrides.Record{rec("o1", "A")}, idx.RemainingOrphans())
}

func TestDriftIndex_UnknownKeys(t *testing.T) {
	idx := overrides.NewDriftIndex(nil)

	_, ok := idx.ClaimByID("nope")
	assert.False(t, ok)
	_, ok = idx.ClaimByName("nope")
	assert.False(t, ok)
	assert.Empty(t, idx.RemainingOrphans())
}

func TestDriftIndex_DuplicateName_ClaimingWinnerKeepsLoserOrphaned(t *testing.T) {
	idx := overrides.NewDriftIndex([]overrides.Record{rec("o1", "A"), rec("o2", "A")})

	got, ok := idx.ClaimByName("A")
	assert.True(t, ok)
	assert.Equal(t, "o2", got.ID)

	// o1 is still reachable by id even though it lost the name key.
	got, ok = idx.ClaimByID("o1")
	assert.True(t, ok)
	assert.Equal(t, "o1", got.ID)

	ids, names := idx.Ambiguous()
	assert.Empty(t, ids)
	assert.Equal(t, []string{"A"}, names)
}

func TestDriftIndex_ClaimLoserByID_KeepsWinnerNameKey(t *testing.T) {
	idx := overrides.NewDriftIndex([]overrides.Record{rec("o1", "A"), rec("o2", "A")})

	_, ok := idx.ClaimByID("o1")
	assert.True(t, ok)

	got, ok := idx.ClaimByName("A")
	assert.True(t, ok)
	assert.Equal(t, "o2", got.ID)
}

func TestResolve_ReturnsCopyWithAdoptedID(t *testing.T) {
	idx := overrides.NewDriftIndex([]overrides.Record{rec("o1", "A", mon(9, 17))})
	desired := rec("", "A", mon(9, 12))

	op, ok := overrides.Resolve(desired, idx)

	assert.True(t, ok)
	assert.Equal(t, overrides.Update{Record: rec("o1", "A", mon(9, 12))}, op)
	assert.Equal(t, "", desired.ID)
}

func TestResolve_IdenticalIsNoOp(t *testing.T) {
	idx := overrides.NewDriftIndex([]overrides.Record{rec("o1", "A", mon(9, 17))})

	op, ok := overrides.Resolve(rec("o1", "A", mon(9, 17)), idx)

	assert.False(t, ok)
	assert.Nil(t, op)
}
