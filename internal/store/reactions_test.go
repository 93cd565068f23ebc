package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadsync/pkg/types"
)

func sumByKind(c *types.ReactionCounts) int {
	total := 0
	for _, n := range c.ByKind {
		total += n
	}
	return total
}

func TestApplyAdd_NewReaction(t *testing.T) {
	before := types.NewReactionCounts()
	after := applyAdd(before, types.ReactionLike, "")

	assert.Equal(t, 1, after.ByKind[types.ReactionLike])
	assert.Equal(t, 1, after.Total)
	assert.Equal(t, after.Total, sumByKind(after))

	// Pure: the input is untouched.
	assert.Equal(t, 0, before.Total)
	assert.Empty(t, before.ByKind)
}

func TestApplyAdd_SwitchKeepsTotal(t *testing.T) {
	c := types.NewReactionCounts()
	c = applyAdd(c, types.ReactionLike, "")

	c = applyAdd(c, types.ReactionLove, types.ReactionLike)

	assert.Equal(t, 0, c.ByKind[types.ReactionLike])
	assert.Equal(t, 1, c.ByKind[types.ReactionLove])
	assert.Equal(t, 1, c.Total)
	assert.Equal(t, c.Total, sumByKind(c))
}

func TestApplyAdd_NilCounts(t *testing.T) {
	after := applyAdd(nil, types.ReactionWow, "")
	require.NotNil(t, after)
	assert.Equal(t, 1, after.ByKind[types.ReactionWow])
	assert.Equal(t, 1, after.Total)
}

func TestApplyRemove(t *testing.T) {
	c := applyAdd(types.NewReactionCounts(), types.ReactionHaha, "")
	after := applyRemove(c, types.ReactionHaha)

	assert.Equal(t, 0, after.ByKind[types.ReactionHaha])
	assert.Equal(t, 0, after.Total)
	assert.Equal(t, 1, c.Total, "input untouched")
}

func TestApplyRemove_FloorsAtZero(t *testing.T) {
	after := applyRemove(types.NewReactionCounts(), types.ReactionSad)
	assert.Equal(t, 0, after.ByKind[types.ReactionSad])
	assert.Equal(t, 0, after.Total)

	assert.NotNil(t, applyRemove(nil, types.ReactionSad))
}

func TestRecountReactions(t *testing.T) {
	counts := recountReactions([]*types.Reaction{
		{ID: "r1", UserID: "u1", Kind: types.ReactionLike},
		{ID: "r2", UserID: "u2", Kind: types.ReactionLike},
		{ID: "r3", UserID: "u3", Kind: types.ReactionAngry},
	})

	assert.Equal(t, 2, counts.ByKind[types.ReactionLike])
	assert.Equal(t, 1, counts.ByKind[types.ReactionAngry])
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, counts.Total, sumByKind(counts))

	assert.Equal(t, 0, recountReactions(nil).Total)
}

func TestUpsertReaction_OnePerUser(t *testing.T) {
	p := post("p1", "", "u2")
	upsertReaction(p, &types.Reaction{ID: "r1", PostID: "p1", UserID: "u1", Kind: types.ReactionLike})
	upsertReaction(p, &types.Reaction{ID: "r1", PostID: "p1", UserID: "u1", Kind: types.ReactionLove})
	upsertReaction(p, &types.Reaction{ID: "r2", PostID: "p1", UserID: "u3", Kind: types.ReactionLike})

	require.Len(t, p.Reactions, 2)
	assert.Equal(t, types.ReactionLove, userReaction(p, "u1").Kind)
	assert.Equal(t, types.ReactionLike, userReaction(p, "u3").Kind)
	assert.Nil(t, userReaction(p, "u9"))
}

func TestRemoveReactionByID(t *testing.T) {
	p := post("p1", "", "u2")
	upsertReaction(p, &types.Reaction{ID: "r1", PostID: "p1", UserID: "u1", Kind: types.ReactionLike})

	removed := removeReactionByID(p, "r1")
	require.NotNil(t, removed)
	assert.Equal(t, types.ReactionLike, removed.Kind)
	assert.Empty(t, p.Reactions)

	assert.Nil(t, removeReactionByID(p, "r1"))
}
