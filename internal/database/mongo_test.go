package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestUserIndexes(t *testing.T) {
	idx := UserIndexes()
	require.Len(t, idx, 3)

	assert.Equal(t, bson.D{{Key: "username", Value: 1}}, idx[0].Keys)
	require.NotNil(t, idx[0].Options.Unique)
	assert.True(t, *idx[0].Options.Unique)

	assert.Equal(t, bson.D{{Key: "email", Value: 1}}, idx[1].Keys)
	require.NotNil(t, idx[1].Options.Unique)
	assert.True(t, *idx[1].Options.Unique)

	require.NotNil(t, idx[2].Options.Sparse)
	assert.True(t, *idx[2].Options.Sparse)
}

func TestEnsureUserIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("success", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		assert.NoError(mt, EnsureUserIndexes(context.Background(), mt.Coll))
	})

	mt.Run("server error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    85,
			Message: "index options conflict",
			Name:    "IndexOptionsConflict",
		}))
		assert.Error(mt, EnsureUserIndexes(context.Background(), mt.Coll))
	})
}
