package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/birimbahub/marketplace/internal/core/domain"
)

func TestToDocument_OmitsEmptyFields(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := toDocument(&domain.AuditEvent{ID: "e-1", Kind: domain.AuditSignOut, Outcome: "ok", Timestamp: ts})

	assert.Equal(t, "e-1", doc["_id"])
	assert.Equal(t, ts, doc["timestamp"])
	assert.NotContains(t, doc, "user_id")
	assert.NotContains(t, doc, "role")
	assert.NotContains(t, doc, "detail")

	doc = toDocument(&domain.AuditEvent{ID: "e-2", UserID: "u-1", Role: domain.RoleBuyer, Detail: "polled"})
	assert.Equal(t, "u-1", doc["user_id"])
	assert.Equal(t, "buyer", doc["role"])
	assert.Equal(t, "polled", doc["detail"])
}

func TestAuditRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert", func(mt *mtest.T) {
		repo := NewAuditRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.InsertEvent(context.Background(), &domain.AuditEvent{
			ID: "e-1", Kind: domain.AuditSignIn, UserID: "u-1", Outcome: "session", Timestamp: time.Now(),
		})
		require.NoError(t, err)
	})

	mt.Run("insert failure", func(mt *mtest.T) {
		repo := NewAuditRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))

		err := repo.InsertEvent(context.Background(), &domain.AuditEvent{ID: "e-1"})
		assert.Error(t, err)
	})

	mt.Run("list by user", func(mt *mtest.T) {
		repo := NewAuditRepository(mt.DB)
		ns := mt.DB.Name() + "." + auditCollection
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "e-2"}, {Key: "kind", Value: "sign_out"}, {Key: "user_id", Value: "u-1"}, {Key: "outcome", Value: "ok"},
			}),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch, bson.D{
				{Key: "_id", Value: "e-1"}, {Key: "kind", Value: "sign_in"}, {Key: "user_id", Value: "u-1"}, {Key: "role", Value: "farmer"},
			}),
		)

		events, err := repo.ListByUser(context.Background(), "u-1", 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "e-2", events[0].ID)
		assert.Equal(t, domain.RoleFarmer, events[1].Role)
	})
}
