// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureChurchApplications(ctx, db); err != nil {
		problems = append(problems, "church_applications: "+err.Error())
	}
	if err := ensureMinistryMemberships(ctx, db); err != nil {
		problems = append(problems, "ministry_memberships: "+err.Error())
	}
	if err := ensureEvents(ctx, db); err != nil {
		problems = append(problems, "events: "+err.Error())
	}
	if err := ensureOTPs(ctx, db); err != nil {
		problems = append(problems, "otps: "+err.Error())
	}
	if err := ensureOAuthStates(ctx, db); err != nil {
		problems = append(problems, "oauth_states: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "IndexOptionsConflict") ||
		strings.Contains(s, "IndexKeySpecsConflict")
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		name := ""
		if m.Options != nil && m.Options.Name != nil {
			name = *m.Options.Name
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isOptionsConflictErr(err) {
				// An index with these keys exists under a different name or
				// with different options. Drop by name and recreate.
				if name != "" {
					if _, dropErr := coll.Indexes().DropOne(ctx, name); dropErr != nil {
						zap.L().Warn("drop conflicting index failed",
							zap.String("collection", coll.Name()),
							zap.String("name", name),
							zap.Error(dropErr))
					}
					if _, err2 := coll.Indexes().CreateOne(ctx, m); err2 == nil {
						continue
					}
				}
			}
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			continue
		}

		zap.L().Debug("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email must be unique across all users
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Member lists scoped to a church
		{
			Keys:    bson.D{{Key: "church_id", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_users_church_role"),
		},
	})
}

func ensureChurchApplications(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("church_applications")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One live application per email: uniqueness applies only while the
		// application is pending or approved. Rejected applications may retry.
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_churchapps_email_live").
				SetPartialFilterExpression(bson.M{
					"status": bson.M{"$in": bson.A{"pending", "approved"}},
				}),
		},
		// Join codes are globally unique; most applications have none.
		{
			Keys: bson.D{{Key: "join_code", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetSparse(true).
				SetName("uniq_churchapps_joincode"),
		},
		// Review queue listing: filter by status, newest first
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_churchapps_status_created"),
		},
	})
}

func ensureMinistryMemberships(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("ministry_memberships")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One membership per (church, user, ministry); update the doc to change status
		{
			Keys: bson.D{
				{Key: "church_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "ministry", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_mm_church_user_ministry"),
		},
		// Roster and request-queue reads: church + ministry + status
		{
			Keys: bson.D{
				{Key: "church_id", Value: 1},
				{Key: "ministry", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("idx_mm_church_ministry_status"),
		},
		// A user's memberships across ministries
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_mm_user_status"),
		},
	})
}

func ensureEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Church calendar listing, soonest first
		{
			Keys:    bson.D{{Key: "church_id", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetName("idx_events_church_date"),
		},
	})
}

func ensureOTPs(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("otps")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Expired codes are purged automatically
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_otps_expires_ttl").SetExpireAfterSeconds(0),
		},
		// One live code per (user, purpose)
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "purpose", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_otps_user_purpose"),
		},
	})
}

func ensureOAuthStates(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("oauth_states")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_oauthstates_state"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_oauthstates_expires_ttl").SetExpireAfterSeconds(0),
		},
	})
}
