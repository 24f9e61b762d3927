package services

import (
	"context"
	"time"

	"pingpoint/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConnectionService manages the social graph. Edges are stored directed and
// read in both directions.
type ConnectionService struct {
	env Env
}

func NewConnectionService(env Env) *ConnectionService {
	return &ConnectionService{env: env.withDefaults()}
}

type ConnectionEvent struct {
	ConnectionID uuid.UUID `json:"connectionId"`
	FromUserID   uuid.UUID `json:"fromUserId"`
	ToUserID     uuid.UUID `json:"toUserId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Connect links two users. It reports false without error when the pair is
// already linked in either direction.
func (s *ConnectionService) Connect(ctx context.Context, rawFrom, rawTo string) (bool, error) {
	from, err := requireID("fromUser", rawFrom)
	if err != nil {
		return false, err
	}
	to, err := requireID("toUser", rawTo)
	if err != nil {
		return false, err
	}
	if from == to {
		return false, ErrInvalidRequest.With("cannot connect a user to themselves")
	}

	now := s.env.now()
	edge := models.Connection{
		FromUserID: from,
		ToUserID:   to,
		Status:     models.ConnectionConnected,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created := false
	err = s.env.write(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, from); err != nil {
			return err
		}
		if err := requireUser(tx, to); err != nil {
			return err
		}

		var existing int64
		err := tx.Model(&models.Connection{}).Where(
			"(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)",
			from, to, to, from,
		).Count(&existing).Error
		if err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
		if result.Error != nil {
			return result.Error
		}
		created = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, s.env.fail("connect", err)
	}

	if created {
		s.env.publish(ctx, EventConnectionCreated, ConnectionEvent{
			ConnectionID: edge.ID,
			FromUserID:   from,
			ToUserID:     to,
			CreatedAt:    now,
		})
	}
	return created, nil
}

// ListConnections returns the ids of users connected to userID in either direction.
func (s *ConnectionService) ListConnections(ctx context.Context, rawUserID string) ([]uuid.UUID, error) {
	userID, err := requireID("userId", rawUserID)
	if err != nil {
		return nil, err
	}

	orm := s.env.read(ctx)
	if err := requireUser(orm, userID); err != nil {
		return nil, s.env.fail("list connections", err)
	}
	peers, err := connectedPeers(orm, userID)
	if err != nil {
		return nil, s.env.fail("list connections", err)
	}
	return peers, nil
}

func connectedPeers(tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	var rows []struct {
		Peer uuid.UUID
	}
	err := tx.Raw(`
		SELECT to_user_id AS peer FROM connections WHERE from_user_id = ? AND status = ?
		UNION
		SELECT from_user_id AS peer FROM connections WHERE to_user_id = ? AND status = ?
		ORDER BY peer`,
		userID, models.ConnectionConnected, userID, models.ConnectionConnected,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	peers := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		peers = append(peers, r.Peer)
	}
	return peers, nil
}

// isConnected reports whether a connected edge exists between a and b in either direction.
func isConnected(tx *gorm.DB, a, b uuid.UUID) (bool, error) {
	var count int64
	err := tx.Model(&models.Connection{}).Where(
		"((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)) AND status = ?",
		a, b, b, a, models.ConnectionConnected,
	).Count(&count).Error
	return count > 0, err
}
