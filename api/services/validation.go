package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"pingpoint/db"
	"pingpoint/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestTTL is how long a validation request can be answered.
const RequestTTL = 7 * 24 * time.Hour

// MaxSpecificItemLen bounds specificItem to the width of its column.
const MaxSpecificItemLen = 255

// ValidationService runs the peer endorsement workflow:
// pending -> approved | declined, or pending -> expired once ExpiresAt passes.
// Expiry is applied lazily when a request is answered; nothing sweeps old rows.
type ValidationService struct {
	env Env
}

func NewValidationService(env Env) *ValidationService {
	return &ValidationService{env: env.withDefaults()}
}

type RequestValidationInput struct {
	FromUserID   string `json:"fromUserId"`
	ToUserID     string `json:"toUserId"`
	Category     string `json:"category"`
	SpecificItem string `json:"specificItem"`
}

type ValidatablePeer struct {
	UserID          uuid.UUID            `json:"userId"`
	DisplayName     string               `json:"displayName"`
	ProfileItems    []models.ProfileItem `json:"profileItems"`
	ConnectionState string               `json:"connectionState"`
	ValidationCount int64                `json:"validationCount"`
}

type PendingRequest struct {
	ID                   uuid.UUID                 `json:"id"`
	FromUserID           uuid.UUID                 `json:"fromUserId"`
	Category             models.ValidationCategory `json:"category"`
	SpecificItem         string                    `json:"specificItem"`
	CreatedAt            time.Time                 `json:"createdAt"`
	ExpiresAt            time.Time                 `json:"expiresAt"`
	RequesterDisplayName string                    `json:"requesterDisplayName"`
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int64  `json:"count"`
}

type Summary struct {
	UserID            uuid.UUID              `json:"userId"`
	TotalValidations  int64                  `json:"totalValidations"`
	CategoryBreakdown map[string]int64       `json:"categoryBreakdown"`
	ItemBreakdown     map[string][]ItemCount `json:"itemBreakdown"`
}

// Transition describes a status change applied by RespondToValidation.
type Transition struct {
	Request models.ValidationRequest
	From    models.ValidationStatus
	To      models.ValidationStatus
}

type ValidationEvent struct {
	RequestID    uuid.UUID                 `json:"requestId"`
	FromUserID   uuid.UUID                 `json:"fromUserId"`
	ToUserID     uuid.UUID                 `json:"toUserId"`
	Category     models.ValidationCategory `json:"category"`
	SpecificItem string                    `json:"specificItem"`
	Status       models.ValidationStatus   `json:"status"`
	At           time.Time                 `json:"at"`
}

func eventOf(req models.ValidationRequest, at time.Time) ValidationEvent {
	return ValidationEvent{
		RequestID:    req.ID,
		FromUserID:   req.FromUserID,
		ToUserID:     req.ToUserID,
		Category:     req.Category,
		SpecificItem: req.SpecificItem,
		Status:       req.Status,
		At:           at,
	}
}

// ListValidatable returns the connected peers of userID with their items and
// how many endorsements each already holds.
func (s *ValidationService) ListValidatable(ctx context.Context, rawUserID string) ([]ValidatablePeer, error) {
	userID, err := requireID("userId", rawUserID)
	if err != nil {
		return nil, err
	}

	orm := s.env.read(ctx)
	if err := requireUser(orm, userID); err != nil {
		return nil, s.env.fail("list validatable", err)
	}
	peerIDs, err := connectedPeers(orm, userID)
	if err != nil {
		return nil, s.env.fail("list validatable", err)
	}
	if len(peerIDs) == 0 {
		return []ValidatablePeer{}, nil
	}

	var users []models.User
	if err := orm.Where("id IN ?", peerIDs).Order("created_at").Find(&users).Error; err != nil {
		return nil, s.env.fail("list validatable", err)
	}

	var items []models.ProfileItem
	if err := orm.Where("user_id IN ? AND item_type <> ?", peerIDs, models.ItemTypeProfileImage).
		Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, s.env.fail("list validatable", err)
	}
	itemsByUser := make(map[uuid.UUID][]models.ProfileItem, len(peerIDs))
	for _, item := range items {
		itemsByUser[item.UserID] = append(itemsByUser[item.UserID], item)
	}

	var counts []struct {
		ValidatedUserID uuid.UUID
		Total           int64
	}
	if err := orm.Model(&models.ValidationRecord{}).
		Select("validated_user_id, COUNT(*) AS total").
		Where("validated_user_id IN ?", peerIDs).
		Group("validated_user_id").
		Scan(&counts).Error; err != nil {
		return nil, s.env.fail("list validatable", err)
	}
	countByUser := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		countByUser[c.ValidatedUserID] = c.Total
	}

	peers := make([]ValidatablePeer, 0, len(users))
	for _, u := range users {
		peerItems := itemsByUser[u.ID]
		if peerItems == nil {
			peerItems = []models.ProfileItem{}
		}
		peers = append(peers, ValidatablePeer{
			UserID:          u.ID,
			DisplayName:     u.DisplayName(),
			ProfileItems:    peerItems,
			ConnectionState: string(models.ConnectionConnected),
			ValidationCount: countByUser[u.ID],
		})
	}
	return peers, nil
}

// RequestValidation asks toUser's item to be vouched for by fromUser. Checks run
// in order and the first failure is returned; nothing is written on failure.
func (s *ValidationService) RequestValidation(ctx context.Context, in RequestValidationInput) (*models.ValidationRequest, error) {
	item := strings.TrimSpace(in.SpecificItem)
	if item == "" {
		return nil, ErrMissingField.With("specificItem is required")
	}
	if utf8.RuneCountInString(item) > MaxSpecificItemLen {
		return nil, ErrInvalidRequest.With("specificItem must be at most %d characters", MaxSpecificItemLen)
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, ErrMissingField.With("category is required")
	}
	from, okFrom := ParseID(in.FromUserID)
	to, okTo := ParseID(in.ToUserID)
	if !okFrom || !okTo {
		return nil, ErrInvalidRequest.With("fromUserId and toUserId must be UUIDs")
	}
	if from == to {
		return nil, ErrInvalidRequest.With("users cannot validate themselves")
	}

	now := s.env.now()
	req := models.ValidationRequest{
		FromUserID:   from,
		ToUserID:     to,
		SpecificItem: item,
		Status:       models.ValidationPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(RequestTTL),
	}
	err := s.env.write(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, from); err != nil {
			return err
		}
		if err := requireUser(tx, to); err != nil {
			return err
		}

		category := models.ValidationCategory(strings.ToLower(strings.TrimSpace(in.Category)))
		if !category.Valid() {
			return ErrInvalidCategory.With("got %q", in.Category)
		}
		req.Category = category

		connected, err := isConnected(tx, from, to)
		if err != nil {
			return err
		}
		if !connected {
			return ErrNotConnected
		}

		found, err := hasMatchingItem(tx, to, category.ItemType(), item)
		if err != nil {
			return err
		}
		if !found {
			return ErrItemNotFound.With("no %s matching %q", category.ItemType(), item)
		}

		var pending int64
		err = tx.Model(&models.ValidationRequest{}).
			Where("from_user_id = ? AND to_user_id = ? AND category = ? AND specific_item = ? AND status = ?",
				from, to, category, item, models.ValidationPending).
			Count(&pending).Error
		if err != nil {
			return err
		}
		if pending > 0 {
			return ErrDuplicateRequest
		}

		var recorded int64
		err = tx.Model(&models.ValidationRecord{}).
			Where("validator_user_id = ? AND validated_user_id = ? AND category = ? AND specific_item = ?",
				from, to, category, item).
			Count(&recorded).Error
		if err != nil {
			return err
		}
		if recorded > 0 {
			return ErrAlreadyValidated
		}

		if err := tx.Create(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateRequest.With("a request for this item was already answered")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.env.fail("request validation", err)
	}

	s.env.publish(ctx, EventValidationRequested, eventOf(req, now))
	return &req, nil
}

// hasMatchingItem does a case-insensitive substring match of needle against
// the values held in the user's items of itemType. Keys are not searched.
func hasMatchingItem(tx *gorm.DB, userID uuid.UUID, itemType, needle string) (bool, error) {
	match, args := db.JSONValueLike(db.Dialect(tx), "profile_items.item_data",
		"%"+escapeLike(strings.ToLower(needle))+"%")
	var count int64
	err := tx.Model(&models.ProfileItem{}).
		Where("user_id = ? AND item_type = ?", userID, itemType).
		Where(match, args...).
		Count(&count).Error
	return count > 0, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// RespondToValidation answers a pending request. Answering an expired request
// marks it expired and fails with ErrRequestExpired.
func (s *ValidationService) RespondToValidation(ctx context.Context, rawRequestID, response string) (*Transition, error) {
	requestID, err := requireID("requestId", rawRequestID)
	if err != nil {
		return nil, err
	}
	target := models.ValidationStatus(strings.ToLower(strings.TrimSpace(response)))
	switch target {
	case models.ValidationApproved, models.ValidationDeclined:
	default:
		return nil, ErrInvalidResponse.With("got %q", response)
	}

	now := s.env.now()
	var (
		req     models.ValidationRequest
		expired bool
	)
	err = s.env.write(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", requestID).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound.With("request %s does not exist", requestID)
			}
			return err
		}
		if req.Status != models.ValidationPending {
			return ErrRequestNotPending.With("request is already %s", req.Status)
		}

		next := target
		if now.After(req.ExpiresAt) {
			next = models.ValidationExpired
			expired = true
		}

		result := tx.Model(&models.ValidationRequest{}).
			Where("id = ? AND status = ?", req.ID, models.ValidationPending).
			Updates(map[string]any{"status": next, "responded_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRequestNotPending
		}
		req.Status = next
		req.RespondedAt = &now

		if next != models.ValidationApproved {
			return nil
		}
		record := models.ValidationRecord{
			ValidatedUserID: req.ToUserID,
			ValidatorUserID: req.FromUserID,
			Category:        req.Category,
			SpecificItem:    req.SpecificItem,
			RequestID:       &req.ID,
			CreatedAt:       now,
		}
		if err := tx.Create(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyValidated
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.env.fail("respond to validation", err)
	}

	transition := &Transition{Request: req, From: models.ValidationPending, To: req.Status}
	switch req.Status {
	case models.ValidationApproved:
		s.env.publish(ctx, EventValidationApproved, eventOf(req, now))
	case models.ValidationDeclined:
		s.env.publish(ctx, EventValidationDeclined, eventOf(req, now))
	case models.ValidationExpired:
		s.env.publish(ctx, EventValidationExpired, eventOf(req, now))
	case models.ValidationPending:
	}
	if expired {
		return transition, ErrRequestExpired.With("request expired at %s", req.ExpiresAt.Format(time.RFC3339))
	}
	return transition, nil
}

// ListPending returns unexpired pending requests addressed to userID, newest first.
func (s *ValidationService) ListPending(ctx context.Context, rawUserID string) ([]PendingRequest, error) {
	userID, err := requireID("userId", rawUserID)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID           uuid.UUID
		FromUserID   uuid.UUID
		Category     string
		SpecificItem string
		CreatedAt    time.Time
		ExpiresAt    time.Time
		Name         *string
		Email        string
	}
	err = s.env.read(ctx).Raw(`
		SELECT r.id, r.from_user_id, r.category, r.specific_item, r.created_at, r.expires_at, u.name, u.email
		FROM validation_requests r
		JOIN users u ON u.id = r.from_user_id
		WHERE r.to_user_id = ? AND r.status = ? AND r.expires_at > ?
		ORDER BY r.created_at DESC`,
		userID, models.ValidationPending, s.env.now(),
	).Scan(&rows).Error
	if err != nil {
		return nil, s.env.fail("list pending", err)
	}

	pending := make([]PendingRequest, 0, len(rows))
	for _, r := range rows {
		pending = append(pending, PendingRequest{
			ID:                   r.ID,
			FromUserID:           r.FromUserID,
			Category:             models.ValidationCategory(r.Category),
			SpecificItem:         r.SpecificItem,
			CreatedAt:            r.CreatedAt,
			ExpiresAt:            r.ExpiresAt,
			RequesterDisplayName: displayName(r.Name, r.Email),
		})
	}
	return pending, nil
}

// Summarize aggregates the endorsements held by userID. Every category is
// present in both breakdowns, and items are ordered by count descending.
func (s *ValidationService) Summarize(ctx context.Context, rawUserID string) (*Summary, error) {
	userID, err := requireID("userId", rawUserID)
	if err != nil {
		return nil, err
	}

	orm := s.env.read(ctx)
	if err := requireUser(orm, userID); err != nil {
		return nil, s.env.fail("summarize", err)
	}

	var rows []struct {
		Category     string
		SpecificItem string
		Total        int64
	}
	err = orm.Model(&models.ValidationRecord{}).
		Select("category, specific_item, COUNT(*) AS total").
		Where("validated_user_id = ?", userID).
		Group("category, specific_item").
		Scan(&rows).Error
	if err != nil {
		return nil, s.env.fail("summarize", err)
	}

	summary := &Summary{
		UserID:            userID,
		CategoryBreakdown: make(map[string]int64, len(models.ValidationCategories)),
		ItemBreakdown:     make(map[string][]ItemCount, len(models.ValidationCategories)),
	}
	for _, c := range models.ValidationCategories {
		summary.CategoryBreakdown[string(c)] = 0
		summary.ItemBreakdown[string(c)] = []ItemCount{}
	}
	for _, r := range rows {
		summary.TotalValidations += r.Total
		summary.CategoryBreakdown[r.Category] += r.Total
		summary.ItemBreakdown[r.Category] = append(summary.ItemBreakdown[r.Category], ItemCount{Item: r.SpecificItem, Count: r.Total})
	}
	for _, items := range summary.ItemBreakdown {
		sort.Slice(items, func(i, j int) bool {
			if items[i].Count != items[j].Count {
				return items[i].Count > items[j].Count
			}
			return items[i].Item < items[j].Item
		})
	}
	return summary, nil
}
