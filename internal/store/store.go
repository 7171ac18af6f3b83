package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dorm-assignment-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// Assignment snapshot and batch apply.
	ListWaiting(ctx context.Context) ([]model.Person, error)
	ListRoomLadder(ctx context.Context) ([]RoomSlot, error)
	ApplyAssignments(ctx context.Context, passID string, at time.Time, placements []Placement) error

	// People.
	CreatePerson(ctx context.Context, p NewPerson) (model.Person, error)
	GetPerson(ctx context.Context, id int64) (model.Person, error)
	ListPeople(ctx context.Context, filter PersonFilter) ([]model.Person, error)
	DeletePerson(ctx context.Context, id int64) error
	DeleteAllPeople(ctx context.Context) (int64, error)
	ReleasePerson(ctx context.Context, id int64) (model.Person, error)

	// Dorms, rooms and audit.
	ListDormSummaries(ctx context.Context) ([]DormSummary, error)
	ListRooms(ctx context.Context, dormID int64) ([]RoomSlot, error)
	ListAssignments(ctx context.Context, passID string, limit int) ([]model.Assignment, error)

	// Push subscriptions.
	PutSubscription(ctx context.Context, sub model.PushSubscription, personIDs []int64) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscribedPeople(ctx context.Context, endpoint string) ([]int64, error)
	SubscriptionsForPerson(ctx context.Context, personID int64) ([]model.PushSubscription, error)

	Ping(ctx context.Context) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// Ping checks that the database answers.
func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return unavailable("get sql.DB", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// ListWaiting returns waiting people, furthest first. Ties keep arrival order (ID ascending).
func (s *gormStore) ListWaiting(ctx context.Context) ([]model.Person, error) {
	var people []model.Person
	err := s.db.WithContext(ctx).
		Where("state = ?", model.StateWaiting).
		Order("distance DESC").
		Order("id ASC").
		Find(&people).Error
	if err != nil {
		return nil, unavailable("list waiting people", err)
	}
	return people, nil
}

// ListRoomLadder returns every room in ladder order (dorm creation order, then room
// number) together with the count of people currently assigned to it.
func (s *gormStore) ListRoomLadder(ctx context.Context) ([]RoomSlot, error) {
	slots, err := ladderQuery(s.db.WithContext(ctx))
	if err != nil {
		return nil, unavailable("list room ladder", err)
	}
	return slots, nil
}

func ladderQuery(tx *gorm.DB) ([]RoomSlot, error) {
	var slots []RoomSlot
	err := tx.Table("rooms").
		Select("rooms.id AS room_id, rooms.dorm_id AS dorm_id, dorms.name AS dorm_name, " +
			"rooms.number AS number, rooms.capacity AS capacity, COUNT(people.id) AS occupied").
		Joins("JOIN dorms ON dorms.id = rooms.dorm_id").
		Joins("LEFT JOIN people ON people.room_id = rooms.id AND people.state = ?", model.StateAssigned).
		Group("rooms.id, rooms.dorm_id, dorms.name, rooms.number, rooms.capacity, dorms.created_at, dorms.id").
		Order("dorms.created_at ASC, dorms.id ASC, rooms.number ASC").
		Scan(&slots).Error
	return slots, err
}

// ApplyAssignments persists a planned batch in a single transaction. Every person
// must still be waiting and no touched room may end up over capacity; otherwise the
// whole batch is rolled back with ErrStaleSnapshot.
func (s *gormStore) ApplyAssignments(ctx context.Context, passID string, at time.Time, placements []Placement) error {
	if len(placements) == 0 {
		return nil
	}

	roomIDs := make([]int64, 0, len(placements))
	for _, p := range placements {
		roomIDs = append(roomIDs, p.RoomID)
	}
	slices.Sort(roomIDs)
	roomIDs = slices.Compact(roomIDs)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Concurrent passes filling the same room must queue behind each other,
		// otherwise each capacity check only sees its own writes. SQLite
		// serialises writers and has no row locks.
		if tx.Dialector.Name() != "sqlite" {
			var locked []model.Room
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id IN ?", roomIDs).
				Order("id").
				Find(&locked).Error; err != nil {
				return fmt.Errorf("failed to lock rooms: %w", err)
			}
		}

		audit := make([]model.Assignment, 0, len(placements))
		for _, p := range placements {
			res := tx.Model(&model.Person{}).
				Where("id = ? AND state = ?", p.PersonID, model.StateWaiting).
				Updates(map[string]any{
					"state":       model.StateAssigned,
					"room_id":     p.RoomID,
					"assigned_at": at,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to assign person %d to room %d: %w", p.PersonID, p.RoomID, res.Error)
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("person %d is no longer waiting: %w", p.PersonID, ErrStaleSnapshot)
			}

			audit = append(audit, model.Assignment{PassID: passID, PersonID: p.PersonID, RoomID: p.RoomID, AssignedAt: at})
		}

		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to write assignment audit: %w", err)
		}

		var overfull []struct {
			RoomID   int64
			Capacity int
			Occupied int
		}
		if err := tx.Table("rooms").
			Select("rooms.id AS room_id, rooms.capacity AS capacity, COUNT(people.id) AS occupied").
			Joins("LEFT JOIN people ON people.room_id = rooms.id AND people.state = ?", model.StateAssigned).
			Where("rooms.id IN ?", roomIDs).
			Group("rooms.id, rooms.capacity").
			Having("COUNT(people.id) > rooms.capacity").
			Scan(&overfull).Error; err != nil {
			return fmt.Errorf("failed to verify room capacity: %w", err)
		}
		if len(overfull) > 0 {
			return fmt.Errorf("room %d would hold %d of %d: %w",
				overfull[0].RoomID, overfull[0].Occupied, overfull[0].Capacity, ErrStaleSnapshot)
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleSnapshot):
		return err
	default:
		return unavailable("apply assignments", err)
	}
}

// CreatePerson registers a new waiting person.
func (s *gormStore) CreatePerson(ctx context.Context, in NewPerson) (model.Person, error) {
	person := model.Person{
		PersonalID: in.PersonalID,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Gender:     in.Gender,
		LivesAt:    in.LivesAt,
		Distance:   in.Distance,
		State:      model.StateWaiting,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Person{}).Where("personal_id = ?", in.PersonalID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("personal id %s: %w", in.PersonalID, ErrDuplicate)
		}
		return tx.Create(&person).Error
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return model.Person{}, err
		}
		return model.Person{}, unavailable("create person", err)
	}
	return person, nil
}

// GetPerson fetches a person by primary key.
func (s *gormStore) GetPerson(ctx context.Context, id int64) (model.Person, error) {
	var person model.Person
	if err := s.db.WithContext(ctx).First(&person, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Person{}, fmt.Errorf("person %d: %w", id, ErrNotFound)
		}
		return model.Person{}, unavailable("get person", err)
	}
	return person, nil
}

// ListPeople returns people in arrival order.
func (s *gormStore) ListPeople(ctx context.Context, filter PersonFilter) ([]model.Person, error) {
	q := s.db.WithContext(ctx).Order("id ASC")
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	var people []model.Person
	if err := q.Find(&people).Error; err != nil {
		return nil, unavailable("list people", err)
	}
	return people, nil
}

// DeletePerson removes a person and their subscription links.
func (s *gormStore) DeletePerson(ctx context.Context, id int64) error {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM subscription_person_mapping WHERE person_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Person{}, id)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return unavailable("delete person", err)
	}
	if affected == 0 {
		return fmt.Errorf("person %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteAllPeople removes every person and returns how many were deleted.
func (s *gormStore) DeleteAllPeople(ctx context.Context) (int64, error) {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM subscription_person_mapping").Error; err != nil {
			return err
		}
		res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Person{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, unavailable("delete all people", err)
	}
	return affected, nil
}

// ReleasePerson moves an assigned person back to waiting and frees their bed.
func (s *gormStore) ReleasePerson(ctx context.Context, id int64) (model.Person, error) {
	res := s.db.WithContext(ctx).Model(&model.Person{}).
		Where("id = ? AND state = ?", id, model.StateAssigned).
		Updates(map[string]any{
			"state":       model.StateWaiting,
			"room_id":     nil,
			"assigned_at": nil,
		})
	if res.Error != nil {
		return model.Person{}, unavailable("release person", res.Error)
	}

	person, err := s.GetPerson(ctx, id)
	if err != nil {
		return model.Person{}, err
	}
	if res.RowsAffected == 0 {
		return person, fmt.Errorf("person %d: %w", id, ErrNotAssigned)
	}
	return person, nil
}

// ListDormSummaries aggregates capacity and occupancy per dorm, in dorm creation order.
func (s *gormStore) ListDormSummaries(ctx context.Context) ([]DormSummary, error) {
	var dorms []model.Dorm
	if err := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&dorms).Error; err != nil {
		return nil, unavailable("list dorms", err)
	}

	ladder, err := s.ListRoomLadder(ctx)
	if err != nil {
		return nil, err
	}

	aggMap := make(map[int64]*DormSummary, len(dorms))
	summaries := make([]DormSummary, len(dorms))
	for i, d := range dorms {
		summaries[i] = DormSummary{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt}
		aggMap[d.ID] = &summaries[i]
	}
	for _, slot := range ladder {
		agg, ok := aggMap[slot.DormID]
		if !ok {
			continue
		}
		agg.Rooms++
		agg.Capacity += slot.Capacity
		agg.Occupied += slot.Occupied
		agg.Remaining += slot.Remaining()
	}
	return summaries, nil
}

// ListRooms returns the ladder slots of one dorm.
func (s *gormStore) ListRooms(ctx context.Context, dormID int64) ([]RoomSlot, error) {
	var dorm model.Dorm
	if err := s.db.WithContext(ctx).First(&dorm, dormID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("dorm %d: %w", dormID, ErrNotFound)
		}
		return nil, unavailable("get dorm", err)
	}

	slots, err := ladderQuery(s.db.WithContext(ctx).Where("rooms.dorm_id = ?", dormID))
	if err != nil {
		return nil, unavailable("list rooms", err)
	}
	return slots, nil
}

// ListAssignments returns audit rows, newest first. An empty passID lists all passes.
func (s *gormStore) ListAssignments(ctx context.Context, passID string, limit int) ([]model.Assignment, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if passID != "" {
		q = q.Where("pass_id = ?", passID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.Assignment
	if err := q.Find(&rows).Error; err != nil {
		return nil, unavailable("list assignments", err)
	}
	return rows, nil
}

// PutSubscription creates or replaces a subscription and the people it follows.
func (s *gormStore) PutSubscription(ctx context.Context, sub model.PushSubscription, personIDs []int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&sub).Error; err != nil {
			return err
		}

		people := make([]model.Person, 0, len(personIDs))
		if len(personIDs) > 0 {
			if err := tx.Find(&people, personIDs).Error; err != nil {
				return err
			}
		}
		return tx.Model(&sub).Association("People").Replace(&people)
	})
	if err != nil {
		return unavailable("put subscription", err)
	}
	return nil
}

// DeleteSubscription removes a subscription and its links.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := model.PushSubscription{Endpoint: endpoint}
		if err := tx.Model(&sub).Association("People").Clear(); err != nil {
			return err
		}
		return tx.Delete(&sub).Error
	})
	if err != nil {
		return unavailable("delete subscription", err)
	}
	return nil
}

// SubscribedPeople lists the person IDs a subscription follows.
func (s *gormStore) SubscribedPeople(ctx context.Context, endpoint string) ([]int64, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Preload("People").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscription: %w", ErrNotFound)
		}
		return nil, unavailable("get subscription", err)
	}

	ids := make([]int64, len(sub.People))
	for i, p := range sub.People {
		ids[i] = p.ID
	}
	return ids, nil
}

// SubscriptionsForPerson lists the subscriptions following a person.
func (s *gormStore) SubscriptionsForPerson(ctx context.Context, personID int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_person_mapping spm ON spm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("spm.person_id = ?", personID).
		Find(&subs).Error
	if err != nil {
		return nil, unavailable("list subscriptions for person", err)
	}
	return subs, nil
}
