// Copyright 2022 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package stor

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Event data model, one scheduled race configuration.
// No gorm.Model here: deletion is a hard delete, so an identifier never comes back.
type Event struct {
	EventID        string    `json:"eventId" gorm:"primaryKey;type:varchar(64)"`
	EventName      string    `json:"eventName" gorm:"type:varchar(1024);not null"`
	FleetID        string    `json:"fleetId,omitempty" gorm:"type:varchar(64)"`
	CreatedAt      time.Time `json:"createdAt" gorm:"index"`
	RaceTimeInSec  int       `json:"raceTimeInSec"`
	NumberOfResets int       `json:"numberOfResets"`
}

// TableName fixes the table name whatever the gorm naming strategy.
func (Event) TableName() string {
	return "events"
}

// Put creates or replaces an event, the last writer wins.
func (s eventStore) Put(ctx context.Context, e *Event) error {
	return s.db.WithContext(ctx).Save(e).Error
}

// Update replaces the mutable fields of an existing event, created_at is left untouched.
// It returns ErrNotFound if the event is absent, so it never recreates a deleted identifier.
func (s eventStore) Update(ctx context.Context, e *Event) error {
	res := s.db.WithContext(ctx).Model(&Event{}).Where("event_id = ?", e.EventID).Updates(map[string]interface{}{
		"event_name":       e.EventName,
		"fleet_id":         e.FleetID,
		"race_time_in_sec": e.RaceTimeInSec,
		"number_of_resets": e.NumberOfResets,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s eventStore) Get(ctx context.Context, eventID string) (*Event, error) {
	var event Event
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

// Delete removes an event and returns its last known state.
func (s eventStore) Delete(ctx context.Context, eventID string) (*Event, error) {
	var event Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", eventID).First(&event).Error; err != nil {
			return err
		}
		return tx.Delete(&event).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

// Scan returns every event. The order is stable but is not part of the contract.
func (s eventStore) Scan(ctx context.Context) ([]Event, error) {
	events := []Event{}
	return events, s.db.WithContext(ctx).Order("created_at ASC, event_id ASC").Find(&events).Error
}

func (s eventStore) List(ctx context.Context, pageNum, pageSize int) ([]Event, error) {
	events := []Event{}
	// pageNum starts at 1
	// result sorted to assure the same order for each request
	return events, s.db.WithContext(ctx).Offset((pageNum - 1) * pageSize).Limit(pageSize).Order("created_at ASC, event_id ASC").Find(&events).Error
}

func (s eventStore) Count(ctx context.Context) (int64, error) {
	var count int64
	return count, s.db.WithContext(ctx).Model(&Event{}).Count(&count).Error
}
