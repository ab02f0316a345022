package service

import (
	"context"
	"errors"
	"fmt"

	"stove_control/internal/models"
)

var (
	ErrInvalidVerification = errors.New("invalid verification payload")
	ErrInvalidFireStatus   = errors.New("invalid cooking fire status")
)

// SetVerification records the age classifier's verdict. Status and age are
// stored as given, with no cross-validation between them. A verified child
// raises the user alert unless it is already active.
func (m *SafetyMachine) SetVerification(ctx context.Context, status models.VerificationStatus, age models.UserAgeClass) error {
	if !status.Valid() || !age.Valid() {
		return fmt.Errorf("%w: status=%q age=%q", ErrInvalidVerification, status, age)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	ch := m.store.Update(func(s *models.SystemSnapshot) {
		s.VerificationStatus = status
		s.UserAge = age
	})
	changed := ch.Before.VerificationStatus != status || ch.Before.UserAge != age
	if changed {
		m.log.Infow("verification_updated", "status", status, "age", age)
		m.appendEvent(ctx, models.EventVerification, "Age verification updated", ch.After.SystemState, map[string]any{
			"status": string(status),
			"age":    string(age),
		})
	}

	if status != models.VerificationVerified {
		return nil
	}
	switch age {
	case models.AgeAdult:
		if changed {
			m.hw.Send(ctx, m.cfg.Channels.Status, codeAdultVerified)
		}
	case models.AgeChild:
		if changed {
			m.hw.Send(ctx, m.cfg.Channels.Status, codeChildDetected)
		}
		if m.store.Snapshot().SystemState != models.ModeSafetyAlertUser {
			m.raiseAlertLocked(ctx, AlertInvalidUser)
		}
	}
	return nil
}

// SetCookingFireStatus records the fire detector's verdict. A fire outbreak
// raises the fire alert; a report that the fire cleared tries a reset
// straight away instead of waiting for the cool-down.
func (m *SafetyMachine) SetCookingFireStatus(ctx context.Context, status models.CookingFireStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFireStatus, status)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	ch := m.store.Update(func(s *models.SystemSnapshot) {
		s.CookingFireStatus = status
	})
	prev := ch.Before.CookingFireStatus
	if prev != status {
		m.log.Infow("cooking_fire_status_updated", "from", prev, "to", status)
		m.appendEvent(ctx, models.EventFireStatus, "Cooking fire status updated", ch.After.SystemState, map[string]any{
			"from": string(prev),
			"to":   string(status),
		})
	}

	switch {
	case status == models.FireStatusFireOutbreak:
		if ch.After.SystemState != models.ModeSafetyAlertFire {
			m.raiseAlertLocked(ctx, AlertFireDetected)
		}
	case prev == models.FireStatusFireOutbreak:
		m.log.Infow("fire_cleared_attempting_reset")
		m.checkSafetyResetLocked(ctx)
	}
	return nil
}

// SetFoodDetected stores the food classifier's label. It is advisory only
// and is broadcast only while something is cooking.
func (m *SafetyMachine) SetFoodDetected(ctx context.Context, food string) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.store.Snapshot()
	apply := func(s *models.SystemSnapshot) { s.FoodBeingPrepared = food }
	if snap.SystemState.IsCooking() || snap.CookingFireStatus == models.FireStatusCookingSafe {
		m.store.Update(apply)
		return
	}
	m.store.UpdateSilently(apply)
}
