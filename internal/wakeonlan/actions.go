package wakeonlan

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/wolgate/pkg/models"
	"github.com/HerbHall/wolgate/pkg/plugin"
)

// Action sources recorded on every invocation.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
	SourceCLI  = "cli"
	SourceBus  = "bus"
)

const maxActionRecords = 256

// actionLog keeps the most recent action records in memory.
type actionLog struct {
	mu      sync.Mutex
	records []models.ActionRecord
}

func (l *actionLog) put(rec models.ActionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.records {
		if l.records[i].ID == rec.ID {
			l.records[i] = rec
			return
		}
	}
	l.records = append(l.records, rec)
	if len(l.records) > maxActionRecords {
		l.records = l.records[len(l.records)-maxActionRecords:]
	}
}

// forDevice returns up to limit records for deviceID, newest first.
func (l *actionLog) forDevice(deviceID string, limit int) []models.ActionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []models.ActionRecord{}
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		if l.records[i].DeviceID == deviceID {
			out = append(out, l.records[i])
		}
	}
	return out
}

// Invoke runs the named action on a device and records the outcome. The
// returned record is final: completed on success, error otherwise.
// Wake requests beyond the per-device rate fail with ErrRateLimited before
// any packet is sent.
func (m *Module) Invoke(ctx context.Context, deviceID, name, source string) (models.ActionRecord, error) {
	if _, ok := m.adapter.Device(deviceID); !ok {
		return models.ActionRecord{}, ErrDeviceNotFound
	}
	if name == ActionWake && !m.limiter.Allow(deviceID) {
		m.metrics.wakes.WithLabelValues("limited").Inc()
		return models.ActionRecord{}, ErrRateLimited
	}

	rec := models.ActionRecord{
		ID:          uuid.New().String(),
		DeviceID:    deviceID,
		Name:        name,
		Source:      source,
		Status:      models.ActionPending,
		RequestedAt: m.now().UTC(),
	}
	m.actions.put(rec)
	if m.store != nil {
		if err := m.store.InsertAction(ctx, &rec); err != nil {
			m.logger.Warn("failed to record action", zap.String("action_id", rec.ID), zap.Error(err))
		}
	}

	err := m.adapter.InvokeAction(ctx, deviceID, name)

	done := m.now().UTC()
	rec.CompletedAt = &done
	rec.Status = models.ActionCompleted
	if err != nil {
		rec.Status = models.ActionError
		rec.Error = err.Error()
	}
	m.actions.put(rec)
	if m.store != nil {
		if uerr := m.store.UpdateAction(ctx, &rec); uerr != nil {
			m.logger.Warn("failed to update action", zap.String("action_id", rec.ID), zap.Error(uerr))
		}
	}

	if name == ActionWake && !errors.Is(err, ErrDeviceNotFound) {
		m.metrics.wakes.WithLabelValues(boolResult(err == nil, "sent", "failed")).Inc()
	}

	topic := TopicActionCompleted
	if err != nil {
		topic = TopicActionFailed
		m.logger.Warn("action failed",
			zap.String("device_id", deviceID),
			zap.String("action", name),
			zap.String("source", source),
			zap.Error(err),
		)
	} else {
		m.logger.Info("action completed",
			zap.String("device_id", deviceID),
			zap.String("action", name),
			zap.String("source", source),
		)
	}
	m.publish(ctx, topic, &ActionEvent{Action: rec})
	return rec, err
}

// Actions returns recent action records for a device, newest first. The
// store is used when available.
func (m *Module) Actions(ctx context.Context, deviceID string, limit int) ([]models.ActionRecord, error) {
	if m.store == nil {
		return m.actions.forDevice(deviceID, limit), nil
	}
	recs, err := m.store.ListActions(ctx, deviceID, limit)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []models.ActionRecord{}
	}
	return recs, nil
}

func (m *Module) publish(ctx context.Context, topic string, payload any) {
	if m.bus == nil {
		return
	}
	err := m.bus.Publish(context.WithoutCancel(ctx), plugin.Event{
		Topic:     topic,
		Source:    pluginName,
		Timestamp: m.now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		m.logger.Warn("failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}
