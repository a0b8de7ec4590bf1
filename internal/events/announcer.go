// Package events publishes appointment lifecycle events to Kafka so
// downstream collaborators (notifications, analytics) can react to status
// changes. Publishing is best effort within the caller's request: a
// failure is logged and never fails the mutation that triggered it.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/odontoplus/scheduling/internal/appointment"
	"github.com/odontoplus/scheduling/libs/kafkax"
)

const (
	EventCreated   = "scheduling.appointment.created.v1"
	EventUpdated   = "scheduling.appointment.updated.v1"
	EventConfirmed = "scheduling.appointment.confirmed.v1"
	EventStarted   = "scheduling.appointment.started.v1"
	EventCompleted = "scheduling.appointment.completed.v1"
	EventCancelled = "scheduling.appointment.cancelled.v1"
	EventNoShow    = "scheduling.appointment.no_show.v1"
	EventDeleted   = "scheduling.appointment.deleted.v1"
)

type Announcer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewAnnouncer returns a Kafka-backed announcer, or nil when no brokers
// are configured. A nil *Announcer is safe to use; it publishes nothing.
func NewAnnouncer(brokers string, logger *slog.Logger) *Announcer {
	list := kafkax.SplitBrokers(brokers)
	if len(list) == 0 {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(list...),
		Balancer:     &kafka.Hash{},
		WriteTimeout: 5 * time.Second,
	}
	return &Announcer{writer: writer, logger: logger}
}

type eventPayload struct {
	AppointmentID string             `json:"appointment_id"`
	PatientID     string             `json:"patient_id"`
	DentistID     string             `json:"dentist_id"`
	Date          appointment.Date   `json:"date"`
	StartTime     string             `json:"start_time"`
	EndTime       string             `json:"end_time"`
	Status        appointment.Status `json:"status"`
	Reason        string             `json:"reason,omitempty"`
	OccurredAt    string             `json:"occurred_at"`
}

// AppointmentChanged publishes one lifecycle event for the given record.
func (a *Announcer) AppointmentChanged(ctx context.Context, eventType string, appt appointment.Appointment) {
	if a == nil {
		return
	}

	payload, err := json.Marshal(eventPayload{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DentistID:     appt.DentistID,
		Date:          appt.Date,
		StartTime:     appt.StartTime.String(),
		EndTime:       appt.EndTime.String(),
		Status:        appt.Status,
		Reason:        appt.CancellationReason,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		a.logger.Error("failed to build event payload", "event_type", eventType, "err", err)
		return
	}

	msg := kafka.Message{
		Topic: eventType,
		Key:   []byte(appt.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)

	if err := a.writer.WriteMessages(ctx, msg); err != nil {
		a.logger.Error("failed to publish appointment event", "event_type", eventType, "appointment_id", appt.ID, "err", err)
	}
}

func (a *Announcer) Close() {
	if a == nil {
		return
	}
	_ = a.writer.Close()
}
