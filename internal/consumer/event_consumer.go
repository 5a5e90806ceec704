package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/metrics"
	"github.com/familyos/go-pipeline-service/internal/service"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
	"github.com/familyos/go-pipeline-service/internal/shared/rabbitmq"
)

const (
	eventsExchange   = "familyos.events"
	pipelineQueue    = "pipeline_jobs"
	eventsRoutingKey = "#"
)

// EventConsumer turns application events from RabbitMQ into queued
// notification jobs. It only produces into the job store; the dispatcher
// drains it on its own schedule, so the work-queue decoupling holds.
type EventConsumer struct {
	client *rabbitmq.RabbitMQClient
	jobs   service.JobStore
	log    *logger.Logger
}

// NewEventConsumer creates a new event consumer
func NewEventConsumer(client *rabbitmq.RabbitMQClient, jobs service.JobStore, log *logger.Logger) *EventConsumer {
	return &EventConsumer{
		client: client,
		jobs:   jobs,
		log:    log,
	}
}

// Start declares the topology and consumes until the channel closes
func (c *EventConsumer) Start() error {
	c.log.Info("Starting event consumer", "queue", pipelineQueue)

	if err := c.client.DeclareExchange(eventsExchange, "topic"); err != nil {
		return err
	}
	if err := c.client.DeclareQueue(pipelineQueue); err != nil {
		return err
	}
	if err := c.client.BindQueue(pipelineQueue, eventsRoutingKey, eventsExchange); err != nil {
		return err
	}

	messages, err := c.client.Consume(pipelineQueue)
	if err != nil {
		return err
	}

	for msg := range messages {
		var event domain.AppEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			c.log.Error("Failed to unmarshal app event", "error", err, "routing_key", msg.RoutingKey)
			msg.Nack(false, false) // malformed, don't requeue
			continue
		}

		if err := c.processEvent(context.Background(), &event); err != nil {
			c.log.Error("Failed to process app event", "error", err, "type", event.Type)
			msg.Nack(false, true)
			continue
		}

		msg.Ack(false)
	}

	return nil
}

func (c *EventConsumer) processEvent(ctx context.Context, event *domain.AppEvent) error {
	job, err := jobForEvent(event)
	if err != nil {
		c.log.Warn("Ignoring app event", "type", event.Type, "reason", err)
		return nil
	}

	if _, err := c.jobs.Enqueue(ctx, job); err != nil {
		return err
	}
	metrics.JobsEnqueued.WithLabelValues("consumer").Inc()
	return nil
}

// jobForEvent maps a recognized app event to a notification job. The
// dedupe key keeps redelivered messages from double-notifying.
func jobForEvent(event *domain.AppEvent) (*domain.NotificationJob, error) {
	if event.FamilyID == "" {
		return nil, fmt.Errorf("missing family_id")
	}

	switch event.Type {
	case domain.AppEventCalendarCreated:
		if event.EventID == "" {
			return nil, fmt.Errorf("missing event_id")
		}
		return &domain.NotificationJob{
			FamilyID: event.FamilyID,
			Channel:  domain.JobChannelPush,
			Audience: domain.AudienceFamily,
			Title:    "New event",
			Body:     event.Title,
			Data: domain.Payload{
				Kind:    domain.PayloadKindEvent,
				EventID: event.EventID,
			},
			DedupeKey: "event:" + event.EventID + ":created",
		}, nil

	case domain.AppEventTaskAssigned:
		if event.TaskID == "" || event.MemberID == "" {
			return nil, fmt.Errorf("missing task_id or member_id")
		}
		return &domain.NotificationJob{
			FamilyID: event.FamilyID,
			MemberID: event.MemberID,
			Channel:  domain.JobChannelPush,
			Audience: domain.AudienceMember,
			Title:    "Task assigned to you",
			Body:     event.Title,
			Data: domain.Payload{
				Kind:   domain.PayloadKindTask,
				TaskID: event.TaskID,
			},
			DedupeKey: "task:" + event.TaskID + ":assigned:" + event.MemberID,
		}, nil

	default:
		return nil, fmt.Errorf("unhandled event type %q", event.Type)
	}
}
