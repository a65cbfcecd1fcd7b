// Package audit records order lifecycle events off the request path. Events are delivered to a
// single actor that writes them to a Sink one at a time; write failures are logged and dropped.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/articleshop/pkg/repository"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Sink persists audit entries. *repository.MongoRepository satisfies it.
type Sink interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
}

// event is the actor message.
type event struct {
	action   string
	entityID string
	data     map[string]interface{}
	at       time.Time
}

type auditActor struct {
	service string
	sink    Sink
	logger  *zap.Logger
}

func (a *auditActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *event:
		wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		err := a.sink.CreateAuditLog(wctx, &repository.AuditLog{
			Service:   a.service,
			Action:    msg.action,
			EntityID:  msg.entityID,
			Data:      msg.data,
			CreatedAt: msg.at,
		})
		if err != nil {
			a.logger.Error("Failed to write audit log",
				zap.String("action", msg.action),
				zap.String("entity_id", msg.entityID),
				zap.Error(err))
		}

	case *actor.Started:
		a.logger.Info("Audit actor started")

	case *actor.Stopped:
		a.logger.Info("Audit actor stopped")
	}
}

type Recorder struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

func NewRecorder(service string, sink Sink, logger *zap.Logger) (*Recorder, error) {
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return &auditActor{service: service, sink: sink, logger: logger}
	})
	pid, err := system.Root.SpawnNamed(props, "audit-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn audit actor: %w", err)
	}
	return &Recorder{system: system, pid: pid, logger: logger}, nil
}

// Record queues an event and returns immediately.
func (r *Recorder) Record(action, entityID string, data map[string]interface{}) {
	r.system.Root.Send(r.pid, &event{
		action:   action,
		entityID: entityID,
		data:     data,
		at:       time.Now().UTC(),
	})
}

// Close drains queued events and stops the actor.
func (r *Recorder) Close() error {
	return r.system.Root.PoisonFuture(r.pid).Wait()
}

// LogSink writes audit entries to the logger, for store drivers without an audit collection.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) CreateAuditLog(_ context.Context, log *repository.AuditLog) error {
	s.Logger.Info("audit",
		zap.String("service", log.Service),
		zap.String("action", log.Action),
		zap.String("entity_id", log.EntityID),
		zap.Any("data", log.Data),
		zap.Time("at", log.CreatedAt))
	return nil
}
