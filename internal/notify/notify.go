// Package notify delivers best-effort notifications through a River job
// queue. Delivery failures are logged and retried by the queue; they are
// never surfaced to the operation that triggered them.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/offerhub/backend/internal/models"
)

// Notification kinds.
const (
	KindOfferPlaced = "offer_placed"
	KindBulk        = "bulk"
)

// Message is one queued notification.
type Message struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Recipient   string    `json:"recipient"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Kind        string    `json:"kind"`
}

// DeliverJobArgs is the River job payload for one notification.
type DeliverJobArgs struct {
	Message
}

func (DeliverJobArgs) Kind() string { return "notification_deliver" }

// Dispatcher is the external delivery collaborator (email, push, ...).
type Dispatcher interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogDispatcher writes notifications to the log. Stand-in for the real
// delivery collaborator in development.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d *LogDispatcher) Send(_ context.Context, recipient, subject, body string) error {
	d.Logger.Info("notification delivered", "recipient", recipient, "subject", subject, "body_len", len(body))
	return nil
}

// DeliverWorker hands queued notifications to the dispatcher.
type DeliverWorker struct {
	river.WorkerDefaults[DeliverJobArgs]
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewDeliverWorker(d Dispatcher, logger *slog.Logger) *DeliverWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliverWorker{dispatcher: d, logger: logger}
}

func (w *DeliverWorker) Work(ctx context.Context, job *river.Job[DeliverJobArgs]) error {
	m := job.Args.Message
	if err := w.dispatcher.Send(ctx, m.Recipient, m.Subject, m.Body); err != nil {
		w.logger.Warn("notification delivery failed", "kind", m.Kind, "recipient_id", m.RecipientID, "error", err)
		return err
	}
	return nil
}

// Enqueuer inserts notification jobs through the River client.
type Enqueuer struct {
	client *river.Client[pgx.Tx]
}

func NewEnqueuer(client *river.Client[pgx.Tx]) *Enqueuer {
	return &Enqueuer{client: client}
}

// OfferPlaced enqueues the request-owner notification after the placement
// transaction has committed.
func (e *Enqueuer) OfferPlaced(ctx context.Context, offer *models.Offer, req *models.Request) error {
	_, err := e.client.Insert(ctx, DeliverJobArgs{Message: Message{
		RecipientID: req.ID,
		Recipient:   req.ContactEmail,
		Subject:     "You have a new offer",
		Body:        fmt.Sprintf("A provider sent an offer of %.2f on your %s request.", offer.Price, req.Category),
		Kind:        KindOfferPlaced,
	}}, nil)
	return err
}

// EnqueueManyTx queues notification jobs inside the caller's transaction,
// so bulk notifications commit or roll back with the batch.
func (e *Enqueuer) EnqueueManyTx(ctx context.Context, tx pgx.Tx, msgs []Message) error {
	params := make([]river.InsertManyParams, len(msgs))
	for i, m := range msgs {
		params[i] = river.InsertManyParams{Args: DeliverJobArgs{Message: m}}
	}
	_, err := e.client.InsertManyTx(ctx, tx, params)
	return err
}
