package db

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// DefaultNotifyChannel carries IDs of freshly persisted feedback rows to
// the admin live stream.
const DefaultNotifyChannel = "feedback_saved"

// Notifier wraps Postgres LISTEN/NOTIFY for the feedback channel. The
// sending side piggybacks on the shared sql.DB; listening uses its own
// connection via pq.Listener.
type Notifier struct {
	DB      *sql.DB
	DSN     string
	Channel string
	Logger  *zap.Logger
}

// NewNotifier constructs a Notifier. The DSN is needed because
// pq.Listener manages its own connection.
func NewNotifier(db *sql.DB, dsn, channel string, logger *zap.Logger) *Notifier {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	return &Notifier{DB: db, DSN: dsn, Channel: channel, Logger: logger}
}

// FeedbackSaved broadcasts a feedback row ID on the channel.
func (n *Notifier) FeedbackSaved(ctx context.Context, id int64) error {
	_, err := n.DB.ExecContext(ctx,
		`SELECT pg_notify($1, $2)`, n.Channel, strconv.FormatInt(id, 10))
	return err
}

// Listen yields feedback row IDs as they arrive on the channel until ctx
// is done. The returned channel is closed on shutdown.
func (n *Notifier) Listen(ctx context.Context) (<-chan int64, error) {
	listener := pq.NewListener(n.DSN, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			n.Logger.Warn("listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := listener.Listen(n.Channel); err != nil {
		_ = listener.Close()
		return nil, err
	}

	ch := make(chan int64)
	go func() {
		defer func() {
			_ = listener.Close()
			close(ch)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case note, ok := <-listener.Notify:
				if !ok {
					return
				}
				// nil notifications signal a reconnect.
				if note == nil {
					continue
				}
				id, err := strconv.ParseInt(note.Extra, 10, 64)
				if err != nil {
					n.Logger.Warn("ignoring malformed notification", zap.String("payload", note.Extra))
					continue
				}
				select {
				case ch <- id:
				case <-ctx.Done():
					return
				}
			case <-time.After(90 * time.Second):
				// Periodic ping keeps the connection from silently dying.
				if err := listener.Ping(); err != nil {
					n.Logger.Warn("listener ping failed", zap.Error(err))
				}
			}
		}
	}()
	return ch, nil
}
