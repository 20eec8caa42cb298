/*
package dbnotify carries change notifications from the database to caches in
this process, so that a write made by another server (or by the placerank
tool) doesn't leave a stale rating behind.

The schema installs a trigger that sends a JSON NotificationEvent on the
<table>_changes channel whenever a row changes.
*/
package dbnotify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
)

const (
	sleepOnErrorTime = 5 * time.Second
)

type NotificationEvent struct {
	Table   string
	OnID    int64
	Version int64
}

// Consumer handles the events for one table.
type Consumer interface {
	TableName() string
	Consume(ctx context.Context, event *NotificationEvent)
}

type DBNotifyListener struct {
	db                  *sql.DB
	tableNameToConsumer map[string]Consumer
}

func NewDBNotifyListener(db *sql.DB, consumers ...Consumer) (*DBNotifyListener, error) {
	m := make(map[string]Consumer)
	for _, c := range consumers {
		tableName := c.TableName()
		if _, exists := m[tableName]; exists {
			return nil, fmt.Errorf("duplicate consumer for table %s", tableName)
		}
		m[tableName] = c
	}

	return &DBNotifyListener{db: db, tableNameToConsumer: m}, nil
}

func channelName(table string) string {
	return fmt.Sprintf("%s_changes", table)
}

// Listen holds one connection and delivers notifications until ctx is done
// or the connection fails.
func (cl *DBNotifyListener) Listen(ctx context.Context) error {
	conn, err := cl.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	var pgxConn *stdlib.Conn
	err = conn.Raw(func(driverConn any) error {
		var ok bool
		if pgxConn, ok = driverConn.(*stdlib.Conn); !ok {
			return fmt.Errorf("driver connection is %T, not pgx", driverConn)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to get pgx connection: %w", err)
	}

	for table := range cl.tableNameToConsumer {
		channel := channelName(table)
		if _, err := pgxConn.Conn().Exec(ctx, fmt.Sprintf("LISTEN %s", channel)); err != nil {
			return fmt.Errorf("failed to listen on channel %s: %w", channel, err)
		}
	}

	for {
		notification, err := pgxConn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("error waiting for notification: %w", err)
		}
		cl.deliver(ctx, notification.Payload)
	}
}

// ListenForever restarts Listen after errors until ctx is done.
func (cl *DBNotifyListener) ListenForever(ctx context.Context) {
	for {
		err := cl.Listen(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("db notification listener stopped, restarting: %v", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleepOnErrorTime):
		}
	}
}

func (cl *DBNotifyListener) deliver(ctx context.Context, payload string) {
	event := &NotificationEvent{}
	if err := json.Unmarshal([]byte(payload), event); err != nil {
		log.Printf("can't unmarshal notification payload '%s': %v", payload, err)
		return
	}
	consumer, ok := cl.tableNameToConsumer[event.Table]
	if !ok {
		log.Printf("no listener for table %s", event.Table)
		return
	}
	consumer.Consume(ctx, event)
}
