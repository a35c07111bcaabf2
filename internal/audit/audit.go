// Package audit writes the append-only history of ledger mutations.
//
// Entries are never updated or removed once appended. Each entry carries a
// before and after Snapshot of the affected record; snapshots are versioned
// key/value maps so they stay diffable when the record shape changes.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of mutation an entry records.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// SnapshotVersion is the encoding version written into every snapshot.
const SnapshotVersion = 1

// DefaultActor is recorded when the context carries no caller identity.
const DefaultActor = "system"

var (
	ErrSnapshotMismatch = errors.New("snapshots do not match action")
	ErrUnknownVersion   = errors.New("unknown snapshot version")
)

// Snapshot is a flat, string-valued copy of a record at one point in time.
type Snapshot struct {
	Version int               `json:"v"`
	Fields  map[string]string `json:"fields"`
}

// NewSnapshot builds a snapshot of the current version.
func NewSnapshot(fields map[string]string) Snapshot {
	return Snapshot{Version: SnapshotVersion, Fields: fields}
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Fields) == 0
}

// Encode returns the JSON form of the snapshot, or nil for an empty one.
func (s Snapshot) Encode() ([]byte, error) {
	if s.IsEmpty() {
		return nil, nil
	}

	if s.Version == 0 {
		s.Version = SnapshotVersion
	}

	return json.Marshal(s)
}

// Decode parses a snapshot previously produced by Encode.
func Decode(data []byte) (Snapshot, error) {
	if len(data) == 0 {
		return Snapshot{}, nil
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}

	if s.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnknownVersion, s.Version)
	}

	return s, nil
}

// Diff returns the sorted keys whose values differ between two snapshots.
func Diff(before, after Snapshot) []string {
	var changed []string

	for k, v := range after.Fields {
		if old, ok := before.Fields[k]; !ok || old != v {
			changed = append(changed, k)
		}
	}

	for k := range before.Fields {
		if _, ok := after.Fields[k]; !ok {
			changed = append(changed, k)
		}
	}

	slices.Sort(changed)

	return changed
}

// Entry is one immutable audit record.
type Entry struct {
	ID        uuid.UUID
	TableName string
	RecordID  string
	Action    Action
	Before    Snapshot
	After     Snapshot
	Actor     string
	CreatedAt time.Time
}

// Appender persists entries. Implementations append inside whatever
// storage transaction they are bound to.
type Appender interface {
	AppendAudit(ctx context.Context, e Entry) error
}

// Writer builds entries and hands them to an Appender.
type Writer struct {
	appender Appender
	now      func() time.Time
}

func NewWriter(appender Appender) *Writer {
	return &Writer{appender: appender, now: time.Now}
}

// Record appends one entry for a mutation of table/recordID.
func (w *Writer) Record(ctx context.Context, table, recordID string, action Action, before, after Snapshot) error {
	if err := checkSnapshots(action, before, after); err != nil {
		return err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating audit id: %w", err)
	}

	entry := Entry{
		ID:        id,
		TableName: table,
		RecordID:  recordID,
		Action:    action,
		Before:    before,
		After:     after,
		Actor:     ActorFrom(ctx),
		CreatedAt: w.now().UTC(),
	}

	if err := w.appender.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}

	return nil
}

func checkSnapshots(action Action, before, after Snapshot) error {
	switch action {
	case ActionInsert:
		if !before.IsEmpty() || after.IsEmpty() {
			return fmt.Errorf("%w: %s needs only an after snapshot", ErrSnapshotMismatch, action)
		}
	case ActionUpdate:
		if before.IsEmpty() || after.IsEmpty() {
			return fmt.Errorf("%w: %s needs both snapshots", ErrSnapshotMismatch, action)
		}
	case ActionDelete:
		if before.IsEmpty() || !after.IsEmpty() {
			return fmt.Errorf("%w: %s needs only a before snapshot", ErrSnapshotMismatch, action)
		}
	default:
		return fmt.Errorf("unknown audit action %q", action)
	}

	return nil
}

type actorKey struct{}

// WithActor attaches the identity of the caller to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the caller identity stored in ctx, or DefaultActor.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}

	return DefaultActor
}
