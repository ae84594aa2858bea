package api

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"board-dnd/domain"
)

type unavailableDeduper struct{}

func (unavailableDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	return false, errors.New("redis down")
}

func (unavailableDeduper) Remove(ctx context.Context, userID, key string) error {
	return errors.New("redis down")
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return l
}

func newTestCommitter(store Storage, deduper Deduper) *queueCommitter {
	return &queueCommitter{
		userID:  "user",
		store:   store,
		deduper: deduper,
		logger:  quietLogger(),
	}
}

func TestCommitOrderDeliversCommand(t *testing.T) {
	store := &mockStore{}
	qc := newTestCommitter(store, newMockDeduper())

	op := domain.FinalOrder{StackID: "A", OrderedItemIDs: []string{"T1", "T4", "T2", "T3"}}
	if err := qc.CommitOrder(context.Background(), op); err != nil {
		t.Fatalf("CommitOrder: %v", err)
	}

	cmds := store.Commands()
	if len(cmds) != 1 {
		t.Fatalf("expected one command, got %d", len(cmds))
	}
	cmd := cmds[0]
	if cmd.Type != domain.CommandStackReordered || cmd.EntityType != "stack" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if cmd.ID == "" || cmd.ID != cmd.IdempotencyKey {
		t.Fatalf("command id must equal its idempotency key, got %q / %q", cmd.ID, cmd.IdempotencyKey)
	}
	var got domain.FinalOrder
	if err := sonic.Unmarshal(cmd.Data, &got); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !reflect.DeepEqual(got, op) {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestCommitMoveDeliversCommand(t *testing.T) {
	store := &mockStore{}
	qc := newTestCommitter(store, newMockDeduper())

	op := domain.MoveItem{ItemID: "T1", FromStackID: "A", ToStackID: "B"}
	if err := qc.CommitMove(context.Background(), op); err != nil {
		t.Fatalf("CommitMove: %v", err)
	}

	cmds := store.Commands()
	if len(cmds) != 1 {
		t.Fatalf("expected one command, got %d", len(cmds))
	}
	cmd := cmds[0]
	if cmd.Type != domain.CommandItemMoved || cmd.EntityType != "item" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if want := moveDedupeKey("T1", "B"); cmd.IdempotencyKey != want {
		t.Fatalf("idempotency key %q, want %q", cmd.IdempotencyKey, want)
	}
}

func TestCommitMoveSuppressesRedelivery(t *testing.T) {
	store := &mockStore{}
	deduper := newMockDeduper()
	qc := newTestCommitter(store, deduper)

	op := domain.MoveItem{ItemID: "T1", FromStackID: "A", ToStackID: "B"}
	if err := qc.CommitMove(context.Background(), op); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := qc.CommitMove(context.Background(), op); err != nil {
		t.Fatalf("redelivered commit: %v", err)
	}
	if cmds := store.Commands(); len(cmds) != 1 {
		t.Fatalf("redelivery reached the queue: %d commands", len(cmds))
	}
}

func TestCommitMoveRollsBackDedupeOnFailure(t *testing.T) {
	store := &mockStore{enqueueErr: errors.New("queue down")}
	deduper := newMockDeduper()
	qc := newTestCommitter(store, deduper)

	op := domain.MoveItem{ItemID: "T1", FromStackID: "A", ToStackID: "B"}
	if err := qc.CommitMove(context.Background(), op); err == nil {
		t.Fatal("expected delivery error")
	}

	// The dedupe key must be released so a retried drop can commit.
	added, err := deduper.Add(context.Background(), "user", moveDedupeKey("T1", "B"))
	if err != nil || !added {
		t.Fatalf("key not rolled back: added=%v err=%v", added, err)
	}
}

func TestCommitMoveProceedsWhenDedupeUnavailable(t *testing.T) {
	store := &mockStore{}
	qc := newTestCommitter(store, unavailableDeduper{})

	op := domain.MoveItem{ItemID: "T1", FromStackID: "A", ToStackID: "B"}
	if err := qc.CommitMove(context.Background(), op); err != nil {
		t.Fatalf("CommitMove: %v", err)
	}
	if cmds := store.Commands(); len(cmds) != 1 {
		t.Fatalf("expected one command, got %d", len(cmds))
	}
}
