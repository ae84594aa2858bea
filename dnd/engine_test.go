package dnd

import (
	"context"
	"errors"
	"reflect"
	"testing"

	log "github.com/sirupsen/logrus"

	"board-dnd/domain"
)

type fakeCommitter struct {
	orders []domain.FinalOrder
	moves  []domain.MoveItem
	err    error
}

func (f *fakeCommitter) CommitOrder(_ context.Context, op domain.FinalOrder) error {
	if f.err != nil {
		return f.err
	}
	f.orders = append(f.orders, op)
	return nil
}

func (f *fakeCommitter) CommitMove(_ context.Context, op domain.MoveItem) error {
	if f.err != nil {
		return f.err
	}
	f.moves = append(f.moves, op)
	return nil
}

func newTestEngine(b *Board, c Committer) *Engine {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return NewEngine(b, c, logger)
}

func fourItemEngine(c Committer) *Engine {
	return newTestEngine(reorderBoard(), c)
}

func TestEngineReorderGesture(t *testing.T) {
	commits := &fakeCommitter{}
	e := fourItemEngine(commits)

	payload, err := e.BeginDrag("T4")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if payload.Text == "" && len(payload.Data) == 0 {
		t.Fatal("expected transferable payload")
	}

	order, changed := e.HoverEnter("T2")
	if !changed {
		t.Fatal("expected optimistic reorder")
	}
	want := []string{"T1", "T4", "T2", "T3"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("expected %v, got %v", want, order)
	}

	res := e.Drop(context.Background(), "A", payload.Data)
	if !res.Accepted {
		t.Fatalf("drop rejected: %+v", res)
	}
	if !reflect.DeepEqual(res.Order, want) {
		t.Fatalf("committed order %v", res.Order)
	}
	if len(commits.orders) != 1 || !reflect.DeepEqual(commits.orders[0].OrderedItemIDs, want) {
		t.Fatalf("expected exactly one order commit, got %+v", commits.orders)
	}
	if len(commits.moves) != 0 {
		t.Fatalf("reorder gesture must not commit a move: %+v", commits.moves)
	}
	if _, ok := e.session.Current(); ok {
		t.Fatal("session not cleared after drop")
	}
}

func TestEngineTransferGesture(t *testing.T) {
	commits := &fakeCommitter{}
	e := newTestEngine(transferBoard(), commits)

	payload, err := e.BeginDrag("T1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	res := e.Drop(context.Background(), "B", payload.Data)
	if !res.Accepted {
		t.Fatalf("drop rejected: %+v", res)
	}
	if !reflect.DeepEqual(e.Board().Order("A"), []string{"T2"}) {
		t.Fatalf("origin: %v", e.Board().Order("A"))
	}
	if !reflect.DeepEqual(res.Order, []string{"T5", "T1"}) {
		t.Fatalf("destination: %v", res.Order)
	}
	wantMove := domain.MoveItem{ItemID: "T1", FromStackID: "A", ToStackID: "B"}
	if len(commits.moves) != 1 || commits.moves[0] != wantMove {
		t.Fatalf("expected exactly one move commit, got %+v", commits.moves)
	}
	if _, ok := e.session.Current(); ok {
		t.Fatal("session not cleared after drop")
	}
}

func TestEngineRejectsMalformedPayload(t *testing.T) {
	commits := &fakeCommitter{}
	e := newTestEngine(transferBoard(), commits)
	before := e.Board().Stacks()

	res := e.Drop(context.Background(), "B", []byte("definitely not an envelope"))
	if res.Accepted {
		t.Fatal("malformed payload must be rejected")
	}
	if !reflect.DeepEqual(e.Board().Stacks(), before) {
		t.Fatal("rejected drop mutated the board")
	}
	if len(commits.orders)+len(commits.moves) != 0 {
		t.Fatal("rejected drop reached the committer")
	}
}

func TestEngineCancelRevertsOptimisticOrder(t *testing.T) {
	commits := &fakeCommitter{}
	e := fourItemEngine(commits)

	if _, err := e.BeginDrag("T4"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, changed := e.HoverEnter("T2"); !changed {
		t.Fatal("expected optimistic reorder")
	}

	e.Cancel()
	if got := e.Board().Order("A"); !reflect.DeepEqual(got, []string{"T1", "T2", "T3", "T4"}) {
		t.Fatalf("cancel did not revert: %v", got)
	}
	if len(commits.orders) != 0 {
		t.Fatalf("cancel must not commit: %+v", commits.orders)
	}
	if _, ok := e.session.Current(); ok {
		t.Fatal("session not cleared after cancel")
	}
}

func TestEngineCommitFailureRevertsAndSurfaces(t *testing.T) {
	wantErr := errors.New("queue unavailable")
	commits := &fakeCommitter{err: wantErr}
	e := fourItemEngine(commits)

	payload, err := e.BeginDrag("T4")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	e.HoverEnter("T2")

	res := e.Drop(context.Background(), "A", payload.Data)
	if res.Accepted {
		t.Fatal("failed commit must not report acceptance")
	}
	if !errors.Is(res.Err, wantErr) {
		t.Fatalf("expected commit failure to surface, got %v", res.Err)
	}
	if got := e.Board().Order("A"); !reflect.DeepEqual(got, []string{"T1", "T2", "T3", "T4"}) {
		t.Fatalf("optimistic order not reverted: %v", got)
	}
}

func TestEngineStaleDraggedItemDropIsNoop(t *testing.T) {
	commits := &fakeCommitter{}
	e := fourItemEngine(commits)

	payload, err := e.BeginDrag("T4")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	// Concurrent deletion between drag-begin and release.
	e.RemoveItem("T4")

	res := e.Drop(context.Background(), "A", payload.Data)
	if res.Accepted {
		t.Fatal("stale drop must be rejected")
	}
	if len(commits.orders)+len(commits.moves) != 0 {
		t.Fatal("stale drop reached the committer")
	}
	if _, ok := e.session.Current(); ok {
		t.Fatal("session must end even on a stale drop")
	}
}

func TestEngineDuplicateDropDelivery(t *testing.T) {
	commits := &fakeCommitter{}
	e := newTestEngine(transferBoard(), commits)

	payload, err := e.BeginDrag("T1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	first := e.Drop(context.Background(), "B", payload.Data)
	if !first.Accepted {
		t.Fatalf("first delivery rejected: %+v", first)
	}
	second := e.Drop(context.Background(), "B", payload.Data)
	if !second.Accepted || !second.AlreadyApplied {
		t.Fatalf("duplicate delivery should read as already applied: %+v", second)
	}
	if len(commits.moves) != 1 {
		t.Fatalf("expected exactly one move, got %d", len(commits.moves))
	}
	if got := e.Board().Order("B"); !reflect.DeepEqual(got, []string{"T5", "T1"}) {
		t.Fatalf("duplicate delivery duplicated the item: %v", got)
	}
}

func TestEngineBeginDragReplacesInFlightGesture(t *testing.T) {
	commits := &fakeCommitter{}
	e := fourItemEngine(commits)

	if _, err := e.BeginDrag("T4"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	e.HoverEnter("T2")

	// Platform lost the terminal event; a fresh gesture starts.
	if _, err := e.BeginDrag("T3"); err != nil {
		t.Fatalf("second begin: %v", err)
	}
	if got := e.Board().Order("A"); !reflect.DeepEqual(got, []string{"T1", "T2", "T3", "T4"}) {
		t.Fatalf("previous gesture's optimistic state leaked: %v", got)
	}
	id, ok := e.session.Current()
	if !ok || id != "T3" {
		t.Fatalf("expected T3 active, got %q (%v)", id, ok)
	}
}

func TestEngineBeginDragUnknownItem(t *testing.T) {
	e := fourItemEngine(&fakeCommitter{})
	if _, err := e.BeginDrag("ghost"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if _, ok := e.session.Current(); ok {
		t.Fatal("failed begin must not open a session")
	}
}

func TestEngineHoverOutsideGestureIsNoop(t *testing.T) {
	e := fourItemEngine(&fakeCommitter{})
	if _, changed := e.HoverEnter("T2"); changed {
		t.Fatal("hover without an active drag must not reorder")
	}
}

func TestEngineHoverExitKeepsOrder(t *testing.T) {
	e := fourItemEngine(&fakeCommitter{})
	payload, _ := e.BeginDrag("T4")
	want, _ := e.HoverEnter("T2")

	e.HoverExit()
	if got := e.Board().Order("A"); !reflect.DeepEqual(got, want) {
		t.Fatalf("hover exit mutated the order: %v", got)
	}

	// The gesture can still finish normally.
	res := e.Drop(context.Background(), "A", payload.Data)
	if !res.Accepted {
		t.Fatalf("drop after hover exit rejected: %+v", res)
	}
}

func TestEngineAsyncRevertRollsBackDeliveredCommit(t *testing.T) {
	commits := &fakeCommitter{}
	e := newTestEngine(transferBoard(), commits)

	payload, _ := e.BeginDrag("T1")
	res := e.Drop(context.Background(), "B", payload.Data)
	if !res.Accepted {
		t.Fatalf("drop rejected: %+v", res)
	}

	// The async committer reports a late delivery failure.
	e.RevertOptimistic()
	if got := e.Board().Order("A"); !reflect.DeepEqual(got, []string{"T1", "T2"}) {
		t.Fatalf("origin not restored: %v", got)
	}
	if got := e.Board().Order("B"); !reflect.DeepEqual(got, []string{"T5"}) {
		t.Fatalf("destination not restored: %v", got)
	}
	it, _ := e.Board().Item("T1")
	if it.StackID != "A" {
		t.Fatalf("membership not restored: %+v", it)
	}
}

func TestEngineConfirmCommitPinsSnapshot(t *testing.T) {
	commits := &fakeCommitter{}
	e := newTestEngine(transferBoard(), commits)

	payload, _ := e.BeginDrag("T1")
	if res := e.Drop(context.Background(), "B", payload.Data); !res.Accepted {
		t.Fatalf("drop rejected: %+v", res)
	}
	e.ConfirmCommit()

	// A revert arriving after confirmation keeps the confirmed state.
	e.RevertOptimistic()
	if got := e.Board().Order("B"); !reflect.DeepEqual(got, []string{"T5", "T1"}) {
		t.Fatalf("confirmed commit was rolled back: %v", got)
	}
}

func wideTransferBoard() *Board {
	return NewBoard(
		[]domain.Stack{
			{ID: "A", OrderedItemIDs: []string{"T1", "T2", "T3"}},
			{ID: "B", OrderedItemIDs: []string{"T5"}},
		},
		[]domain.Item{
			{ID: "T1", StackID: "A"},
			{ID: "T2", StackID: "A"},
			{ID: "T3", StackID: "A"},
			{ID: "T5", StackID: "B"},
		},
	)
}

func TestEngineMalformedDropRevertsHoverPreview(t *testing.T) {
	commits := &fakeCommitter{}
	e := fourItemEngine(commits)

	if _, err := e.BeginDrag("T4"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, changed := e.HoverEnter("T2"); !changed {
		t.Fatal("expected optimistic reorder")
	}

	res := e.Drop(context.Background(), "A", []byte("not an envelope"))
	if res.Accepted {
		t.Fatal("malformed payload must be rejected")
	}
	if got := e.Board().Order("A"); !reflect.DeepEqual(got, []string{"T1", "T2", "T3", "T4"}) {
		t.Fatalf("rejected drop stranded the hover preview: %v", got)
	}
	if len(commits.orders)+len(commits.moves) != 0 {
		t.Fatal("rejected drop reached the committer")
	}
}

func TestEngineRejectedTransferRevertsHoverPreview(t *testing.T) {
	commits := &fakeCommitter{}
	e := newTestEngine(wideTransferBoard(), commits)

	payload, err := e.BeginDrag("T1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, changed := e.HoverEnter("T3"); !changed {
		t.Fatal("expected optimistic reorder")
	}

	// Release over a stack that no longer exists.
	res := e.Drop(context.Background(), "Z", payload.Data)
	if res.Accepted {
		t.Fatal("drop onto an unknown stack must be rejected")
	}
	if got := e.Board().Order("A"); !reflect.DeepEqual(got, []string{"T1", "T2", "T3"}) {
		t.Fatalf("rejected drop stranded the hover preview: %v", got)
	}
	if len(commits.moves) != 0 {
		t.Fatal("rejected drop reached the committer")
	}
}

func TestEngineRevertUndoesFailedCommitWithSecondInFlight(t *testing.T) {
	commits := &fakeCommitter{}
	e := newTestEngine(wideTransferBoard(), commits)

	p1, _ := e.BeginDrag("T1")
	if res := e.Drop(context.Background(), "B", p1.Data); !res.Accepted {
		t.Fatalf("first drop rejected: %+v", res)
	}
	p2, _ := e.BeginDrag("T2")
	if res := e.Drop(context.Background(), "B", p2.Data); !res.Accepted {
		t.Fatalf("second drop rejected: %+v", res)
	}

	// The first commit's delivery failure arrives after the second gesture
	// already committed; the failed move itself must be undone.
	e.RevertOptimistic()
	if got := e.Board().Order("A"); !reflect.DeepEqual(got, []string{"T1", "T2", "T3"}) {
		t.Fatalf("origin not restored: %v", got)
	}
	if got := e.Board().Order("B"); !reflect.DeepEqual(got, []string{"T5"}) {
		t.Fatalf("destination not restored: %v", got)
	}
	it, _ := e.Board().Item("T1")
	if it.StackID != "A" {
		t.Fatalf("failed move survived the revert: %+v", it)
	}
}

func TestEngineConfirmThenRevertUndoesOnlySecondCommit(t *testing.T) {
	commits := &fakeCommitter{}
	e := newTestEngine(wideTransferBoard(), commits)

	p1, _ := e.BeginDrag("T1")
	if res := e.Drop(context.Background(), "B", p1.Data); !res.Accepted {
		t.Fatalf("first drop rejected: %+v", res)
	}
	p2, _ := e.BeginDrag("T2")
	if res := e.Drop(context.Background(), "B", p2.Data); !res.Accepted {
		t.Fatalf("second drop rejected: %+v", res)
	}

	e.ConfirmCommit()
	e.RevertOptimistic()
	if got := e.Board().Order("A"); !reflect.DeepEqual(got, []string{"T2", "T3"}) {
		t.Fatalf("confirmed move was rolled back: %v", got)
	}
	if got := e.Board().Order("B"); !reflect.DeepEqual(got, []string{"T5", "T1"}) {
		t.Fatalf("destination after revert: %v", got)
	}
}
