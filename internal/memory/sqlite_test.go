package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestStore(t *testing.T, maxTurns int) *SQLiteStore {
	t.Helper()
	store, err := Open(":memory:", maxTurns, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGetMetadata(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	id, err := store.Create(ctx, "teacher-1", "My class", "chat")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id == "" {
		t.Fatal("Create() returned empty id")
	}

	meta, err := store.GetMetadata(ctx, id, "teacher-1")
	if err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if meta.Title != "My class" {
		t.Errorf("Title = %q, want %q", meta.Title, "My class")
	}
	if meta.TurnCount != 0 {
		t.Errorf("TurnCount = %d, want 0", meta.TurnCount)
	}

	// Scoped to the wrong owner, the conversation must not resolve.
	if _, err := store.GetMetadata(ctx, id, "someone-else"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("GetMetadata(wrong user) error = %v, want ErrConversationNotFound", err)
	}
}

func TestCreateGeneratesUniqueIDs(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := store.Create(ctx, "u", "", "chat")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate conversation id %s", id)
		}
		seen[id] = true
	}
}

func TestGetMetadataNotFound(t *testing.T) {
	store := newTestStore(t, 0)

	_, err := store.GetMetadata(context.Background(), "missing", "")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("error = %v, want ErrConversationNotFound", err)
	}
}

func TestAppendTurnMaintainsOrderAndCount(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	id, err := store.Create(ctx, "u", "", "chat")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		turn := Turn{
			UserMessage:       fmt.Sprintf("question %d", i),
			AssistantResponse: fmt.Sprintf("answer %d", i),
			Metadata:          TurnMetadata{Intent: "general_chat", KnowledgeUsed: i%2 == 0},
		}
		if err := store.AppendTurn(ctx, id, turn); err != nil {
			t.Fatalf("AppendTurn(%d) error = %v", i, err)
		}
	}

	meta, err := store.GetMetadata(ctx, id, "")
	if err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if meta.TurnCount != 5 {
		t.Errorf("TurnCount = %d, want 5", meta.TurnCount)
	}

	turns, err := store.GetHistory(ctx, id, "", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("GetHistory() returned %d turns, want 5", len(turns))
	}
	for i, turn := range turns {
		want := fmt.Sprintf("question %d", i)
		if turn.UserMessage != want {
			t.Errorf("turn[%d].UserMessage = %q, want %q", i, turn.UserMessage, want)
		}
	}
	if !turns[2].Metadata.KnowledgeUsed {
		t.Error("turn[2] metadata lost knowledge_used flag")
	}
}

func TestAppendTurnUnknownConversation(t *testing.T) {
	store := newTestStore(t, 0)

	err := store.AppendTurn(context.Background(), "missing", Turn{UserMessage: "hi"})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("error = %v, want ErrConversationNotFound", err)
	}
}

func TestAppendTurnEvictsAboveCap(t *testing.T) {
	store := newTestStore(t, 3)
	ctx := context.Background()

	id, err := store.Create(ctx, "u", "", "chat")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for i := 0; i < 6; i++ {
		turn := Turn{UserMessage: fmt.Sprintf("q%d", i), AssistantResponse: "a"}
		if err := store.AppendTurn(ctx, id, turn); err != nil {
			t.Fatalf("AppendTurn(%d) error = %v", i, err)
		}
	}

	turns, err := store.GetHistory(ctx, id, "", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("GetHistory() returned %d turns, want 3 (cap)", len(turns))
	}
	// Oldest survivors are q3..q5.
	if turns[0].UserMessage != "q3" || turns[2].UserMessage != "q5" {
		t.Errorf("surviving turns = [%s..%s], want [q3..q5]", turns[0].UserMessage, turns[2].UserMessage)
	}

	meta, err := store.GetMetadata(ctx, id, "")
	if err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if meta.TurnCount != 3 {
		t.Errorf("TurnCount = %d, want 3 after eviction", meta.TurnCount)
	}
}

func TestGetHistoryReturnsMostRecentWindow(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	id, _ := store.Create(ctx, "u", "", "chat")
	for i := 0; i < 8; i++ {
		store.AppendTurn(ctx, id, Turn{UserMessage: fmt.Sprintf("q%d", i), AssistantResponse: "a"})
	}

	turns, err := store.GetHistory(ctx, id, "", 3)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("len = %d, want 3", len(turns))
	}
	// Most recent three, oldest first.
	if turns[0].UserMessage != "q5" || turns[2].UserMessage != "q7" {
		t.Errorf("window = [%s..%s], want [q5..q7]", turns[0].UserMessage, turns[2].UserMessage)
	}
}

func TestListConversations(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	first, _ := store.Create(ctx, "u", "first", "chat")
	second, _ := store.Create(ctx, "u", "second", "chat")
	store.Create(ctx, "other", "not mine", "chat")

	// Touch the first conversation so it becomes the most recently updated.
	time.Sleep(5 * time.Millisecond)
	if err := store.AppendTurn(ctx, first, Turn{UserMessage: "hi", AssistantResponse: "hello"}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	convs, err := store.ListConversations(ctx, "u", 10, "")
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("len = %d, want 2", len(convs))
	}
	if convs[0].ConversationID != first {
		t.Errorf("first listed = %s, want most recently updated %s", convs[0].ConversationID, first)
	}
	if convs[1].ConversationID != second {
		t.Errorf("second listed = %s, want %s", convs[1].ConversationID, second)
	}
}

func TestFindByDate(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	id, err := store.Create(ctx, "u", "", "chat")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")

	tests := []struct {
		name    string
		date    string
		wantErr bool
	}{
		{name: "iso format", date: today},
		{name: "slash format", date: time.Now().UTC().Format("02/01/2006")},
		{name: "no conversation that day", date: "1999-01-01", wantErr: true},
		{name: "malformed", date: "not-a-date", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FindByDate(ctx, "u", tt.date)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("FindByDate(%q) = %s, want error", tt.date, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindByDate(%q) error = %v", tt.date, err)
			}
			if got != id {
				t.Errorf("FindByDate(%q) = %s, want %s", tt.date, got, id)
			}
		})
	}
}

func TestDeleteRemovesTurns(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	id, _ := store.Create(ctx, "u", "", "chat")
	store.AppendTurn(ctx, id, Turn{UserMessage: "q", AssistantResponse: "a"})

	if err := store.Delete(ctx, id, "u"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.GetMetadata(ctx, id, ""); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("GetMetadata() after delete error = %v, want ErrConversationNotFound", err)
	}
	if err := store.Delete(ctx, id, "u"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("second Delete() error = %v, want ErrConversationNotFound", err)
	}
}

func TestUpdateTitle(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	id, _ := store.Create(ctx, "u", "old", "chat")
	if err := store.UpdateTitle(ctx, id, "u", "new"); err != nil {
		t.Fatalf("UpdateTitle() error = %v", err)
	}

	meta, _ := store.GetMetadata(ctx, id, "")
	if meta.Title != "new" {
		t.Errorf("Title = %q, want %q", meta.Title, "new")
	}

	if err := store.UpdateTitle(ctx, "missing", "u", "x"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("UpdateTitle(missing) error = %v, want ErrConversationNotFound", err)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2026-08-30", want: "2026-08-30"},
		{in: "30/08/2026", want: "2026-08-30"},
		{in: "5/8/2026", want: "2026-08-05"},
		{in: "30/08", wantErr: true},
		{in: "garbage", wantErr: true},
	}

	for _, tt := range tests {
		got, err := normalizeDate(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("normalizeDate(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("normalizeDate(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
