package convert

import (
	"errors"
	"testing"

	"github.com/koopa0/assistant/internal/thread"
)

func threeTurnThread() []thread.Message {
	return []thread.Message{
		thread.UserMessage("first question"),
		thread.AssistantMessage("first answer"),
		thread.UserMessage("follow-up"),
	}
}

func TestMergeConsecutiveCollapsesSameRole(t *testing.T) {
	messages := []thread.Message{
		thread.UserMessage("part one"),
		thread.UserMessage("part two"),
		thread.AssistantMessage("answer"),
		thread.UserMessage("next"),
	}

	groups := mergeConsecutive(messages)
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}
	wantRoles := []string{thread.RoleUser, thread.RoleAssistant, thread.RoleUser}
	for i, want := range wantRoles {
		if groups[i].role != want {
			t.Errorf("group %d role = %q, want %q", i, groups[i].role, want)
		}
	}
	if got := joinText(groups[0].blocks); got != "part one\n\npart two" {
		t.Errorf("merged text = %q", got)
	}
}

func TestMergeConsecutiveDoesNotMutateInput(t *testing.T) {
	messages := []thread.Message{
		thread.UserMessage("a"),
		thread.UserMessage("b"),
	}
	before := len(messages[0].Blocks)
	mergeConsecutive(messages)
	if len(messages[0].Blocks) != before {
		t.Error("input messages mutated by merge")
	}
}

func TestUnsupportedContentErrorMessage(t *testing.T) {
	err := unsupported("openai_chat", thread.BlockFile)
	var uce *UnsupportedContentError
	if !errors.As(err, &uce) {
		t.Fatal("error is not UnsupportedContentError")
	}
	if uce.Vendor != "openai_chat" || uce.Block != thread.BlockFile {
		t.Errorf("got %+v", uce)
	}
}
