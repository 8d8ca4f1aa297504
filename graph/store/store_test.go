package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

type docState struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
}

// storeContract exercises the Store behavior shared by every backend.
func storeContract(t *testing.T, st Store[docState]) {
	t.Helper()
	ctx := context.Background()

	t.Run("load latest of unknown run", func(t *testing.T) {
		_, _, err := st.LoadLatest(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("save steps and load latest", func(t *testing.T) {
		first := docState{Question: "q", Answer: "draft"}
		second := docState{Question: "q", Answer: "final", Sources: []string{"a.md"}}

		if err := st.SaveStep(ctx, "run-1", 1, "generate", first); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}
		if err := st.SaveStep(ctx, "run-1", 2, "synthesize", second); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}

		state, step, err := st.LoadLatest(ctx, "run-1")
		if err != nil {
			t.Fatalf("LoadLatest: %v", err)
		}
		if step != 2 {
			t.Errorf("step = %d, want 2", step)
		}
		if state.Answer != "final" || len(state.Sources) != 1 {
			t.Errorf("state = %+v", state)
		}
	})

	t.Run("same step overwrites", func(t *testing.T) {
		if err := st.SaveStep(ctx, "run-2", 1, "a", docState{Answer: "v1"}); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}
		if err := st.SaveStep(ctx, "run-2", 1, "a", docState{Answer: "v2"}); err != nil {
			t.Fatalf("SaveStep overwrite: %v", err)
		}
		state, _, err := st.LoadLatest(ctx, "run-2")
		if err != nil {
			t.Fatalf("LoadLatest: %v", err)
		}
		if state.Answer != "v2" {
			t.Errorf("Answer = %q, want v2", state.Answer)
		}
	})

	t.Run("checkpoint round trip", func(t *testing.T) {
		saved := docState{Question: "q", Answer: "checkpointed"}
		if err := st.SaveCheckpoint(ctx, "cp-1", saved, 7); err != nil {
			t.Fatalf("SaveCheckpoint: %v", err)
		}
		state, step, err := st.LoadCheckpoint(ctx, "cp-1")
		if err != nil {
			t.Fatalf("LoadCheckpoint: %v", err)
		}
		if step != 7 || state.Answer != "checkpointed" {
			t.Errorf("got step=%d state=%+v", step, state)
		}
	})

	t.Run("load unknown checkpoint", func(t *testing.T) {
		_, _, err := st.LoadCheckpoint(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestMemStore(t *testing.T) {
	storeContract(t, NewMemStore[docState]())
}

func TestMemStoreStepHistory(t *testing.T) {
	st := NewMemStore[docState]()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := st.SaveStep(ctx, "run-h", i, "node", docState{}); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}
	}

	history := st.StepHistory("run-h")
	if len(history) != 3 {
		t.Fatalf("history = %d, want 3", len(history))
	}
	if history[2].Step != 3 {
		t.Errorf("last step = %d, want 3", history[2].Step)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	st, err := NewSQLiteStore[docState](path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()

	storeContract(t, st)
}

func TestSQLiteStoreClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	st, err := NewSQLiteStore[docState](path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := st.SaveStep(context.Background(), "run", 1, "node", docState{}); err == nil {
		t.Fatal("SaveStep on closed store should fail")
	}
}
