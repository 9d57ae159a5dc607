package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/diogo/llamigo/internal/models"
)

func TestExchanges(t *testing.T) {
	user := func(s string) models.Message {
		return models.Message{Role: models.RoleUser, Content: s, Status: models.StatusComplete}
	}
	reply := func(s string, st models.Status) models.Message {
		return models.Message{Role: models.RoleAssistant, Content: s, Status: st}
	}

	tests := []struct {
		name string
		msgs []models.Message
		want []Exchange
	}{
		{"empty", nil, nil},
		{"one pair", []models.Message{user("hi"), reply("hello", models.StatusComplete)}, []Exchange{{"hi", "hello"}}},
		{"failed reply skipped", []models.Message{
			user("a"), reply("engine crashed", models.StatusFailed),
			user("b"), reply("ok", models.StatusComplete),
		}, []Exchange{{"b", "ok"}}},
		{"interrupted reply skipped", []models.Message{user("a"), reply("par", models.StatusInterrupted)}, nil},
		{"leading notice", []models.Message{
			reply("model loaded", models.StatusComplete),
			user("q"), reply("r", models.StatusComplete),
		}, []Exchange{{"q", "r"}}},
		{"dangling user", []models.Message{user("q"), reply("r", models.StatusComplete), user("more")}, []Exchange{{"q", "r"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Exchanges(tt.msgs)
			if len(got) != len(tt.want) {
				t.Fatalf("Exchanges() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("exchange %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMock_Prime(t *testing.T) {
	m := &Mock{}
	m.Prime([]Exchange{{Prompt: "a", Reply: "b"}})
	if got := m.Primed(); len(got) != 1 || got[0].Reply != "b" {
		t.Errorf("Primed() = %v", got)
	}
}

func TestWithPriming(t *testing.T) {
	exchanges := []Exchange{{Prompt: "q", Reply: "r"}}

	m := &Mock{LoadErr: errors.New("no such file")}
	e := WithPriming(m, exchanges)
	if err := e.Load(context.Background(), "x.gguf"); err == nil {
		t.Fatal("expected load error")
	}
	if len(m.Primed()) != 0 {
		t.Error("failed Load must not prime")
	}

	m.LoadErr = nil
	if err := e.Load(context.Background(), "x.gguf"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := m.Primed(); len(got) != 1 || got[0] != exchanges[0] {
		t.Errorf("Primed() = %v", got)
	}

	if WithPriming(m, nil) != Engine(m) {
		t.Error("no exchanges should return the engine unchanged")
	}
}
