package game

import (
	"encoding/json"
	"testing"
)

func TestStepJSON(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want string
	}{
		{
			name: "get card is a bare string",
			step: Step{Type: GetCard},
			want: `"GetCard"`,
		},
		{
			name: "get comb is a bare string",
			step: Step{Type: GetComb},
			want: `"GetComb"`,
		},
		{
			name: "give comb carries cards",
			step: Step{Type: GiveComb, Cards: parseCards(t, "A♠ A♥")},
			want: `{"GiveComb":[["A","♠"],["A","♥"]]}`,
		},
		{
			name: "trans comb carries cards",
			step: Step{Type: TransComb, Cards: parseCards(t, "10♦")},
			want: `{"TransComb":[["10","♦"]]}`,
		},
		{
			name: "empty card list stays a list",
			step: Step{Type: GiveComb},
			want: `{"GiveComb":[]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.step)
			if err != nil {
				t.Fatalf("Marshal error = %v", err)
			}
			if string(data) != tt.want {
				t.Fatalf("Marshal = %s, want %s", data, tt.want)
			}
			var back Step
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal error = %v", err)
			}
			if back.Type != tt.step.Type || len(back.Cards) != len(tt.step.Cards) {
				t.Fatalf("round trip = %+v, want %+v", back, tt.step)
			}
		})
	}
}

func TestStepUnmarshalRejectsGarbage(t *testing.T) {
	for _, data := range []string{
		`"MakeTea"`,
		`{"GiveComb":[["A","♠"]],"TransComb":[]}`,
		`{"Jump":[]}`,
		`{"GiveComb":"not cards"}`,
		`42`,
	} {
		var s Step
		if err := json.Unmarshal([]byte(data), &s); err == nil {
			t.Errorf("Unmarshal(%s): expected error", data)
		}
	}
}
