package num

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFloatJSON(t *testing.T) {
	cases := []struct {
		in   Float
		wire string
	}{
		{Float(2.5), `2.5`},
		{Float(math.Inf(1)), `"+Inf"`},
		{Float(math.Inf(-1)), `"-Inf"`},
		{Float(math.NaN()), `"NaN"`},
	}
	for _, tc := range cases {
		data, err := json.Marshal(tc.in)
		if err != nil {
			t.Fatalf("marshal %v: %v", tc.in, err)
		}
		if string(data) != tc.wire {
			t.Fatalf("marshal %v: got %s want %s", tc.in, data, tc.wire)
		}
		var back Float
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != tc.in && !(math.IsNaN(float64(back)) && math.IsNaN(float64(tc.in))) {
			t.Fatalf("round trip %s: got %v want %v", data, back, tc.in)
		}
	}
}

func TestFloatRejectsBadStrings(t *testing.T) {
	var f Float
	if err := json.Unmarshal([]byte(`"lots"`), &f); err == nil {
		t.Fatal("expected error for a non numeric string")
	}
	if err := json.Unmarshal([]byte(`true`), &f); err == nil {
		t.Fatal("expected error for a bool")
	}
}
