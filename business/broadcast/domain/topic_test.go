package domain

import "testing"

func TestParseTopic(t *testing.T) {
	tests := []struct {
		in    string
		want  Topic
		valid bool
	}{
		{"difference.all", Topic{All: true}, true},
		{"difference.BTC/USDC", Topic{Pair: "BTC/USDC"}, true},
		{"difference.", Topic{}, false},
		{"difference", Topic{}, false},
		{"prices.all", Topic{}, false},
		{"", Topic{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTopic(tt.in)
			if ok != tt.valid || got != tt.want {
				t.Errorf("ParseTopic(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.valid)
			}
			if ok && got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestTopic_Matches(t *testing.T) {
	all := Topic{All: true}
	btc := PairTopic("BTC/USDC")

	if !all.Matches("ETH/USDC") || !btc.Matches("BTC/USDC") {
		t.Error("expected match")
	}
	if btc.Matches("ETH/USDC") || btc.Matches("btc/usdc") {
		t.Error("pair topic should match its pair exactly")
	}
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{"method":"SUBSCRIBE","params":["difference.all"]}`))
	if err != nil || req.Method != MethodSubscribe || len(req.Params) != 1 {
		t.Errorf("req = %+v err = %v", req, err)
	}

	if _, err := ParseRequest([]byte(`{"method":"SUBSCRIBE","params":[1]}`)); err == nil {
		t.Error("non-string params should fail")
	}
	if _, err := ParseRequest([]byte(`nope`)); err == nil {
		t.Error("malformed json should fail")
	}
}
