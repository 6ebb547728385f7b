package message

import (
	"encoding/json"
	"testing"
)

// TestCreateEncodeParseRoundTrip verifies that every message-creation helper
// produces a frame that Parse reconstructs faithfully.
func TestCreateEncodeParseRoundTrip(t *testing.T) {
	type payload struct {
		Value int `json:"value"`
	}

	t.Run("request", func(t *testing.T) {
		msg, err := CreateRequest("greet", payload{Value: 42})
		if err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
		raw, err := Encode(msg)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, ok := Parse(raw)
		if !ok {
			t.Fatalf("Parse returned ok=false for a well-formed request")
		}
		if got.Kind != KindRequest || got.ID != msg.ID || got.Method != "greet" {
			t.Fatalf("round-trip mismatch: got %+v", got)
		}
		var p payload
		if err := json.Unmarshal(got.Data, &p); err != nil || p.Value != 42 {
			t.Fatalf("data mismatch: %+v, err=%v", p, err)
		}
	})

	t.Run("notification", func(t *testing.T) {
		msg, err := CreateNotification("tick", nil)
		if err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
		raw, err := Encode(msg)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, ok := Parse(raw)
		if !ok || got.Kind != KindNotification || got.Method != "tick" {
			t.Fatalf("round-trip mismatch: got %+v, ok=%v", got, ok)
		}
	})

	t.Run("success response", func(t *testing.T) {
		req, _ := CreateRequest("ping", nil)
		resp, err := CreateSuccessResponse(req, payload{Value: 7})
		if err != nil {
			t.Fatalf("CreateSuccessResponse: %v", err)
		}
		raw, err := Encode(resp)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, ok := Parse(raw)
		if !ok || got.Kind != KindResponse || !got.OK || got.ID != req.ID {
			t.Fatalf("round-trip mismatch: got %+v, ok=%v", got, ok)
		}
	})

	t.Run("error response", func(t *testing.T) {
		req, _ := CreateRequest("ping", nil)
		resp := CreateErrorResponse(req, 404, "not found")
		raw, err := Encode(resp)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, ok := Parse(raw)
		if !ok || got.Kind != KindResponse || got.OK || got.ErrorCode != 404 || got.ErrorReason != "not found" {
			t.Fatalf("round-trip mismatch: got %+v, ok=%v", got, ok)
		}
	})
}

// TestReservedFrameRejection verifies that payloads colliding with the
// literal ping/pong liveness frames are refused at every entry point.
func TestReservedFrameRejection(t *testing.T) {
	if _, err := CreateRequest("m", "ping"); err == nil {
		t.Fatalf("CreateRequest accepted a payload that encodes to \"ping\"")
	}
	if _, err := CreateNotification("m", "pong"); err == nil {
		t.Fatalf("CreateNotification accepted a payload that encodes to \"pong\"")
	}

	req, _ := CreateRequest("m", nil)
	if _, err := CreateSuccessResponse(req, "ping"); err == nil {
		t.Fatalf("CreateSuccessResponse accepted a payload that encodes to \"ping\"")
	}

	if _, ok := Parse([]byte("ping")); ok {
		t.Fatalf("Parse accepted the literal ping frame as a message")
	}
	if _, ok := Parse([]byte("pong")); ok {
		t.Fatalf("Parse accepted the literal pong frame as a message")
	}
}

// TestParseRejectsMalformed covers the classification edge cases that must
// be dropped rather than surfaced as an error (spec §7.5).
func TestParseRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"invalid json", `{not json`},
		{"no tag set", `{"id":1}`},
		{"two tags set", `{"request":true,"notification":true,"id":1}`},
		{"error response missing reason", `{"response":true,"ok":false,"id":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := Parse([]byte(tc.text)); ok {
				t.Fatalf("Parse accepted malformed frame: %s", tc.text)
			}
		})
	}
}

// TestRequestIDsAreDistinct guards against a request-id generator that
// degenerates to a constant, which would break pending-table correlation.
func TestRequestIDsAreDistinct(t *testing.T) {
	seen := make(map[uint32]bool)
	for i := 0; i < 64; i++ {
		msg, err := CreateRequest("m", nil)
		if err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
		if seen[msg.ID] {
			t.Fatalf("duplicate request id %d after %d draws", msg.ID, i)
		}
		seen[msg.ID] = true
	}
}
