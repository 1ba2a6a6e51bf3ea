package voice

import (
	"encoding/json"
	"testing"
)

func TestOutboundNCCOShape(t *testing.T) {
	ncco := OutboundNCCO("+14155551234", "+15550001111", "https://dialer.example.com/webhooks/voice/event")

	b, err := json.Marshal(ncco)
	if err != nil {
		t.Fatalf("marshaling ncco: %v", err)
	}
	var actions []map[string]any
	if err := json.Unmarshal(b, &actions); err != nil {
		t.Fatalf("ncco is not a JSON array: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}

	record := actions[0]
	if record["action"] != "record" {
		t.Fatalf("first action = %v", record["action"])
	}
	if record["endOnSilence"] != float64(5) || record["timeOut"] != float64(7200) {
		t.Fatalf("record tuning = %v / %v", record["endOnSilence"], record["timeOut"])
	}

	connect := actions[1]
	if connect["action"] != "connect" || connect["from"] != "+15550001111" {
		t.Fatalf("connect = %v", connect)
	}
}

func TestErrorNCCOIsSingleTalkAction(t *testing.T) {
	ncco := ErrorNCCO()
	if len(ncco) != 1 {
		t.Fatalf("got %d actions, want 1", len(ncco))
	}
	talk, ok := ncco[0].(TalkAction)
	if !ok {
		t.Fatalf("action is %T, want TalkAction", ncco[0])
	}
	if talk.Text == "" {
		t.Fatalf("talk action has no text")
	}
}
