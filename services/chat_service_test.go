package services

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPersistedTimestampsAreUTCMilliseconds(t *testing.T) {
	ts := nowUTC()

	if ts.Location() != time.UTC {
		t.Fatalf("timestamp location = %v, want UTC", ts.Location())
	}
	if ts.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("timestamp carries sub-millisecond precision: %d ns", ts.Nanosecond())
	}

	raw, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	serialized := strings.Trim(string(raw), `"`)
	if !strings.HasSuffix(serialized, "Z") {
		t.Fatalf("serialized timestamp %q has no Z suffix", serialized)
	}
}
