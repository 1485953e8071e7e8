package frames

import "testing"

func TestTextFrameFinalFlag(t *testing.T) {
	f := NewTextFrame("s-1", 1, "hello", FinalMeta("stt", true))
	if !f.IsFinal() {
		t.Fatalf("expected final frame")
	}
	if f.Meta()[MetaSessionID] != "s-1" {
		t.Fatalf("expected session id in meta")
	}
	interim := NewTextFrame("s-1", 2, "hel", FinalMeta("stt", false))
	if interim.IsFinal() {
		t.Fatalf("expected interim frame")
	}
}

func TestMetaIsCopied(t *testing.T) {
	f := NewControlFrame("", 1, ControlFlush, map[string]string{MetaReason: "speech_final"})
	m := f.Meta()
	m[MetaReason] = "changed"
	if f.Meta()[MetaReason] != "speech_final" {
		t.Fatalf("expected frame meta to be immutable")
	}
	if _, ok := f.Meta()[MetaSessionID]; ok {
		t.Fatalf("expected no session id for empty id")
	}
}

func TestNewErrorFrame(t *testing.T) {
	f := NewErrorFrame("s-1", 1, "deepgram", "permission", "mic denied")
	if f.Code() != ControlError {
		t.Fatalf("expected error code")
	}
	meta := f.Meta()
	if meta[MetaReason] != "permission" || meta[MetaError] != "mic denied" || meta[MetaSource] != "deepgram" {
		t.Fatalf("unexpected meta %v", meta)
	}
}
