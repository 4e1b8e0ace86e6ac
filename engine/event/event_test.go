package event

import "testing"

func TestNewAssignsIdentity(t *testing.T) {
	a := New(TypeActivate)
	b := New(TypeActivate)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("IDs not unique: %q vs %q", a.ID, b.ID)
	}
	if a.Timestamp == 0 {
		t.Error("timestamp unset")
	}
}

func TestMarshalRoundtrip(t *testing.T) {
	ev := New(TypePatchBatch)
	ev.Host = "example.com"
	ev.Scope = "memdoc:0x1"
	ev.Count = 42

	data, err := Marshal(&ev)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}

	if got.Type != TypePatchBatch {
		t.Errorf("Type: got %q, want %q", got.Type, TypePatchBatch)
	}
	if got.Count != 42 {
		t.Errorf("Count: got %d, want 42", got.Count)
	}
	if got.Host != "example.com" {
		t.Errorf("Host: got %q, want %q", got.Host, "example.com")
	}
}
