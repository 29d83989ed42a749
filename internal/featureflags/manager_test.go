package featureflags

import (
	"testing"

	"github.com/google/uuid"
)

var member = uuid.MustParse("3f1c2d9e-5b7a-4c8e-9f01-23456789abcd")

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", member) || !m.Enabled("c", member) || !m.Enabled("e", member) {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", member) || m.Enabled("d", member) || m.Enabled("f", member) {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
	if !m.Global("a") || m.Global("b") {
		t.Fatal("global evaluation should follow boolean values")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%")

	if !m.Enabled("always", member) || !m.Global("always") {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", member) {
		t.Fatal("0% rollout should always be disabled")
	}

	first := m.Enabled("canary", member)
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", member); got != first {
			t.Fatal("rollout evaluation must be deterministic per subject")
		}
	}

	if m.Enabled("canary", uuid.Nil) || m.Global("canary") {
		t.Fatal("partial rollout requires a subject")
	}
}

func TestEnabled_NilManagerAndUnknownFlag(t *testing.T) {
	var m *Manager
	if m.Enabled(ReferralRealtimeEvents, member) {
		t.Fatal("nil manager must report disabled")
	}
	if NewManager("").Enabled("missing", member) {
		t.Fatal("unknown flag must report disabled")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	raw := m.Raw()
	if len(raw) != 3 {
		t.Fatalf("expected 3 parsed flags, got %d", len(raw))
	}
	if raw["x"] != "on" || raw["y"] != "20%" || raw["z"] != "off" {
		t.Fatalf("unexpected raw flags: %#v", raw)
	}

	snap := m.Snapshot(member)
	if len(snap) != 3 {
		t.Fatalf("expected snapshot size 3, got %d", len(snap))
	}
}

func TestParse_RejectsGarbageAndClamps(t *testing.T) {
	m := NewManager("a=maybe,b=%,c=250%,d=-5%")

	raw := m.Raw()
	if _, ok := raw["a"]; ok {
		t.Fatal("unparseable value must be dropped")
	}
	if _, ok := raw["b"]; ok {
		t.Fatal("bare percent sign must be dropped")
	}
	if !m.Global("c") {
		t.Fatal("rollout above 100% is clamped to fully on")
	}
	if m.Enabled("d", member) {
		t.Fatal("negative rollout is clamped to off")
	}
}

func TestRollout_RoughlyProportional(t *testing.T) {
	m := NewManager("half=50%")
	on := 0
	for i := 0; i < 2000; i++ {
		if m.Enabled("half", uuid.New()) {
			on++
		}
	}
	if on < 800 || on > 1200 {
		t.Fatalf("50%% rollout enabled %d of 2000 subjects", on)
	}
}
