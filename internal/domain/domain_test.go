package domain

import (
	"encoding/json"
	"testing"
)

func TestEndpoint_PresentAndTrim(t *testing.T) {
	if NewEndpoint("").Present() {
		t.Fatalf("empty endpoint should be absent")
	}
	if NewEndpoint("   ").Present() {
		t.Fatalf("blank endpoint should be absent")
	}
	e := NewEndpoint(" 10.0.0.1 ")
	if !e.Present() || e.String() != "10.0.0.1" {
		t.Fatalf("want trimmed present endpoint, got %q", e.String())
	}
	var zero Endpoint
	if zero.Present() {
		t.Fatalf("zero endpoint should be absent")
	}
}

func TestSite_JSONCarriesEndpointsAsStrings(t *testing.T) {
	s := Site{Code: "R1", Primary: NewEndpoint("10.0.0.1"), City: "Pune"}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["primary"] != "10.0.0.1" {
		t.Fatalf("primary not a plain string: %v", raw["primary"])
	}

	var back Site
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal site: %v", err)
	}
	if back.DualHomed() {
		t.Fatalf("site without secondary should be single-homed")
	}
	if back.Primary.String() != "10.0.0.1" {
		t.Fatalf("primary lost: %+v", back)
	}
}

func TestReachabilityOf(t *testing.T) {
	if ReachabilityOf(true) != Reachable || ReachabilityOf(false) != Unreachable {
		t.Fatalf("ReachabilityOf mapping wrong")
	}
	if Absent.String() != "absent" || Reachable.String() != "up" || Unreachable.String() != "down" {
		t.Fatalf("unexpected String values")
	}
}
