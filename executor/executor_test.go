package executor

import (
	"testing"

	"github.com/EsteSystems/netctl/cmdlang"
	"github.com/EsteSystems/netctl/link"
)

func TestExecuteStopsAtValidationFailureWithoutTouchingKernel(t *testing.T) {
	c := cmdlang.Command{Subject: "interface", Verb: "set", Attrs: map[string]string{"state": "sideways"}}
	result := Execute(nil, &Snapshot{}, c)
	if len(result.Errors) == 0 {
		t.Fatal("expected validation errors, got none")
	}
}

func TestExecuteInterfaceListUsesSnapshot(t *testing.T) {
	snap := &Snapshot{Interfaces: []*link.Interface{
		{Index: 1, Name: "lo", Flags: 0x49, MTU: 65536},
	}}
	c := cmdlang.Command{Subject: "interface"}
	result := Execute(nil, snap, c)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if result.Message == "" {
		t.Fatal("expected a non-empty listing message")
	}
}

func TestExecuteUnknownInterfaceNameFails(t *testing.T) {
	snap := &Snapshot{}
	c := cmdlang.Command{Subject: "interface", Name: "eth9", Verb: "set", Attrs: map[string]string{"state": "up"}}
	result := Execute(nil, snap, c)
	if len(result.Errors) == 0 {
		t.Fatal("expected a not-found error")
	}
}

func TestExecuteBridgeUnknownPortFails(t *testing.T) {
	snap := &Snapshot{Interfaces: []*link.Interface{
		{Index: 2, Name: "br0"},
	}}
	c := cmdlang.Command{Subject: "bridge", Name: "br0", Verb: "add",
		Attrs: map[string]string{"dev": "eth9", "id": "10"}}
	result := Execute(nil, snap, c)
	if len(result.Errors) == 0 {
		t.Fatal("expected a not-found error for the missing port")
	}
}

func TestExecuteNeighborUnknownDevFails(t *testing.T) {
	snap := &Snapshot{}
	c := cmdlang.Command{Subject: "neighbor", Name: "10.0.0.5", Verb: "add",
		Attrs: map[string]string{"dev": "eth9", "with": "aa:bb:cc:dd:ee:ff"}}
	result := Execute(nil, snap, c)
	if len(result.Errors) == 0 {
		t.Fatal("expected a not-found error for the missing interface")
	}
}

func TestExecuteNamespaceMoveUnknownDevFails(t *testing.T) {
	snap := &Snapshot{}
	c := cmdlang.Command{Subject: "namespace", Name: "ns0", Verb: "add",
		Attrs: map[string]string{"dev": "eth9"}}
	result := Execute(nil, snap, c)
	if len(result.Errors) == 0 {
		t.Fatal("expected a not-found error for the missing interface")
	}
}
