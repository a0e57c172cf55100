package cmdlang

import "testing"

func TestParseInterfaceList(t *testing.T) {
	cmds := Parse(Lex("interface"))
	if len(cmds) != 1 || cmds[0].Subject != "interface" || cmds[0].Name != "" {
		t.Fatalf("got %+v", cmds)
	}
}

func TestParseSetStateUp(t *testing.T) {
	cmds := Parse(Lex("interface eth0 set state up"))
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	c := cmds[0]
	if c.Subject != "interface" || c.Name != "eth0" || c.Verb != "set" || c.Attrs["state"] != "up" {
		t.Fatalf("got %+v", c)
	}
}

func TestParseAddAddress(t *testing.T) {
	cmds := Parse(Lex("interface eth0 address 10.0.0.1/24"))
	c := cmds[0]
	if c.Attrs["address"] != "10.0.0.1/24" || c.Verb != "" {
		t.Fatalf("got %+v", c)
	}
}

func TestParseDefaultRoute(t *testing.T) {
	cmds := Parse(Lex("route add default via 10.0.0.254"))
	c := cmds[0]
	if c.Subject != "route" || c.Verb != "add" || c.Attrs["default"] != "true" || c.Attrs["via"] != "10.0.0.254" {
		t.Fatalf("got %+v", c)
	}
}

func TestParseVlanCreate(t *testing.T) {
	cmds := Parse(Lex("vlan 100 on eth0"))
	c := cmds[0]
	if c.Subject != "vlan" || c.Name != "100" || c.Attrs["on"] != "eth0" {
		t.Fatalf("got %+v", c)
	}
}

// TestBlockLoweringProducesExactlyChildCommands is the literal §8
// "Block lowering" property: a block stanza with k recognised child
// lines produces exactly k inline commands sharing the stanza's subject
// and name, in order, and the header itself is not emitted as a command.
func TestBlockLoweringProducesExactlyChildCommands(t *testing.T) {
	cmds := Parse(Lex("interface eth0\n  state up\n  address 10.0.0.1/24"))
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2: %+v", len(cmds), cmds)
	}
	if cmds[0].Verb != "set" || cmds[0].Attrs["state"] != "up" {
		t.Errorf("first command wrong: %+v", cmds[0])
	}
	if cmds[1].Attrs["address"] != "10.0.0.1/24" {
		t.Errorf("second command wrong: %+v", cmds[1])
	}
	for _, c := range cmds {
		if c.Subject != "interface" || c.Name != "eth0" {
			t.Errorf("command lost stanza context: %+v", c)
		}
	}
}

func TestBlockLoweringSkipsUnrecognisedChildLines(t *testing.T) {
	cmds := Parse(Lex("interface eth0\n  state up\n  bogus nonsense\n  mtu 1500"))
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2 (unrecognised line skipped): %+v", len(cmds), cmds)
	}
}

func TestBlockLoweringUpDownShorthand(t *testing.T) {
	cmds := Parse(Lex("interface eth0\n  down"))
	if len(cmds) != 1 || cmds[0].Verb != "set" || cmds[0].Attrs["state"] != "down" {
		t.Fatalf("got %+v", cmds)
	}
}
