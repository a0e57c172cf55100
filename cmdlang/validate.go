package cmdlang

import (
	"fmt"
	"strconv"

	"github.com/EsteSystems/netctl/ipaddr"
	"github.com/EsteSystems/netctl/neighbor"
)

// ValidationError is one validator finding. Warnings never abort
// processing of the rest of a Command; everything else does.
type ValidationError struct {
	Line    int
	Field   string
	Message string
	Warning bool
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
}

var bondModes = map[string]bool{
	"balance-rr": true, "active-backup": true, "balance-xor": true,
	"broadcast": true, "802.3ad": true, "balance-tlb": true, "balance-alb": true,
}

// Validate checks c against spec.md's rules and returns every violation
// found; evaluation order never affects the resulting set (each rule is
// independent of the others having run).
func Validate(c Command) []ValidationError {
	var errs []ValidationError
	warn := func(field, msg string) {
		errs = append(errs, ValidationError{Line: c.Line, Field: field, Message: msg, Warning: true})
	}
	fail := func(field, msg string) {
		errs = append(errs, ValidationError{Line: c.Line, Field: field, Message: msg})
	}

	switch c.Subject {
	case "interface":
		if (c.Verb == "show" || c.Verb == "set" || c.Verb == "add" || c.Verb == "del") && c.Name == "" {
			fail("name", "interface show/set/add/del requires a name")
		}
		if v, ok := c.Attrs["state"]; ok && v != "up" && v != "down" {
			fail("state", "must be exactly up or down")
		}
		if v, ok := c.Attrs["mtu"]; ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < 68 || n > 65535 {
				fail("mtu", "must be an integer in [68, 65535]")
			}
		}
		if v, ok := c.Attrs["address"]; ok {
			if _, prefixLen, v6, err := ipaddr.ParseCIDR(v); err != nil {
				fail("address", "not a valid IPv4 or IPv6 address")
			} else if v6 && prefixLen > 128 {
				fail("address", "IPv6 prefix must be <= 128")
			} else if !v6 && prefixLen > 32 {
				fail("address", "IPv4 prefix must be <= 32")
			}
		}

	case "route":
		if c.Verb == "add" {
			_, hasVia := c.Attrs["via"]
			_, hasDev := c.Attrs["dev"]
			if !hasVia && !hasDev {
				fail("via/dev", "route add requires a via or dev attribute")
			}
		}
		if c.Verb == "del" {
			_, hasDefault := c.Attrs["default"]
			if c.Name == "" && !hasDefault {
				fail("destination", "route del requires a destination")
			}
		}

	case "bond":
		if (c.Verb == "create" || c.Verb == "add" || c.Verb == "del") && c.Name == "" {
			fail("name", "bond create/add/del requires a bond name")
		}
		if mode, ok := c.Attrs["mode"]; ok && !bondModes[mode] {
			fail("mode", "not a recognised bond mode")
		}

	case "vlan":
		if c.Name != "" {
			n, err := strconv.Atoi(c.Name)
			if err != nil || n < 1 || n > 4094 {
				fail("id", "VLAN id must be in [1, 4094]")
			}
		}

	case "veth":
		if c.Verb == "create" {
			if c.Name == "" {
				fail("name", "veth create requires a name")
			}
			if _, ok := c.Attrs["peer"]; !ok {
				fail("peer", "veth create requires a peer")
			}
		}

	case "bridge":
		if c.Verb == "create" && c.Name == "" {
			fail("name", "bridge create requires a bridge name")
		}
		if v, ok := c.Attrs["state"]; ok && v != "up" && v != "down" {
			fail("state", "must be exactly up or down")
		}
		if v, hasID := c.Attrs["id"]; hasID {
			if _, hasDev := c.Attrs["dev"]; !hasDev {
				fail("dev", "bridge VLAN entries require a dev attribute")
			}
			if n, err := strconv.Atoi(v); err != nil || n < 1 || n > 4094 {
				fail("id", "VLAN id must be in [1, 4094]")
			}
		}
		if v, hasWith := c.Attrs["with"]; hasWith {
			if _, hasDev := c.Attrs["dev"]; !hasDev {
				fail("dev", "bridge FDB entries require a dev attribute")
			}
			if _, err := neighbor.ParseMAC(v); err != nil {
				fail("with", "not a valid link-layer address")
			}
		}

	case "neighbor":
		if c.Verb == "add" || c.Verb == "del" {
			if c.Name == "" {
				fail("name", "neighbor add/del requires an IP address")
			} else if _, _, _, err := ipaddr.ParseCIDR(c.Name); err != nil {
				fail("name", "not a valid IP address")
			}
			if _, hasDev := c.Attrs["dev"]; !hasDev {
				fail("dev", "neighbor add/del requires a dev attribute")
			}
		}
		if c.Verb == "add" {
			if v, ok := c.Attrs["with"]; !ok {
				fail("with", "neighbor add requires a with <lladdr> attribute")
			} else if _, err := neighbor.ParseMAC(v); err != nil {
				fail("with", "not a valid link-layer address")
			}
		}

	case "namespace":
		if (c.Verb == "create" || c.Verb == "delete") && c.Name == "" {
			fail("name", "namespace create/delete requires a name")
		}
		if c.Verb == "add" {
			if c.Name == "" {
				fail("name", "namespace add requires a target namespace name")
			}
			if _, hasDev := c.Attrs["dev"]; !hasDev {
				fail("dev", "namespace add requires a dev attribute naming the interface to move")
			}
		}
	}

	for key := range c.Attrs {
		if len(key) > 8 && key[:8] == "unknown:" {
			warn(key[8:], "unrecognised attribute")
		}
	}

	return errs
}
