// Package cmdlang implements the lexer, parser and semantic validator
// for the line-oriented command language described in spec.md §4.5.
package cmdlang

// Kind classifies a Token.
type Kind int

const (
	Word Kind = iota // identifier, keyword, number, or IP address/CIDR
	Comment
	Pipe
	Newline
	Indent
	EOF
)

// Token is one lexed unit; Text carries the raw text for Word tokens.
type Token struct {
	Kind Kind
	Text string
	Line int
}

// Subjects recognised by the lexer/validator.
var Subjects = map[string]bool{
	"interface": true, "route": true, "bond": true, "bridge": true,
	"vlan": true, "veth": true, "namespace": true, "neighbor": true,
	"tc": true, "tunnel": true,
}

// Verbs recognised by the lexer/validator.
var Verbs = map[string]bool{
	"show": true, "set": true, "add": true, "del": true, "create": true,
	"delete": true, "analyze": true, "trace": true, "validate": true,
	"diagnose": true,
}

// Attributes recognised by the lexer/validator.
var Attributes = map[string]bool{
	"address": true, "mtu": true, "state": true, "master": true,
	"mode": true, "members": true, "via": true, "dev": true, "metric": true,
}

// StateValues recognised by the lexer/validator.
var StateValues = map[string]bool{"up": true, "down": true}

// StructureWords recognised by the lexer (kept for classification callers
// may want, though the lexer itself doesn't need to special-case them).
var StructureWords = map[string]bool{
	"on": true, "to": true, "from": true, "with": true, "after": true,
	"checkpoint": true, "default": true, "peer": true, "id": true,
}
