package cmdlang

// Command is one canonical, inline-form instruction: a subject, an
// optional name, an optional verb, and a bag of attribute key/value
// pairs. Block-form continuation lines are lowered into Commands
// sharing their stanza's subject and name before reaching this shape.
type Command struct {
	Subject string
	Name    string
	Verb    string
	Attrs   map[string]string
	Line    int
}

// flagWords take no following value; everything else in StructureWords
// pairs with the token that follows it.
var flagWords = map[string]bool{"default": true}

type line struct {
	indent string
	words  []Token // Word and Pipe tokens; Comment/Newline stripped
	lineNo int
}

// splitLines regroups a flat token stream back into physical lines.
func splitLines(tokens []Token) []line {
	var lines []line
	var cur line
	started := false
	for _, tok := range tokens {
		switch tok.Kind {
		case Indent:
			cur = line{indent: tok.Text, lineNo: tok.Line}
			started = true
		case Word:
			cur.words = append(cur.words, tok)
		case Comment:
			// dropped
		case Pipe:
			cur.words = append(cur.words, tok)
		case Newline:
			if started {
				lines = append(lines, cur)
			}
			cur = line{}
			started = false
		case EOF:
			if started && len(cur.words) > 0 {
				lines = append(lines, cur)
			}
		}
	}
	return lines
}

// parseWords turns one line's Word tokens into a Command, following
// spec.md's "subject [name] [action] [attributes...]" inline grammar.
func parseWords(words []Token, lineNo int) Command {
	c := Command{Attrs: map[string]string{}, Line: lineNo}
	if len(words) == 0 {
		return c
	}
	c.Subject = words[0].Text
	idx := 1

	if idx < len(words) && !isKeyword(words[idx].Text) {
		c.Name = words[idx].Text
		idx++
	}

	for idx < len(words) {
		tok := words[idx].Text
		switch {
		case Verbs[tok]:
			c.Verb = tok
			idx++
		case tok == "state" && idx+1 < len(words) && StateValues[words[idx+1].Text]:
			c.Attrs["state"] = words[idx+1].Text
			idx += 2
		case StateValues[tok]:
			// bare "up"/"down" shorthand for "state up"/"state down".
			c.Attrs["state"] = tok
			idx++
		case flagWords[tok]:
			c.Attrs[tok] = "true"
			idx++
		case Attributes[tok] || StructureWords[tok]:
			key := tok
			idx++
			if idx < len(words) {
				c.Attrs[key] = words[idx].Text
				idx++
			} else {
				c.Attrs[key] = ""
			}
		default:
			// Unrecognised token: recorded so the validator can warn on
			// it without aborting the parse.
			c.Attrs["unknown:"+tok] = ""
			idx++
		}
	}
	return c
}

func isKeyword(s string) bool {
	return Verbs[s] || Attributes[s] || StructureWords[s] || StateValues[s]
}

// loweredContinuation rewrites one indented "interface" stanza
// continuation line into a canonical Command sharing subject/name, or
// returns ok=false for an unrecognised continuation (to be skipped).
func loweredContinuation(subject, name string, words []Token, lineNo int) (Command, bool) {
	if subject != "interface" || len(words) == 0 {
		return Command{}, false
	}
	first := words[0].Text
	switch {
	case first == "state" && len(words) == 2 && StateValues[words[1].Text]:
		return Command{Subject: subject, Name: name, Verb: "set",
			Attrs: map[string]string{"state": words[1].Text}, Line: lineNo}, true
	case len(words) == 1 && StateValues[first]:
		return Command{Subject: subject, Name: name, Verb: "set",
			Attrs: map[string]string{"state": first}, Line: lineNo}, true
	case first == "address" && len(words) == 2:
		return Command{Subject: subject, Name: name,
			Attrs: map[string]string{"address": words[1].Text}, Line: lineNo}, true
	case first == "mtu" && len(words) == 2:
		return Command{Subject: subject, Name: name, Verb: "set",
			Attrs: map[string]string{"mtu": words[1].Text}, Line: lineNo}, true
	default:
		return Command{}, false
	}
}

// Parse consumes a lexed token stream into the ordered list of
// canonical Commands it denotes, lowering indented block continuations
// along the way.
func Parse(tokens []Token) []Command {
	lines := splitLines(tokens)
	var out []Command

	var curSubject, curName string

	for i := 0; i < len(lines); i++ {
		ln := lines[i]
		if len(ln.words) == 0 {
			continue // blank or comment-only line
		}
		if ln.indent != "" {
			if cmd, ok := loweredContinuation(curSubject, curName, ln.words, ln.lineNo); ok {
				out = append(out, cmd)
			}
			continue
		}

		c := parseWords(ln.words, ln.lineNo)
		curSubject, curName = c.Subject, c.Name

		hasChildren := i+1 < len(lines) && lines[i+1].indent != ""
		bareHeader := c.Verb == "" && len(c.Attrs) == 0
		if bareHeader && hasChildren {
			continue // stanza header only; its children carry the commands
		}
		out = append(out, c)
	}
	return out
}
