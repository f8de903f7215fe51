package replace

import (
	"fmt"
	"strings"

	"github.com/meysamhadeli/codegrep/models"
)

// segment is one piece of a parsed replacement template: either literal
// bytes or a capture reference.
type segment struct {
	literal string
	group   int    // 0 = whole match, 1..9 = numbered capture, -1 = not a group
	name    string // named capture, set when group == -1 and name != ""
}

// parseTemplate splits a template into literal runs and capture references.
// Supported references are $0..$9, ${name} and $$ for a literal dollar.
func parseTemplate(tpl string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String(), group: -1})
			lit.Reset()
		}
	}

	for i := 0; i < len(tpl); i++ {
		c := tpl[i]
		if c != '$' {
			lit.WriteByte(c)
			continue
		}
		if i+1 >= len(tpl) {
			return nil, fmt.Errorf("template ends with a bare $")
		}
		next := tpl[i+1]
		switch {
		case next == '$':
			lit.WriteByte('$')
			i++
		case next >= '0' && next <= '9':
			flush()
			segs = append(segs, segment{group: int(next - '0')})
			i++
		case next == '{':
			end := strings.IndexByte(tpl[i+2:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated ${ reference at offset %d", i)
			}
			name := tpl[i+2 : i+2+end]
			if name == "" {
				return nil, fmt.Errorf("empty ${} reference at offset %d", i)
			}
			flush()
			segs = append(segs, segment{group: -1, name: name})
			i += 2 + end
		default:
			return nil, fmt.Errorf("bad capture reference $%c at offset %d", next, i)
		}
	}
	flush()
	return segs, nil
}

// expand renders the template for one match. Unparticipating groups expand
// to nothing, the same as an empty capture.
func expand(segs []segment, content []byte, rec models.MatchRecord) []byte {
	var out []byte
	for _, s := range segs {
		switch {
		case s.group == 0:
			out = append(out, content[rec.Start:rec.End]...)
		case s.group > 0:
			if s.group <= len(rec.Groups) {
				out = append(out, rec.Groups[s.group-1].Text...)
			}
		case s.name != "":
			for _, g := range rec.Groups {
				if g.Name == s.name {
					out = append(out, g.Text...)
					break
				}
			}
		default:
			out = append(out, s.literal...)
		}
	}
	return out
}
