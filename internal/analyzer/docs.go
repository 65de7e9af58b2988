package analyzer

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rendis/flowlens/internal/frontend"
	"github.com/rendis/flowlens/pkg/schema"
)

// docFor resolves the documentation comment of an anchor node: its own
// leading comment when present, else the one on its enclosing statement.
func (ctx *walkContext) docFor(n *sitter.Node) *schema.DocComment {
	if text := ctx.src.LeadingComment(n); text != "" {
		return parseDocComment(text)
	}
	if stmt := enclosingStatement(n); stmt != nil {
		if text := ctx.src.LeadingComment(stmt); text != "" {
			return parseDocComment(text)
		}
	}
	return nil
}

// enclosingStatement climbs to the statement that directly sits in a block
// or at top level.
func enclosingStatement(n *sitter.Node) *sitter.Node {
	for p := n; p != nil; p = p.Parent() {
		parent := p.Parent()
		if parent == nil {
			return nil
		}
		if parent.Type() == frontend.KindStatementBlock || parent.Type() == frontend.KindProgram {
			return p
		}
	}
	return nil
}

// parseDocComment parses a JSDoc-shaped comment into its description and
// structured tags. Returns nil for a comment with no content.
func parseDocComment(text string) *schema.DocComment {
	lines := docLines(text)
	doc := &schema.DocComment{}

	var (
		section = ""
		buf     []string
	)
	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		switch {
		case section == "":
			doc.Description = body
		case section == "returns":
			if body != "" {
				doc.Returns = body
			}
		case section == "throws":
			if body != "" {
				doc.Throws = append(doc.Throws, body)
			}
		case section == "example":
			if body != "" {
				doc.Example = body
			}
		case strings.HasPrefix(section, "param "):
			name := strings.TrimPrefix(section, "param ")
			if name != "" {
				doc.Params = append(doc.Params, schema.DocParam{Name: name, Description: body})
			}
		}
	}

	for _, line := range lines {
		if !strings.HasPrefix(line, "@") {
			buf = append(buf, line)
			continue
		}
		flush()
		tag, rest := splitTag(line)
		switch tag {
		case "param", "arg", "argument":
			name, desc := paramNameAndDesc(rest)
			section = "param " + name
			if desc != "" {
				buf = append(buf, desc)
			}
		case "returns", "return":
			section = "returns"
			if rest = stripTypeAnnotation(rest); rest != "" {
				buf = append(buf, rest)
			}
		case "throws", "throw":
			section = "throws"
			if rest = stripTypeAnnotation(rest); rest != "" {
				buf = append(buf, rest)
			}
		case "example":
			section = "example"
			if rest != "" {
				buf = append(buf, rest)
			}
		default:
			// Unknown tag: swallow its body.
			section = "unknown"
		}
	}
	flush()

	if doc.Empty() {
		return nil
	}
	return doc
}

// docLines strips the comment fence and per-line asterisk gutters.
func docLines(text string) []string {
	text = strings.TrimPrefix(text, "/**")
	text = strings.TrimSuffix(text, "*/")

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		if len(line) > 0 && line[0] == ' ' {
			line = line[1:]
		}
		out = append(out, line)
	}
	return out
}

// splitTag separates "@tag rest of line" into its parts.
func splitTag(line string) (string, string) {
	line = strings.TrimPrefix(line, "@")
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i], strings.TrimSpace(line[i+1:])
	}
	return line, ""
}

// paramNameAndDesc extracts the parameter name and trailing description from
// an @param body, stripping the {type} annotation, optional brackets and a
// default value.
func paramNameAndDesc(rest string) (string, string) {
	rest = stripTypeAnnotation(rest)
	name := rest
	desc := ""
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		name = rest[:i]
		desc = strings.TrimSpace(rest[i+1:])
	}
	desc = strings.TrimSpace(strings.TrimPrefix(desc, "-"))

	// [name=default] marks an optional parameter.
	name = strings.TrimPrefix(name, "[")
	name = strings.TrimSuffix(name, "]")
	if i := strings.IndexByte(name, '='); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name), desc
}

// stripTypeAnnotation removes a leading {type} group.
func stripTypeAnnotation(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return s
	}
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[i+1:])
			}
		}
	}
	return s
}
