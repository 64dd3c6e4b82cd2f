package preprocessor

import (
	"fmt"
	"strings"
)

type rawLine struct {
	text string
	no   int
}

type lineItem struct {
	text string
	no   int
}

// blockItem is either a *lineItem (an ordinary text line) or a *block (a
// nested #if/#ifdef/#ifndef/#for region).
type blockItem interface{}

type blockKind int

const (
	kindIf blockKind = iota
	kindFor
)

type branchKind int

const (
	branchExpr branchKind = iota
	branchDefined
	branchNotDefined
	branchElse
)

type branch struct {
	kind branchKind
	expr string // for branchExpr
	name string // for branchDefined / branchNotDefined
	no   int
	body []blockItem
}

type block struct {
	kind     blockKind
	no       int
	branches []*branch // kindIf
	loopVar  string    // kindFor
	iterExpr string    // kindFor
	body     []blockItem
}

// directiveOf reports whether line is a directive line, and if so, its
// name and the remainder of the line after the directive word.
func directiveOf(line string) (name, rest string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	body := strings.TrimSpace(trimmed[1:])
	sp := strings.IndexAny(body, " \t")
	if sp < 0 {
		return body, "", true
	}
	return body[:sp], strings.TrimSpace(body[sp+1:]), true
}

func parseForHeader(rest string) (name, iter string, err error) {
	parts := strings.SplitN(rest, " in ", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed #for header %q, expected 'var in iterable'", rest)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// parseFile builds the block tree for a file's full line list.
func parseFile(file string, lines []rawLine) ([]blockItem, error) {
	items, i, term, err := parseBody(file, lines, 0)
	if err != nil {
		return nil, err
	}
	if term != "" {
		return nil, errf(file, lines[i].no, "unexpected #%s with no matching opening directive", term)
	}
	return items, nil
}

// parseBody parses a flat run of blockItems starting at index i, stopping
// when it sees #elif, #else, #endif, #endfor, or EOF. It returns the items
// collected, the index of the terminating directive line (or len(lines)
// at EOF), and the terminator's directive name ("" at EOF).
func parseBody(file string, lines []rawLine, i int) ([]blockItem, int, string, error) {
	var items []blockItem
	for i < len(lines) {
		line := lines[i]
		name, rest, ok := directiveOf(line.text)
		if !ok {
			items = append(items, &lineItem{text: line.text, no: line.no})
			i++
			continue
		}
		switch name {
		case "elif", "else", "endif", "endfor":
			return items, i, name, nil
		case "if":
			b, ni, err := parseIfChain(file, lines, i, branchExpr, rest)
			if err != nil {
				return nil, 0, "", err
			}
			items = append(items, b)
			i = ni
		case "ifdef":
			b, ni, err := parseIfChain(file, lines, i, branchDefined, rest)
			if err != nil {
				return nil, 0, "", err
			}
			items = append(items, b)
			i = ni
		case "ifndef":
			b, ni, err := parseIfChain(file, lines, i, branchNotDefined, rest)
			if err != nil {
				return nil, 0, "", err
			}
			items = append(items, b)
			i = ni
		case "for":
			varName, iter, err := parseForHeader(rest)
			if err != nil {
				return nil, 0, "", errf(file, line.no, "%s", err)
			}
			body, ni, term, err := parseBody(file, lines, i+1)
			if err != nil {
				return nil, 0, "", err
			}
			if term != "endfor" {
				return nil, 0, "", errf(file, line.no, "unterminated #for (missing #endfor)")
			}
			items = append(items, &block{kind: kindFor, no: line.no, loopVar: varName, iterExpr: iter, body: body})
			i = ni + 1
		case "define", "include":
			items = append(items, &lineItem{text: line.text, no: line.no})
			i++
		default:
			return nil, 0, "", errf(file, line.no, "unknown directive #%s", name)
		}
	}
	return items, i, "", nil
}

// parseIfChain parses one #if/#ifdef/#ifndef through its matching #endif,
// including any #elif/#else branches, starting at lines[i] (the opening
// directive) and returning the block plus the index just past #endif.
func parseIfChain(file string, lines []rawLine, i int, firstKind branchKind, firstRest string) (*block, int, error) {
	openLine := lines[i]
	var branches []*branch
	kind := firstKind
	rest := firstRest
	lineNo := openLine.no
	i++
	for {
		body, ni, term, err := parseBody(file, lines, i)
		if err != nil {
			return nil, 0, err
		}
		br := &branch{no: lineNo, body: body}
		switch kind {
		case branchExpr:
			br.kind = branchExpr
			br.expr = rest
		case branchDefined:
			br.kind = branchDefined
			br.name = rest
		case branchNotDefined:
			br.kind = branchNotDefined
			br.name = rest
		case branchElse:
			br.kind = branchElse
		}
		branches = append(branches, br)
		i = ni

		switch term {
		case "elif":
			_, elifRest, _ := directiveOf(lines[i].text)
			kind = branchExpr
			rest = elifRest
			lineNo = lines[i].no
			i++
			continue
		case "else":
			kind = branchElse
			rest = ""
			lineNo = lines[i].no
			i++
			continue
		case "endif":
			i++
			return &block{kind: kindIf, no: openLine.no, branches: branches}, i, nil
		default:
			return nil, 0, errf(file, openLine.no, "unterminated #if (missing #endif)")
		}
	}
}
