// Package expr implements the mini-language used for derived columns and
// row filters: a recursive-descent parser producing an immutable AST, and
// a pure per-row evaluator with a registry of named functions.
package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseError reports malformed expression syntax with the byte offset of
// the offending token.
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Message)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokKeyword // AND OR NOT IN BETWEEN LIKE IS NULL TRUE FALSE
	tokOp      // = != > >= < <= + - * /
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string // keywords uppercased, everything else verbatim
	pos  int
}

var keywords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "IN": true,
	"BETWEEN": true, "LIKE": true, "IS": true, "NULL": true,
	"TRUE": true, "FALSE": true,
}

// lex tokenizes the whole source up front; expressions are short enough
// that streaming buys nothing.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		r, _ := utf8.DecodeRuneInString(src[i:])
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case c == '\'' || c == '"':
			lit, n, err := lexString(src[i:], c)
			if err != nil {
				return nil, &ParseError{Pos: i, Message: err.Error()}
			}
			toks = append(toks, token{kind: tokString, text: lit, pos: i})
			i += n
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9') {
				i++
			}
			if i < len(src) && src[i] == '.' {
				i++
				for i < len(src) && (src[i] >= '0' && src[i] <= '9') {
					i++
				}
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start})
		case isIdentStart(r):
			start := i
			for i < len(src) {
				pr, size := utf8.DecodeRuneInString(src[i:])
				if !isIdentPart(pr) {
					break
				}
				i += size
			}
			word := src[start:i]
			if up := strings.ToUpper(word); keywords[up] {
				toks = append(toks, token{kind: tokKeyword, text: up, pos: start})
			} else {
				toks = append(toks, token{kind: tokIdent, text: word, pos: start})
			}
		case c == '>' || c == '<':
			op := string(c)
			if i+1 < len(src) && src[i+1] == '=' {
				op += "="
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		case c == '=':
			toks = append(toks, token{kind: tokOp, text: "=", pos: i})
			i++
		case c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{kind: tokOp, text: "!=", pos: i})
				i += 2
			} else {
				return nil, &ParseError{Pos: i, Message: "unexpected character '!'"}
			}
		case c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		default:
			return nil, &ParseError{Pos: i, Message: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

// lexString consumes a quoted literal starting at src[0] (the opening
// quote). A doubled quote escapes itself. Returns the unquoted text and
// the number of bytes consumed.
func lexString(src string, quote byte) (string, int, error) {
	var b strings.Builder
	i := 1
	for i < len(src) {
		if src[i] == quote {
			if i+1 < len(src) && src[i+1] == quote {
				b.WriteByte(quote)
				i += 2
				continue
			}
			return b.String(), i + 1, nil
		}
		b.WriteByte(src[i])
		i++
	}
	return "", 0, fmt.Errorf("unterminated string literal")
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
