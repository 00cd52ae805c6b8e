package vmap

import (
	"io"
	"io/ioutil"
	"strconv"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"

	"github.com/avafab/shapeport/utils"
)

// Reader for the proxy-fitting text format produced by the mesh
// fitting tooling. A file carries metadata directives, one "verts"
// block with a mapping line per target vertex (a single source index,
// or a barycentric triple with three weights and optional offsets),
// and any number of named "delete_verts" exclusion groups:
//
//	name UpperBody
//	verts 0
//	102
//	340 341 339 0.25 0.5 0.25
//	18 19 20 0.2 0.3 0.5 0.001 0.002 0.0
//	delete_verts hidden
//	5 6 7 8
const (
	TOKEN_NUMBER = iota
	TOKEN_IDENT
	TOKEN_NEWLINE
	TOKEN_COMMENT
)

var lexer *lexmachine.Lexer

func init() {
	lexer = lexmachine.NewLexer()
	lexer.Add([]byte(`[\+\-]?[0-9]*\.?[0-9]+((e|E)[\+\-]?[0-9]+)?`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`[a-zA-Z_][a-zA-Z0-9_\.\-]*`), getToken(TOKEN_IDENT))
	lexer.Add([]byte(`(\n|\r\n)+`), getToken(TOKEN_NEWLINE))
	lexer.Add([]byte(`#[^\n]*`), getToken(TOKEN_COMMENT))
	lexer.Add([]byte(`( |\t|\r)+`), skip)
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

// Fitting is the parsed content of one proxy-fitting file.
type Fitting struct {
	Name     string
	Map      *Map
	Excluded map[string][]int
}

const (
	sectionNone = iota
	sectionVerts
	sectionDelete
)

func ReadFitting(r io.Reader) (*Fitting, error) {
	text, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read fitting data")
	}

	scanner, err := lexer.Scanner(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create lexer scanner")
	}

	fit := &Fitting{Excluded: make(map[string][]int)}

	section := sectionNone
	offset := 0
	group := ""
	entries := make([]Entry, 0)

	var line []*lexmachine.Token
	flush := func() error {
		if len(line) == 0 {
			return nil
		}
		defer func() { line = line[:0] }()

		if line[0].Type == TOKEN_IDENT {
			keyword := string(line[0].Lexeme)
			switch keyword {
			case "verts":
				section = sectionVerts
				offset = 0
				if len(line) > 1 {
					v, err := tokenInt(line[1])
					if err != nil {
						return err
					}
					offset = v
				}
			case "delete_verts":
				section = sectionDelete
				group = "default"
				if len(line) > 1 && line[1].Type == TOKEN_IDENT {
					group = utils.DecodeText(line[1].Lexeme)
				}
			case "name":
				if len(line) > 1 {
					fit.Name = utils.DecodeText(line[1].Lexeme)
				}
			default:
				// other metadata directives are not ours to interpret
				section = sectionNone
			}
			return nil
		}

		switch section {
		case sectionVerts:
			entry, err := parseEntry(line, offset)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		case sectionDelete:
			for _, tok := range line {
				v, err := tokenInt(tok)
				if err != nil {
					return err
				}
				fit.Excluded[group] = append(fit.Excluded[group], v)
			}
		default:
			return errors.Errorf("Line %d: numbers outside of any section", line[0].StartLine)
		}
		return nil
	}

	for itok, err, eos := scanner.Next(); !eos; itok, err, eos = scanner.Next() {
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse token")
		}
		tok := itok.(*lexmachine.Token)

		switch tok.Type {
		case TOKEN_COMMENT:
		case TOKEN_NEWLINE:
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			line = append(line, tok)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	m, err := New(entries)
	if err != nil {
		return nil, errors.Wrapf(err, "Invalid correspondence data")
	}
	fit.Map = m

	return fit, nil
}

// parseEntry turns one mapping line into an Entry. Accepted shapes:
// one number (direct alias), six numbers (triple + weights) or nine
// (triple + weights + fitting offsets, which do not apply here).
func parseEntry(line []*lexmachine.Token, offset int) (Entry, error) {
	switch len(line) {
	case 1:
		v, err := tokenInt(line[0])
		if err != nil {
			return Entry{}, err
		}
		return DirectEntry(v + offset), nil
	case 6, 9:
		var v [3]int
		var w [3]float32
		for i := 0; i < 3; i++ {
			vi, err := tokenInt(line[i])
			if err != nil {
				return Entry{}, err
			}
			v[i] = vi + offset
			wf, err := tokenFloat(line[i+3])
			if err != nil {
				return Entry{}, err
			}
			w[i] = wf
		}
		return BarycentricEntry(v[0], v[1], v[2], w[0], w[1], w[2]), nil
	default:
		return Entry{}, errors.Errorf("Line %d: mapping needs 1, 6 or 9 numbers, got %d",
			line[0].StartLine, len(line))
	}
}

func tokenInt(tok *lexmachine.Token) (int, error) {
	if tok.Type != TOKEN_NUMBER {
		return 0, errors.Errorf("Line %d: expected a number, got %q", tok.StartLine, tok.Lexeme)
	}
	v, err := strconv.Atoi(string(tok.Lexeme))
	if err != nil {
		return 0, errors.Wrapf(err, "Line %d: bad integer %q", tok.StartLine, tok.Lexeme)
	}
	return v, nil
}

func tokenFloat(tok *lexmachine.Token) (float32, error) {
	if tok.Type != TOKEN_NUMBER {
		return 0, errors.Errorf("Line %d: expected a number, got %q", tok.StartLine, tok.Lexeme)
	}
	v, err := strconv.ParseFloat(string(tok.Lexeme), 32)
	if err != nil {
		return 0, errors.Wrapf(err, "Line %d: bad float %q", tok.StartLine, tok.Lexeme)
	}
	return float32(v), nil
}
