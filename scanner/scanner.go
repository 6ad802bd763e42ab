// Package scanner splits a PDF byte buffer into lexical tokens.
//
// The scanner is lazy and restartable: Next produces one token at a time and
// SeekTo moves the cursor anywhere in the buffer, which is how the object
// resolver jumps to cross-reference offsets.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/recovery"
)

type TokenType int

const (
	TokenDict        TokenType = iota // '<<'
	TokenArray                        // '['
	TokenName                         // '/Name'
	TokenString                       // literal or hex string
	TokenNumber                       // numeric value
	TokenBoolean                      // true/false
	TokenNull                         // null
	TokenRef                          // indirect ref '5 0 R'
	TokenStream                       // stream payload between 'stream' and 'endstream'
	TokenInlineImage                  // inline image data following ID ... EI (content stream only)
	TokenKeyword                      // other keywords (obj, endobj, >>, ], operators)
)

var tokenNames = [...]string{"dict", "array", "name", "string", "number", "boolean", "null", "ref", "stream", "inline-image", "keyword"}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "token(" + strconv.Itoa(int(t)) + ")"
}

// Token is one lexical unit. Only the fields matching Type are set.
type Token struct {
	Type  TokenType
	Pos   int64
	Str   string // name (decoded) or keyword
	Bytes []byte // string, stream or inline image payload
	Hex   bool   // string was written in hex form
	Int   int64  // integer value, or object number of a ref
	Float float64
	IsInt bool
	Bool  bool
	Gen   int // generation of a ref
}

// Num returns the numeric value of a number token.
func (t Token) Num() float64 {
	if t.IsInt {
		return float64(t.Int)
	}
	return t.Float
}

type Scanner interface {
	Next() (Token, error)
	Position() int64
	SeekTo(offset int64) error
	SetNextStreamLength(n int64)
}

type Config struct {
	MaxStringLength int64
	MaxDepth        int
	MaxStreamLength int64

	// ContentStream switches the grammar to content streams: no indirect
	// references and inline images after the ID operator.
	ContentStream bool

	Recovery recovery.Strategy
}

type pdfScanner struct {
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	depth         int
}

// New returns a scanner over data. The buffer is not copied and must not
// change while the scanner is in use.
func New(data []byte, cfg Config) Scanner {
	return &pdfScanner{data: data, cfg: cfg, nextStreamLen: -1}
}

func (s *pdfScanner) Position() int64 { return s.pos }

func (s *pdfScanner) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return pdferr.AtOffset(pdferr.CorruptStructure, "seek", offset, fmt.Errorf("offset outside buffer of %d bytes", len(s.data)))
	}
	s.pos = offset
	s.depth = 0
	s.nextStreamLen = -1
	return nil
}

func (s *pdfScanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

func (s *pdfScanner) Next() (Token, error) {
	for {
		tok, err := s.scan()
		if err == nil || err == io.EOF {
			return tok, err
		}
		if !s.recover(err) {
			return Token{}, err
		}
	}
}

// recover consults the recovery strategy and, when allowed, moves the cursor
// past the offending bytes.
func (s *pdfScanner) recover(err error) bool {
	if s.cfg.Recovery == nil {
		return false
	}
	act := s.cfg.Recovery.OnError(context.Background(), err, recovery.Location{ByteOffset: s.pos, Component: "scanner"})
	if !act.Continue() {
		return false
	}
	if s.pos < int64(len(s.data)) {
		s.pos++
	}
	for s.pos < int64(len(s.data)) && !isWhitespace(s.data[s.pos]) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	return true
}

func (s *pdfScanner) malformed(at int64, format string, args ...interface{}) error {
	return pdferr.AtOffset(pdferr.MalformedSyntax, "scan", at, fmt.Errorf(format, args...))
}

func (s *pdfScanner) scan() (Token, error) {
	s.skipWSAndComments()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return s.open(Token{Type: TokenDict, Str: "<<", Pos: start})
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			s.close()
			return Token{Type: TokenKeyword, Str: ">>", Pos: start}, nil
		}
		return Token{}, s.malformed(start, "unexpected '>'")
	case '[':
		s.pos++
		return s.open(Token{Type: TokenArray, Str: "[", Pos: start})
	case ']':
		s.pos++
		s.close()
		return Token{Type: TokenKeyword, Str: "]", Pos: start}, nil
	case '{', '}':
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case ')':
		return Token{}, s.malformed(start, "unbalanced ')'")
	case '/':
		return s.scanName()
	}
	if c == '+' || c == '-' || c == '.' || isDigit(c) {
		return s.scanNumberOrRef()
	}
	if c < 0x20 || c == 0x7f {
		return Token{}, s.malformed(start, "unexpected byte 0x%02x", c)
	}
	return s.scanKeyword()
}

func (s *pdfScanner) open(tok Token) (Token, error) {
	s.depth++
	if s.cfg.MaxDepth > 0 && s.depth > s.cfg.MaxDepth {
		return Token{}, s.malformed(tok.Pos, "nesting deeper than %d", s.cfg.MaxDepth)
	}
	return tok, nil
}

func (s *pdfScanner) close() {
	if s.depth > 0 {
		s.depth--
	}
}

func (s *pdfScanner) peek(n int64) byte {
	if s.pos+n < int64(len(s.data)) {
		return s.data[s.pos+n]
	}
	return 0
}

func (s *pdfScanner) skipWSAndComments() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var buf []byte
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) {
			hi, ok1 := hexVal(s.data[s.pos+1])
			lo, ok2 := hexVal(s.data[s.pos+2])
			if ok1 && ok2 {
				buf = append(buf, hi<<4|lo)
				s.pos += 3
				continue
			}
		}
		buf = append(buf, c)
		s.pos++
	}
	return Token{Type: TokenName, Str: string(buf), Pos: start}, nil
}

func (s *pdfScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	depth := 1
	var buf []byte
	for s.pos < int64(len(s.data)) {
		if s.cfg.MaxStringLength > 0 && int64(len(buf)) > s.cfg.MaxStringLength {
			return Token{}, s.malformed(start, "string longer than %d bytes", s.cfg.MaxStringLength)
		}
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '(':
			depth++
			buf = append(buf, c)
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Bytes: buf, Pos: start}, nil
			}
			buf = append(buf, c)
		case '\r':
			// A bare end-of-line inside a string reads as a single LF.
			if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
				s.pos++
			}
			buf = append(buf, '\n')
		case '\\':
			if s.pos >= int64(len(s.data)) {
				return Token{}, s.malformed(start, "unterminated string")
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b':
				buf = append(buf, '\b')
			case 'f':
				buf = append(buf, '\f')
			case '(', ')', '\\':
				buf = append(buf, e)
			case '\r':
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < int64(len(s.data)); i++ {
						d := s.data[s.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						s.pos++
					}
					buf = append(buf, byte(v))
				} else {
					buf = append(buf, e)
				}
			}
		default:
			buf = append(buf, c)
		}
	}
	return Token{}, s.malformed(start, "unterminated string")
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var buf []byte
	var hi byte
	half := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if half {
				buf = append(buf, hi<<4)
			}
			return Token{Type: TokenString, Bytes: buf, Hex: true, Pos: start}, nil
		}
		if isWhitespace(c) {
			continue
		}
		v, ok := hexVal(c)
		if !ok {
			return Token{}, s.malformed(s.pos-1, "invalid hex digit %q", c)
		}
		if half {
			buf = append(buf, hi<<4|v)
			half = false
		} else {
			hi = v
			half = true
		}
		if s.cfg.MaxStringLength > 0 && int64(len(buf)) > s.cfg.MaxStringLength {
			return Token{}, s.malformed(start, "string longer than %d bytes", s.cfg.MaxStringLength)
		}
	}
	return Token{}, s.malformed(start, "unterminated hex string")
}

func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	tok, err := s.scanNumber()
	if err != nil {
		return Token{}, err
	}
	if s.cfg.ContentStream || !tok.IsInt || tok.Int < 0 {
		return tok, nil
	}
	// Look ahead for "G R".
	save := s.pos
	s.skipWhitespace()
	if s.pos < int64(len(s.data)) && isDigit(s.data[s.pos]) {
		genStart := s.pos
		for s.pos < int64(len(s.data)) && isDigit(s.data[s.pos]) {
			s.pos++
		}
		if s.pos < int64(len(s.data)) && isWhitespace(s.data[s.pos]) {
			gen, convErr := strconv.Atoi(string(s.data[genStart:s.pos]))
			s.skipWhitespace()
			if convErr == nil && s.pos < int64(len(s.data)) && s.data[s.pos] == 'R' {
				next := s.peek(1)
				if s.pos+1 >= int64(len(s.data)) || isWhitespace(next) || isDelimiter(next) {
					s.pos++
					return Token{Type: TokenRef, Int: tok.Int, Gen: gen, Pos: start}, nil
				}
			}
		}
	}
	s.pos = save
	return tok, nil
}

func (s *pdfScanner) scanNumber() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if !(isDigit(c) || c == '+' || c == '-' || c == '.') {
			break
		}
		s.pos++
	}
	lit := string(s.data[start:s.pos])
	if !bytes.ContainsRune(s.data[start:s.pos], '.') {
		if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start}, nil
		}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		// Trailing-dot reals such as "4." parse fine; "--4" and "1.2.3" do not.
		return Token{}, s.malformed(start, "invalid number %q", lit)
	}
	return Token{Type: TokenNumber, Float: f, Pos: start}, nil
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		s.pos++
	}
	word := string(s.data[start:s.pos])
	switch word {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: word == "true", Str: word, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Str: word, Pos: start}, nil
	case "stream":
		if !s.cfg.ContentStream {
			return s.scanStream(start)
		}
	case "ID":
		if s.cfg.ContentStream {
			return s.scanInlineImage(start)
		}
	}
	return Token{Type: TokenKeyword, Str: word, Pos: start}, nil
}

var (
	kwEndstream = []byte("endstream")
	kwEI        = []byte("EI")
)

// scanStream reads the payload after the 'stream' keyword. A length hint set
// through SetNextStreamLength is trusted when 'endstream' follows it;
// otherwise the payload runs up to the next 'endstream'.
func (s *pdfScanner) scanStream(start int64) (Token, error) {
	hint := s.nextStreamLen
	s.nextStreamLen = -1
	// The keyword is followed by CRLF or LF; a lone CR is tolerated.
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
		s.pos++
	}
	dataStart := s.pos
	if hint >= 0 && dataStart+hint <= int64(len(s.data)) {
		end := dataStart + hint
		p := end
		for p < int64(len(s.data)) && isWhitespace(s.data[p]) {
			p++
		}
		if bytes.HasPrefix(s.data[p:], kwEndstream) {
			if s.cfg.MaxStreamLength > 0 && hint > s.cfg.MaxStreamLength {
				return Token{}, s.malformed(start, "stream longer than %d bytes", s.cfg.MaxStreamLength)
			}
			s.pos = p + int64(len(kwEndstream))
			return Token{Type: TokenStream, Bytes: s.data[dataStart:end], Pos: start}, nil
		}
	}
	idx := bytes.Index(s.data[dataStart:], kwEndstream)
	if idx < 0 {
		return Token{}, s.malformed(start, "stream without endstream")
	}
	end := dataStart + int64(idx)
	s.pos = end + int64(len(kwEndstream))
	// Drop the end-of-line that precedes 'endstream'.
	if end > dataStart && s.data[end-1] == '\n' {
		end--
	}
	if end > dataStart && s.data[end-1] == '\r' {
		end--
	}
	if s.cfg.MaxStreamLength > 0 && end-dataStart > s.cfg.MaxStreamLength {
		return Token{}, s.malformed(start, "stream longer than %d bytes", s.cfg.MaxStreamLength)
	}
	return Token{Type: TokenStream, Bytes: s.data[dataStart:end], Pos: start}, nil
}

// scanInlineImage reads the binary data between ID and EI. EI only counts
// when surrounded by whitespace (or the end of the buffer).
func (s *pdfScanner) scanInlineImage(start int64) (Token, error) {
	if s.pos < int64(len(s.data)) && isWhitespace(s.data[s.pos]) {
		s.pos++
	}
	dataStart := s.pos
	for p := dataStart; p < int64(len(s.data)); {
		idx := bytes.Index(s.data[p:], kwEI)
		if idx < 0 {
			break
		}
		at := p + int64(idx)
		after := at + 2
		before := at > dataStart && isWhitespace(s.data[at-1])
		if before && (after >= int64(len(s.data)) || isWhitespace(s.data[after]) || isDelimiter(s.data[after])) {
			s.pos = after
			return Token{Type: TokenInlineImage, Bytes: s.data[dataStart : at-1], Pos: start}, nil
		}
		p = at + 1
	}
	return Token{}, s.malformed(start, "inline image without EI")
}

func (s *pdfScanner) skipWhitespace() {
	for s.pos < int64(len(s.data)) && isWhitespace(s.data[s.pos]) {
		s.pos++
	}
}

func isWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// IsWhitespace reports whether c is PDF whitespace.
func IsWhitespace(c byte) bool { return isWhitespace(c) }

// IsDelimiter reports whether c is a PDF delimiter.
func IsDelimiter(c byte) bool { return isDelimiter(c) }
