package scanner

import (
	"errors"
	"io"
	"testing"

	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/recovery"
)

func newScanner(t *testing.T, data string, cfg Config) Scanner {
	t.Helper()
	return New([]byte(data), cfg)
}

func nextToken(t *testing.T, s Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func collect(t *testing.T, s Scanner) []Token {
	t.Helper()
	var out []Token
	for {
		tok, err := s.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, tok)
	}
}

func TestScanner_BasicTokens(t *testing.T) {
	s := newScanner(t, "%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 2 3] /Flag true /Null null /Real -.5 >>\nendobj", Config{})

	tok := nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 1 {
		t.Fatalf("expected first token number 1, got %+v", tok)
	}
	tok = nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 0 {
		t.Fatalf("expected generation number 0, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "obj" {
		t.Fatalf("expected obj keyword, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenDict {
		t.Fatalf("expected dict start, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Name" {
		t.Fatalf("expected Name key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Value" {
		t.Fatalf("expected Name value, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Nums" {
		t.Fatalf("expected Nums key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenArray {
		t.Fatalf("expected array start, got %+v", tok)
	}
	for i := int64(1); i <= 3; i++ {
		tok = nextToken(t, s)
		if tok.Type != TokenNumber || !tok.IsInt || tok.Int != i {
			t.Fatalf("expected array number %d, got %+v", i, tok)
		}
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "]" {
		t.Fatalf("expected array end, got %+v", tok)
	}
	nextToken(t, s) // /Flag
	if tok = nextToken(t, s); tok.Type != TokenBoolean || !tok.Bool {
		t.Fatalf("expected true, got %+v", tok)
	}
	nextToken(t, s) // /Null
	if tok = nextToken(t, s); tok.Type != TokenNull {
		t.Fatalf("expected null, got %+v", tok)
	}
	nextToken(t, s) // /Real
	if tok = nextToken(t, s); tok.Type != TokenNumber || tok.IsInt || tok.Float != -0.5 {
		t.Fatalf("expected -0.5, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != ">>" {
		t.Fatalf("expected dict end, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "endobj" {
		t.Fatalf("expected endobj, got %+v", tok)
	}
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestScanner_Strings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		hex  bool
	}{
		{"plain", "(Hello)", "Hello", false},
		{"nested", "(a (b) c)", "a (b) c", false},
		{"escapes", `(tab\there\n\(x\)\\)`, "tab\there\n(x)\\", false},
		{"octal", `(\101\102\7)`, "AB\a", false},
		{"continuation", "(split \\\nline)", "split line", false},
		{"crlf", "(a\r\nb)", "a\nb", false},
		{"hex", "<48 65 6C6C6F>", "Hello", true},
		{"hex odd", "<414>", "A@", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := nextToken(t, newScanner(t, tt.in, Config{}))
			if tok.Type != TokenString {
				t.Fatalf("type = %v", tok.Type)
			}
			if string(tok.Bytes) != tt.want {
				t.Fatalf("bytes = %q, want %q", tok.Bytes, tt.want)
			}
			if tok.Hex != tt.hex {
				t.Fatalf("hex = %v, want %v", tok.Hex, tt.hex)
			}
		})
	}
}

func TestScanner_NameEscapes(t *testing.T) {
	tok := nextToken(t, newScanner(t, "/A#20B#2Fc", Config{}))
	if tok.Type != TokenName || tok.Str != "A B/c" {
		t.Fatalf("got %+v", tok)
	}
}

func TestScanner_References(t *testing.T) {
	toks := collect(t, newScanner(t, "[12 0 R 3 4 5] /K 7 0 R>>", Config{}))
	if toks[1].Type != TokenRef || toks[1].Int != 12 || toks[1].Gen != 0 {
		t.Fatalf("expected ref 12 0, got %+v", toks[1])
	}
	for i, want := range []int64{3, 4, 5} {
		if toks[2+i].Type != TokenNumber || toks[2+i].Int != want {
			t.Fatalf("expected number %d, got %+v", want, toks[2+i])
		}
	}
	if toks[7].Type != TokenRef || toks[7].Int != 7 {
		t.Fatalf("expected ref before >>, got %+v", toks[7])
	}
}

func TestScanner_ContentStreamHasNoRefs(t *testing.T) {
	toks := collect(t, newScanner(t, "0 0 1 RG 1 0 0 1 0 0 cm", Config{ContentStream: true}))
	if toks[3].Type != TokenKeyword || toks[3].Str != "RG" {
		t.Fatalf("expected RG operator, got %+v", toks[3])
	}
	if toks[len(toks)-1].Str != "cm" {
		t.Fatalf("expected cm, got %+v", toks[len(toks)-1])
	}
	// Outside content streams "0 0 RG" must not be read as a reference either.
	toks = collect(t, newScanner(t, "1 0 RG", Config{}))
	if toks[0].Type != TokenNumber || toks[2].Str != "RG" {
		t.Fatalf("RG misread as reference: %+v", toks)
	}
}

func TestScanner_StreamWithLengthHint(t *testing.T) {
	data := "<< /Length 10 >>\nstream\r\n0123456789\r\nendstream\nendobj"
	s := newScanner(t, data, Config{})
	for i := 0; i < 4; i++ {
		nextToken(t, s)
	}
	s.SetNextStreamLength(10)
	tok := nextToken(t, s)
	if tok.Type != TokenStream || string(tok.Bytes) != "0123456789" {
		t.Fatalf("stream = %+v", tok)
	}
	if tok = nextToken(t, s); tok.Str != "endobj" {
		t.Fatalf("expected endobj, got %+v", tok)
	}
}

func TestScanner_StreamWithoutHint(t *testing.T) {
	// A wrong hint falls back to searching for endstream.
	s := newScanner(t, "stream\nabc endstream inside?\nendstream", Config{})
	s.SetNextStreamLength(2)
	tok := nextToken(t, s)
	if tok.Type != TokenStream || string(tok.Bytes) != "abc " {
		t.Fatalf("stream = %q", tok.Bytes)
	}
}

func TestScanner_InlineImage(t *testing.T) {
	s := newScanner(t, "BI /W 2 /H 1 /BPC 8 /CS /G ID \x00\xffEIx EI Q", Config{ContentStream: true})
	toks := collect(t, s)
	var img *Token
	for i := range toks {
		if toks[i].Type == TokenInlineImage {
			img = &toks[i]
		}
	}
	if img == nil {
		t.Fatalf("no inline image token in %+v", toks)
	}
	if string(img.Bytes) != "\x00\xffEIx" {
		t.Fatalf("image data = %q", img.Bytes)
	}
	if last := toks[len(toks)-1]; last.Str != "Q" {
		t.Fatalf("expected Q after image, got %+v", last)
	}
}

func TestScanner_MalformedStrict(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unbalanced paren", "1 2 ) 3"},
		{"unterminated string", "(abc"},
		{"bad hex", "<4G>"},
		{"bad number", "1.2.3"},
		{"control byte", "\x01"},
		{"lone gt", "> 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScanner(t, tt.in, Config{Recovery: recovery.NewStrictStrategy()})
			var err error
			for err == nil {
				_, err = s.Next()
			}
			if err == io.EOF {
				t.Fatalf("expected MalformedSyntax, reached EOF")
			}
			if !errors.Is(err, pdferr.ErrMalformedSyntax) {
				t.Fatalf("expected MalformedSyntax, got %v", err)
			}
		})
	}
}

func TestScanner_MalformedOffset(t *testing.T) {
	s := newScanner(t, "1 2 ) 3", Config{})
	nextToken(t, s)
	nextToken(t, s)
	_, err := s.Next()
	var pe *pdferr.Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *pdferr.Error, got %v", err)
	}
	if pe.Offset != 4 {
		t.Fatalf("offset = %d, want 4", pe.Offset)
	}
}

func TestScanner_LenientSkips(t *testing.T) {
	rec := recovery.NewLenientStrategy()
	toks := collect(t, newScanner(t, "1 ) 2 \x01junk 3", Config{Recovery: rec}))
	var nums []int64
	for _, tok := range toks {
		if tok.Type == TokenNumber {
			nums = append(nums, tok.Int)
		}
	}
	if len(nums) != 3 || nums[0] != 1 || nums[1] != 2 || nums[2] != 3 {
		t.Fatalf("numbers = %v, want [1 2 3]", nums)
	}
	if len(rec.Errors()) != 2 {
		t.Fatalf("recorded %d errors, want 2", len(rec.Errors()))
	}
}

func TestScanner_SeekRestarts(t *testing.T) {
	s := newScanner(t, "/A /B /C", Config{})
	collect(t, s)
	if err := s.SeekTo(3); err != nil {
		t.Fatalf("SeekTo: %v", err)
	}
	if tok := nextToken(t, s); tok.Str != "B" {
		t.Fatalf("after seek got %+v", tok)
	}
	if err := s.SeekTo(100); err == nil {
		t.Fatalf("expected error seeking past the buffer")
	}
}

func TestScanner_DepthLimit(t *testing.T) {
	s := newScanner(t, "[[[[1]]]]", Config{MaxDepth: 3})
	var err error
	for err == nil {
		_, err = s.Next()
	}
	if !errors.Is(err, pdferr.ErrMalformedSyntax) {
		t.Fatalf("expected depth error, got %v", err)
	}
}
