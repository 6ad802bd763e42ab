package xref

import (
	"fmt"

	"github.com/wudi/formkit/ir/raw"
	"github.com/wudi/formkit/pdferr"
	"github.com/wudi/formkit/scanner"
)

// parseClassic reads subsections after the xref keyword up to the trailer
// dictionary.
func (r *Resolver) parseClassic(s scanner.Scanner, off int64) (*section, error) {
	rd := raw.NewReader(s, raw.ReaderConfig{})
	sec := &section{entries: make(map[int]Entry), kind: "table"}
	bad := func(tok scanner.Token, format string, args ...interface{}) error {
		return pdferr.AtOffset(pdferr.CorruptStructure, "xref", tok.Pos, fmt.Errorf(format, args...))
	}
	for {
		tok, err := rd.Next()
		if err != nil {
			return nil, pdferr.AtOffset(pdferr.TrailerNotFound, "xref", off, fmt.Errorf("section without trailer: %w", err))
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			break
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, bad(tok, "invalid subsection header")
		}
		countTok, err := rd.Next()
		if err != nil || countTok.Type != scanner.TokenNumber || !countTok.IsInt || countTok.Int < 0 {
			return nil, bad(tok, "invalid subsection count")
		}
		first := int(tok.Int)
		for i := 0; i < int(countTok.Int); i++ {
			offTok, err1 := rd.Next()
			genTok, err2 := rd.Next()
			kindTok, err3 := rd.Next()
			if err1 != nil || err2 != nil || err3 != nil ||
				offTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber || kindTok.Type != scanner.TokenKeyword {
				return nil, bad(offTok, "invalid entry %d in subsection %d", i, first)
			}
			num := first + i
			switch kindTok.Str {
			case "n":
				sec.entries[num] = Entry{Kind: EntryInUse, Offset: offTok.Int, Gen: int(genTok.Int)}
			case "f":
				sec.entries[num] = Entry{Kind: EntryFree, Gen: int(genTok.Int)}
			default:
				return nil, bad(kindTok, "invalid entry type %q", kindTok.Str)
			}
		}
	}
	obj, err := rd.ReadObject()
	if err != nil {
		return nil, pdferr.AtOffset(pdferr.TrailerNotFound, "xref", off, fmt.Errorf("unreadable trailer: %w", err))
	}
	trailer, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, pdferr.AtOffset(pdferr.TrailerNotFound, "xref", off, fmt.Errorf("trailer is a %s", obj.Type()))
	}
	sec.trailer = trailer
	return sec, nil
}
