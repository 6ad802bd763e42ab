package document

import "github.com/wudi/formkit/ir/raw"

// Info is the document information dictionary in decoded form.
type Info struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string
}

func (d *Document) readInfo() Info {
	dict, ok := d.Dict(get(d.trailer, "Info"))
	if !ok {
		return Info{}
	}
	text := func(key string) string {
		v, ok := d.Lookup(dict, key)
		if !ok {
			return ""
		}
		b, _ := raw.AsString(v)
		return raw.DecodeText(b)
	}
	return Info{
		Title:    text("Title"),
		Author:   text("Author"),
		Subject:  text("Subject"),
		Keywords: text("Keywords"),
		Creator:  text("Creator"),
		Producer: text("Producer"),
	}
}
