// Package testpdf assembles small PDF files with correct cross-reference
// offsets for tests.
package testpdf

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
)

// Builder collects indirect objects and serialises them with an xref
// section.
type Builder struct {
	Version    string
	objs       map[int][]byte
	compressed map[int]string
}

func New() *Builder {
	return &Builder{Version: "1.7", objs: make(map[int][]byte), compressed: make(map[int]string)}
}

// Add registers "num 0 obj body endobj".
func (b *Builder) Add(num int, body string) *Builder {
	b.objs[num] = []byte(body)
	return b
}

// AddStream registers a stream object. dict holds the dictionary entries
// without the surrounding << >> and without /Length.
func (b *Builder) AddStream(num int, dict string, data []byte) *Builder {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<< %s /Length %d >>\nstream\n", dict, len(data))
	buf.Write(data)
	buf.WriteString("\nendstream")
	b.objs[num] = buf.Bytes()
	return b
}

// AddCompressed registers an object that BuildXRefStream places inside an
// object stream.
func (b *Builder) AddCompressed(num int, body string) *Builder {
	b.compressed[num] = body
	return b
}

func (b *Builder) header(buf *bytes.Buffer) {
	fmt.Fprintf(buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", b.Version)
}

func (b *Builder) nums() []int {
	nums := make([]int, 0, len(b.objs))
	for n := range b.objs {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

func (b *Builder) writeObjects(buf *bytes.Buffer, offsets map[int]int) {
	for _, n := range b.nums() {
		offsets[n] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n", n)
		buf.Write(b.objs[n])
		buf.WriteString("\nendobj\n")
	}
}

// Build returns a complete file with a classic xref table. trailerExtra is
// inserted verbatim into the trailer dictionary.
func (b *Builder) Build(root int, trailerExtra string) []byte {
	var buf bytes.Buffer
	b.header(&buf)
	offsets := make(map[int]int)
	b.writeObjects(&buf, offsets)
	size := maxKey(offsets) + 1
	xrefAt := buf.Len()
	writeTable(&buf, offsets, size, true)
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R %s >>\nstartxref\n%d\n%%%%EOF\n", size, root, trailerExtra, xrefAt)
	return buf.Bytes()
}

// Update appends an incremental update section to base containing the
// builder's objects.
func (b *Builder) Update(base []byte, root int, trailerExtra string) []byte {
	var buf bytes.Buffer
	buf.Write(base)
	if len(base) > 0 && base[len(base)-1] != '\n' {
		buf.WriteByte('\n')
	}
	offsets := make(map[int]int)
	b.writeObjects(&buf, offsets)
	prev := StartXRef(base)
	size := maxKey(offsets) + 1
	if s := prevSize(base); s > size {
		size = s
	}
	xrefAt := buf.Len()
	writeTable(&buf, offsets, size, false)
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R /Prev %d %s >>\nstartxref\n%d\n%%%%EOF\n", size, root, prev, trailerExtra, xrefAt)
	return buf.Bytes()
}

// BuildXRefStream returns a file whose cross-reference data lives in an
// uncompressed xref stream. Objects added with AddCompressed go into one
// object stream numbered objStm.
func (b *Builder) BuildXRefStream(root, objStm int) []byte {
	var buf bytes.Buffer
	b.header(&buf)
	offsets := make(map[int]int)

	var compNums []int
	for n := range b.compressed {
		compNums = append(compNums, n)
	}
	sort.Ints(compNums)
	if len(compNums) > 0 {
		var head, body bytes.Buffer
		for _, n := range compNums {
			fmt.Fprintf(&head, "%d %d ", n, body.Len())
			body.WriteString(b.compressed[n])
			body.WriteByte('\n')
		}
		first := head.Len()
		b.AddStream(objStm, fmt.Sprintf("/Type /ObjStm /N %d /First %d", len(compNums), first), append(head.Bytes(), body.Bytes()...))
	}
	b.writeObjects(&buf, offsets)

	xrefNum := maxKey(offsets) + 1
	for _, n := range compNums {
		if n >= xrefNum {
			xrefNum = n + 1
		}
	}
	size := xrefNum + 1
	xrefAt := buf.Len()
	offsets[xrefNum] = xrefAt

	// W [1 4 2]
	var rows bytes.Buffer
	index := map[int]int{}
	for i, n := range compNums {
		index[n] = i
	}
	for n := 0; n < size; n++ {
		if off, ok := offsets[n]; ok {
			rows.Write([]byte{1, byte(off >> 24), byte(off >> 16), byte(off >> 8), byte(off), 0, 0})
			continue
		}
		if i, ok := index[n]; ok {
			rows.Write([]byte{2, byte(objStm >> 24), byte(objStm >> 16), byte(objStm >> 8), byte(objStm), byte(i >> 8), byte(i)})
			continue
		}
		rows.Write([]byte{0, 0, 0, 0, 0, 0xff, 0xff})
	}
	fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 2] /Root %d 0 R /Length %d >>\nstream\n", xrefNum, size, root, rows.Len())
	buf.Write(rows.Bytes())
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefAt)
	return buf.Bytes()
}

func writeTable(buf *bytes.Buffer, offsets map[int]int, size int, full bool) {
	buf.WriteString("xref\n")
	if full {
		fmt.Fprintf(buf, "0 %d\n", size)
		for n := 0; n < size; n++ {
			if off, ok := offsets[n]; ok {
				fmt.Fprintf(buf, "%010d 00000 n \n", off)
			} else {
				buf.WriteString("0000000000 65535 f \n")
			}
		}
		return
	}
	nums := make([]int, 0, len(offsets))
	for n := range offsets {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", nums[i], j-i+1)
		for k := i; k <= j; k++ {
			fmt.Fprintf(buf, "%010d 00000 n \n", offsets[nums[k]])
		}
		i = j + 1
	}
}

func maxKey(m map[int]int) int {
	max := 0
	for k := range m {
		if k > max {
			max = k
		}
	}
	return max
}

// StartXRef returns the offset recorded after the last startxref keyword.
func StartXRef(data []byte) int {
	i := bytes.LastIndex(data, []byte("startxref"))
	if i < 0 {
		return -1
	}
	fields := bytes.Fields(data[i+len("startxref"):])
	if len(fields) == 0 {
		return -1
	}
	n, err := strconv.Atoi(string(fields[0]))
	if err != nil {
		return -1
	}
	return n
}

func prevSize(data []byte) int {
	i := bytes.LastIndex(data, []byte("/Size "))
	if i < 0 {
		return 0
	}
	fields := bytes.Fields(data[i+len("/Size "):])
	if len(fields) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(string(fields[0]))
	return n
}
