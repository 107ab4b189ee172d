// Package escpos encodes receipts into the ESC/POS byte stream understood by
// network thermal printers, and decodes such streams back into styled lines.
package escpos

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// ESC/POS Commands
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	LF  byte = 0x0A
)

// LineWidth is the column count of a 58mm/80mm printer in font A.
const LineWidth = 32

type Align byte

const (
	AlignLeft   Align = 0
	AlignCenter Align = 1
	AlignRight  Align = 2
)

// Size is the GS ! character size byte.
type Size byte

const (
	SizeNormal       Size = 0x00
	SizeDoubleHeight Size = 0x10
	SizeDouble       Size = 0x11
)

// Cut modes for GS V 66 n.
const (
	CutFeed    byte = 0
	CutPartial byte = 3
)

var (
	ruleDouble = strings.Repeat("=", LineWidth)
	ruleSingle = strings.Repeat("-", LineWidth)
)

// Builder accumulates text and control sequences.
type Builder struct {
	buf bytes.Buffer
}

func (b *Builder) Init() *Builder {
	b.buf.Write([]byte{ESC, '@'})
	return b
}

func (b *Builder) Align(a Align) *Builder {
	b.buf.Write([]byte{ESC, 'a', byte(a)})
	return b
}

func (b *Builder) Bold(on bool) *Builder {
	var e byte
	if on {
		e = 1
	}
	b.buf.Write([]byte{ESC, 'E', e})
	return b
}

func (b *Builder) Size(s Size) *Builder {
	b.buf.Write([]byte{GS, '!', byte(s)})
	return b
}

// Line writes text followed by a line feed. Text is written as UTF-8.
func (b *Builder) Line(text string) *Builder {
	b.buf.WriteString(text)
	b.buf.WriteByte(LF)
	return b
}

func (b *Builder) Feed(n int) *Builder {
	for i := 0; i < n; i++ {
		b.buf.WriteByte(LF)
	}
	return b
}

func (b *Builder) Cut(mode byte) *Builder {
	b.buf.Write([]byte{GS, 'V', 66, mode})
	return b
}

func (b *Builder) Bytes() []byte {
	return append([]byte(nil), b.buf.Bytes()...)
}

// PadLine right-aligns right against left within LineWidth columns. At least
// one space separates the halves, so long lines overflow rather than collide.
func PadLine(left, right string) string {
	spaces := LineWidth - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if spaces < 1 {
		spaces = 1
	}
	return left + strings.Repeat(" ", spaces) + right
}
