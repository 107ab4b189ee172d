package escpos

// Line is one printed line with the style in effect when it was emitted.
type Line struct {
	Text  string
	Align Align
	Bold  bool
	Size  Size
}

// Decode replays a stream produced by Builder and returns its printed lines.
// Unknown control bytes are skipped. Feeds produce empty lines; the trailing
// cut is not represented.
func Decode(stream []byte) []Line {
	var (
		lines []Line
		cur   []byte
		state Line
	)
	flush := func() {
		l := state
		l.Text = string(cur)
		lines = append(lines, l)
		cur = cur[:0]
	}

	for i := 0; i < len(stream); i++ {
		c := stream[i]
		switch {
		case c == ESC && i+1 < len(stream):
			switch stream[i+1] {
			case '@':
				state = Line{}
				i++
			case 'a':
				if i+2 < len(stream) {
					state.Align = Align(stream[i+2])
				}
				i += 2
			case 'E':
				if i+2 < len(stream) {
					state.Bold = stream[i+2] != 0
				}
				i += 2
			default:
				i++
			}
		case c == GS && i+1 < len(stream):
			switch stream[i+1] {
			case '!':
				if i+2 < len(stream) {
					state.Size = Size(stream[i+2])
				}
				i += 2
			case 'V':
				if i+2 < len(stream) && (stream[i+2] == 65 || stream[i+2] == 66) {
					i += 3
				} else {
					i += 2
				}
			default:
				i++
			}
		case c == LF:
			flush()
		default:
			cur = append(cur, c)
		}
	}
	if len(cur) > 0 {
		flush()
	}
	return lines
}

// Text returns the printed text of a stream, one entry per line.
func Text(stream []byte) []string {
	decoded := Decode(stream)
	out := make([]string, len(decoded))
	for i, l := range decoded {
		out[i] = l.Text
	}
	return out
}
