package extract

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// decodeContentText walks a decoded page content stream and collects the text
// shown by the Tj, ', " and TJ operators. Positioning operators (Td, TD, T*)
// and ET become line breaks so reading order survives for chunking.
//
// Fonts with exotic encodings degrade to their raw code points; that is
// acceptable for retrieval and keeps the decoder dependency-free.
func decodeContentText(content []byte) string {
	var out strings.Builder
	var strOperands []string
	inArray := false
	var arrayParts []string

	flushLine := func() {
		s := out.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}

	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case c == '%':
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := parseLiteralString(content, i)
			if inArray {
				arrayParts = append(arrayParts, s)
			} else {
				strOperands = append(strOperands, s)
			}
			i = next
		case c == '<':
			if i+1 < len(content) && content[i+1] == '<' {
				// Dictionary start (inline image or marked content); its
				// operands are not text.
				strOperands = strOperands[:0]
				i += 2
				continue
			}
			s, next := parseHexString(content, i)
			if inArray {
				arrayParts = append(arrayParts, s)
			} else {
				strOperands = append(strOperands, s)
			}
			i = next
		case c == '>':
			i++
		case c == '[':
			inArray = true
			arrayParts = arrayParts[:0]
			i++
		case c == ']':
			inArray = false
			i++
		case c == '/':
			// Name operand (font, tag); irrelevant for text content.
			i++
			for i < len(content) && !isPDFDelim(content[i]) && !isPDFSpace(content[i]) {
				i++
			}
		case isPDFSpace(c):
			i++
		case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
			start := i
			i++
			for i < len(content) && (content[i] == '.' || (content[i] >= '0' && content[i] <= '9')) {
				i++
			}
			if f, err := strconv.ParseFloat(string(content[start:i]), 64); err == nil && inArray {
				// Large negative kerning inside TJ acts as a word gap.
				if f <= -tjWordGap {
					arrayParts = append(arrayParts, " ")
				}
			}
		default:
			start := i
			for i < len(content) && !isPDFDelim(content[i]) && !isPDFSpace(content[i]) {
				i++
			}
			op := string(content[start:i])
			switch op {
			case "Tj":
				for _, s := range strOperands {
					out.WriteString(s)
				}
			case "'", "\"":
				flushLine()
				for _, s := range strOperands {
					out.WriteString(s)
				}
			case "TJ":
				for _, s := range arrayParts {
					out.WriteString(s)
				}
				arrayParts = arrayParts[:0]
			case "Td", "TD", "T*", "ET":
				flushLine()
			}
			strOperands = strOperands[:0]
		}
	}
	return normalizeText(out.String())
}

// tjWordGap is the TJ kerning magnitude (thousandths of an em) treated as an
// inter-word gap.
const tjWordGap = 180.0

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// parseLiteralString decodes a (...) string starting at content[i] == '('.
// It honours nested parentheses and the standard escape sequences.
func parseLiteralString(content []byte, i int) (string, int) {
	var b []byte
	depth := 0
	i++ // consume '('
	depth++
	for i < len(content) && depth > 0 {
		c := content[i]
		switch c {
		case '\\':
			i++
			if i >= len(content) {
				break
			}
			e := content[i]
			switch e {
			case 'n':
				b = append(b, '\n')
			case 'r':
				b = append(b, '\r')
			case 't':
				b = append(b, '\t')
			case 'b':
				b = append(b, '\b')
			case 'f':
				b = append(b, '\f')
			case '(', ')', '\\':
				b = append(b, e)
			case '\n':
				// line continuation: no output
			case '\r':
				if i+1 < len(content) && content[i+1] == '\n' {
					i++
				}
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for n := 0; n < 2 && i+1 < len(content) && content[i+1] >= '0' && content[i+1] <= '7'; n++ {
						i++
						v = v*8 + int(content[i]-'0')
					}
					b = append(b, byte(v))
				} else {
					b = append(b, e)
				}
			}
			i++
		case '(':
			depth++
			b = append(b, c)
			i++
		case ')':
			depth--
			if depth > 0 {
				b = append(b, c)
			}
			i++
		default:
			b = append(b, c)
			i++
		}
	}
	return decodePDFString(b), i
}

// parseHexString decodes a <...> string starting at content[i] == '<'.
func parseHexString(content []byte, i int) (string, int) {
	i++ // consume '<'
	var hexDigits []byte
	for i < len(content) && content[i] != '>' {
		c := content[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			hexDigits = append(hexDigits, c)
		}
		i++
	}
	if i < len(content) {
		i++ // consume '>'
	}
	if len(hexDigits)%2 == 1 {
		hexDigits = append(hexDigits, '0')
	}
	b := make([]byte, 0, len(hexDigits)/2)
	for j := 0; j+1 < len(hexDigits); j += 2 {
		b = append(b, hexNibble(hexDigits[j])<<4|hexNibble(hexDigits[j+1]))
	}
	return decodePDFString(b), i
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// decodePDFString maps raw string bytes to text. UTF-16BE strings carry a BOM;
// everything else is treated as a latin-1 superset, which covers
// PDFDocEncoding for the characters retrieval cares about.
func decodePDFString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		u := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

// normalizeText collapses runs of blank lines and trailing whitespace left
// behind by positioning operators.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
