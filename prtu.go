package main

//
// Console output helpers and the PRINT machinery.  Everything the
// interpreter says goes through the bios one byte at a time, so the
// same core runs against the terminal and against a captured test
// console
//

func (m *machine) putChar(ch byte) {

	m.bios.ConsolePutChar(ch)
}

func (m *machine) printString(s string) {

	for i := 0; i < len(s); i++ {
		m.putChar(s[i])
	}
}

func (m *machine) printVal(val nbInt) {

	m.printString(formatValue(val, false, 0))
}

//
// PRINT.  Items run until a statement delimiter; expression items are
// printed bare, string items with escape processing, and the CHR/DEC/
// HEX forms do their own conversion.  ',' advances to a tab stop and
// ';' abuts items; either as the final item suppresses the newline.
// Two expression items back to back (no separator) are a syntax error
//

func (m *machine) procPrint() errCode {

	lastChar := byte(0)
	lastWasExpr := false

	for {
		ch := m.peek()
		if isDelimiter(ch) {
			if lastChar != ';' && lastChar != ',' {
				m.printString("\r\n")
			}
			return errNone
		}

		m.pc++
		lastChar = ch

		switch ch {
		case stString:
			m.printEscaped()
			lastWasExpr = false

		case ',':
			m.putChar('\t')
			lastWasExpr = false

		case ';':
			lastWasExpr = false

		case funcChr:
			val, ec := m.calcValueFunc()
			if ec != errNone {
				return ec
			}
			if nbUint(val) >= 0x100 {
				m.putChar(byte(nbUint(val) >> 8))
			}
			m.putChar(byte(val))
			lastWasExpr = false

		case funcDec, funcHex:
			s, ec := m.stringParaForm(ch == funcHex)
			if ec != errNone {
				return ec
			}
			m.printString(s)
			lastWasExpr = false

		default:
			if lastWasExpr {
				return errSyntax
			}
			m.pc--
			val, ec := m.expr()
			if ec != errNone {
				return ec
			}
			m.printVal(val)
			lastWasExpr = true
		}
	}
}

//
// DEC(e[,w]) / HEX(e[,w]): value plus optional width through the
// formatter
//

func (m *machine) stringParaForm(hex bool) (string, errCode) {

	if ec := m.chkST('('); ec != errNone {
		return "", ec
	}

	val, ec := m.expr()
	if ec != errNone {
		return "", ec
	}

	width := nbInt(0)
	if m.peek() == ',' {
		m.pc++
		width, ec = m.expr()
		if ec != errNone {
			return "", ec
		}
	}

	if ec = m.chkST(')'); ec != errNone {
		return "", ec
	}

	return formatValue(val, hex, int(width)), errNone
}

//
// Emit a stored string, decoding the C-style escapes the tokenizer
// deliberately left in place: \a \b \f \n \r \t \v \\ \' \" \?
// \xHH and \ooo.  Anything else after a backslash prints literally
//

func (m *machine) printEscaped() {

	for {
		ch := m.fetch()
		if ch == stString || ch == stEOL {
			return
		}

		if ch != '\\' {
			m.putChar(ch)
			continue
		}

		e := m.fetch()
		switch {
		case e == 'a':
			m.putChar(0x07)
		case e == 'b':
			m.putChar(0x08)
		case e == 'f':
			m.putChar(0x0c)
		case e == 'n':
			m.putChar(0x0a)
		case e == 'r':
			m.putChar(0x0d)
		case e == 't':
			m.putChar(0x09)
		case e == 'v':
			m.putChar(0x0b)

		case e == 'x':
			val := 0
			for k := 0; k < 2; k++ {
				d := hexDigitVal(m.peek())
				if d < 0 {
					break
				}
				val = val*16 + d
				m.pc++
			}
			m.putChar(byte(val))

		case e >= '0' && e <= '7':
			val := int(e - '0')
			for k := 0; k < 2; k++ {
				c := m.peek()
				if c < '0' || c > '7' {
					break
				}
				val = val*8 + int(c-'0')
				m.pc++
			}
			m.putChar(byte(val))

		default:
			m.putChar(e)
		}
	}
}

//
// The numeric formatter behind PRINT, DEC, HEX and LIST.  Digits are
// laid down right to left.  A negative width zero-pads, a positive
// width space-pads, and width 0 is just the bare value.  For decimal
// conversions a width of 100*p+w places a decimal point p digits from
// the right; the fractional digits and the point ride outside the w
// budget, so the integer field stays aligned.  Hex output is unsigned
// (two's complement digits) and never takes a point
//

func formatValue(para nbInt, hex bool, width int) string {

	var buf [16]byte

	zero := false
	if width < 0 {
		zero = true
		width = -width
	}

	dot := 0
	if width > 9 {
		dot = width / 100
		width %= 100
		if width > 10 {
			width = 10
		}
	}

	if hex {
		dot = 0
	}

	var fx, flag byte
	var val nbUint

	if para < 0 && !hex {
		fx = '-'
		flag = '-'
		val = nbUint(-para)
	} else {
		flag = ' '
		val = nbUint(para)
	}

	s := len(buf) - 2

	for {
		var ch byte

		if hex {
			ch = byte(val&0x0f) + '0'
			if ch > '9' {
				ch += 0x07
			}
			val >>= 4
		} else {
			ch = byte(val%10) + '0'
			val /= 10
		}

		buf[s] = ch
		s--

		if dot > 0 {
			dot--
			if dot == 0 {
				buf[s] = '.'
				s--
				if width > 0 {
					width--
					if width == 0 {
						break
					}
				}
			}
			continue
		}

		if width > 0 {
			width--
			if width == 0 {
				break
			}
		}

		if val == 0 {
			break
		}
	}

	if zero {
		if width == 0 && fx != 0 {
			buf[s] = flag
			return string(buf[s : len(buf)-1])
		}
		for width > 0 {
			width--
			if width == 0 && fx != 0 {
				buf[s] = flag
			} else {
				buf[s] = '0'
			}
			s--
		}
	} else {
		if fx != 0 {
			buf[s] = flag
			s--
			if width > 0 {
				width--
			}
		}
		for width > 0 {
			width--
			buf[s] = ' '
			s--
		}
	}

	return string(buf[s+1 : len(buf)-1])
}
