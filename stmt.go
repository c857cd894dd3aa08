package main

import (
	"github.com/danswartzendruber/avl"
)

//
// The program store: a flat byte buffer of adjacent length-prefixed
// bytecode lines ending in a zero length byte.  PROG, NEW and LOAD
// are the only writers, and none of them may run from inside Run
// mode, so execution never observes a half-written store
//

func (m *machine) programReset() {

	m.program[0] = stEOL
	m.labelsValid = false
}

//
// Stored size in bytes, length prefixes included, terminator
// excluded.  This is the snapshot payload length
//

func (m *machine) programLength() int {

	i := 0
	for i < len(m.program) {
		length := int(m.program[i])
		if length == 0 {
			break
		}
		i += length + 1
	}

	return i
}

//
// A set of wrapper routines to the AVL package, keyed by label value.
// We do this to hide the AVL interface from the interpreter code.
//
// GOTO resolves a label by scanning top-down for the first line
// opening with the target value.  The index is built from exactly that walk
// (keeping the first line on duplicate labels) and is invalidated by
// every program mutator, so a lookup and the scan cannot disagree
//

func cmpLabelKey(key any, node any) int {

	return cmpLabelItems(key.(nbInt), node.(*labelNode).label)
}

func cmpLabelNode(node1, node2 any) int {

	return cmpLabelItems(node1.(*labelNode).label, node2.(*labelNode).label)
}

func cmpLabelItems(item1, item2 nbInt) int {

	if item1 < item2 {
		return -1
	} else if item1 > item2 {
		return 1
	} else {
		return 0
	}
}

func (m *machine) labelTreeInsert(node *labelNode) {

	//
	// A non-nil return is an already-indexed label: the earlier line
	// wins, matching the scan order
	//

	avl.AvlTreeInsert(&m.labels, &node.avl, node, cmpLabelNode)
}

func (m *machine) labelTreeLookup(key nbInt) *labelNode {

	p := avl.AvlTreeLookup(m.labels, key, cmpLabelKey)
	if p != nil {
		return p.(*labelNode)
	} else {
		return nil
	}
}

func (m *machine) buildLabelIndex() {

	m.labels = nil

	i := 0
	lnum := 1

	for i < len(m.program) {
		length := int(m.program[i])
		if length == 0 {
			break
		}

		op := m.program[i+1]
		if isDecValue(op) {
			var val nbInt
			if isValueTag(op) {
				val, _ = decodeValue(m.program[i+2:], op)
			} else {
				val = nbInt(op - '0')
			}
			m.labelTreeInsert(&labelNode{label: val, pc: i, line: lnum})
		}

		i += length + 1
		lnum++
	}

	m.labelsValid = true
}

//
// Point the execution cursor at the line labeled val.  The cursor
// lands on the length byte, so the executor's top loop takes over
// exactly as if it had walked there
//

func (m *machine) findLabel(val nbInt) bool {

	if !m.labelsValid {
		m.buildLabelIndex()
	}

	n := m.labelTreeLookup(val)
	if n == nil {
		return false
	}

	m.buf = m.program[:]
	m.pc = n.pc
	m.lineNumber = n.line

	return true
}

//
// PROG: the program entry loop.  Each input line is tokenized and
// appended; '#' alone ends entry, tokenizer rejects and lines that
// would overflow the remaining area are reported and skipped, and
// lines that tokenize to nothing (blank or meta-comment) vanish.
// Entry always rewrites the store from the top
//

func (m *machine) procProg() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	if m.lineNumber != 0 {
		return errRunMode
	}

	m.labelsValid = false

	var lineBuf [codeLineSize]byte
	ptr := 0
	remain := programAreaSize - 3
	result := errNone

	for {
		line, res := m.bios.ConsoleReadLine(">", true)
		if res == lineBreak {
			result = errBreak
			break
		}
		if res == lineEOF {
			m.request = requestEnd
			break
		}

		if len(line) > 0 && line[0] == progTermChr {
			m.request = requestEnd
			break
		}

		n, ec := tokenizeLine(lineBuf[:], line)
		if ec != errNone {
			m.printError(ec)
			continue
		}

		if n <= 1 {
			continue
		}

		if n+1 > remain {
			m.printError(errPgOver)
			continue
		}

		copy(m.program[ptr:], lineBuf[:n+1])
		ptr += n + 1
		remain -= n + 1
	}

	m.program[ptr] = stEOL

	return result
}

//
// LIST: decompile the store back to text.  The emitted form
// retokenizes to the identical bytecode: decimal literals print as
// folded values, hex literals keep their 0x spelling, strings and
// comments are stored verbatim, and keyword spacing follows the
// delimiter rules the tokenizer ignores anyway
//

func (m *machine) procList() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	i := 0

	for m.program[i] != stEOL {
		i++
		first := true

		for {
			ch := m.program[i]
			i++

			if ch == stEOL {
				m.printString("\r\n")
				break
			}

			switch {
			case isValueTag(ch) && ch&valHexBit == 0:
				val, w := decodeValue(m.program[i:], ch)
				i += w
				m.printVal(val)
				if first {
					m.putChar(' ')
				}

			case isValueTag(ch):
				val, w := decodeValue(m.program[i:], ch)
				i += w
				m.printString("0x")
				m.printString(formatValue(val, true, 0))

			case ch == stString:
				m.putChar('"')
				for {
					c := m.program[i]
					i++
					m.putChar(c)
					if c == '\\' {
						m.putChar(m.program[i])
						i++
						continue
					}
					if c == stString {
						break
					}
				}

			case ch == stComment:
				m.putChar('\'')
				for m.program[i] != stEOL {
					m.putChar(m.program[i])
					i++
				}

			case ch >= tokenStart && ch <= tokenEnd:
				if !first && ch >= stspStart && ch <= stspEnd {
					m.putChar(' ')
				}
				m.printString(keywordList[ch-tokenStart])
				if ch <= stspEnd && !isDelimiter(m.program[i]) {
					m.putChar(' ')
				}

			default:
				m.putChar(ch)
			}

			first = false
		}
	}

	total := i + 1
	if total < 2 {
		total = 0
	}

	m.printString("[")
	m.printVal(nbInt(total))
	m.printString(" bytes]\r\n")

	return errNone
}

//
// The persistence adapter.  SAVE writes header plus program image to
// the block store; SAVE ! also sets the auto-run flag; SAVE 0 erases
// the header.  LOAD replaces the program area after checking the
// magic, the binary version, a plausible length and the structural
// invariants of the payload
//

func (m *machine) procSave() errCode {

	autorun := byte(0)
	erase := false

	switch m.peek() {
	case valZero:
		m.pc++
		erase = true
	case '!':
		m.pc++
		autorun = 1
	}

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	if erase {
		m.bios.EepErase(0, eepHeaderSize)
		return errNone
	}

	plen := m.programLength()
	if plen < 2 {
		return errPgEmpty
	}

	if eepHeaderSize+plen > eepromSize {
		return errPgOver
	}

	hdr := [eepHeaderSize]byte{
		eepMagic0, eepMagic1,
		versionMajor, versionMinor,
		byte(plen), byte(plen >> 8),
		autorun, 0,
	}

	m.bios.EepWrite(0, hdr[:])
	m.bios.EepWrite(eepHeaderSize, m.program[:plen])

	return errNone
}

func (m *machine) procLoad() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	if m.lineNumber != 0 {
		return errRunMode
	}

	return m.loadProgram()
}

func (m *machine) loadProgram() errCode {

	var hdr [eepHeaderSize]byte
	m.bios.EepRead(0, hdr[:])

	plen := snapshotLength(hdr[:])

	if hdr[0] != eepMagic0 || hdr[1] != eepMagic1 ||
		hdr[2] != versionMajor {
		return errPgEmpty
	}

	if plen < 2 || plen > programAreaSize-1 ||
		eepHeaderSize+plen > eepromSize {
		return errPgEmpty
	}

	m.labelsValid = false
	m.bios.EepRead(eepHeaderSize, m.program[:plen])
	m.program[plen] = stEOL

	if !validateProgram(m.program[:]) {
		m.programReset()
		return errPgEmpty
	}

	return errNone
}

func snapshotLength(hdr []byte) int {

	return int(int16(uint16(hdr[4]) | uint16(hdr[5])<<8))
}

//
// True when the block store holds a loadable snapshot flagged for
// auto-run
//

func (m *machine) snapshotAutoRun() bool {

	var hdr [eepHeaderSize]byte
	m.bios.EepRead(0, hdr[:])

	if hdr[0] != eepMagic0 || hdr[1] != eepMagic1 ||
		hdr[2] != versionMajor || hdr[6] != 1 {
		return false
	}

	plen := snapshotLength(hdr[:])

	return plen >= 2 && plen <= programAreaSize-1
}

//
// Structural check of a loaded image: every line's length byte must
// reach its EOL exactly, with no interior EOL and no value literal
// wider than the build's integer
//

func validateProgram(p []byte) bool {

	i := 0

	for {
		if i >= len(p) {
			return false
		}

		length := int(p[i])
		if length == 0 {
			return true
		}

		end := i + length + 1
		if length > codeLineSize-1 || end > len(p) {
			return false
		}

		j := i + 1
		for j < end-1 {
			ch := p[j]
			if ch == stEOL {
				return false
			}
			if isValueTag(ch) && valPayload(ch) > nbIntSize {
				return false
			}
			nj := nextOpcode(p, j)
			if nj <= j || nj > end-1 {
				return false
			}
			j = nj
		}

		if p[end-1] != stEOL {
			return false
		}

		i = end
	}
}
