package main

//
// The executor.  interpreterMain walks bytecode a line at a time,
// dispatching statement handlers out of a table indexed by opcode.
// Handlers consume their own tokens from the shared cursor and either
// finish in place, post a request (GOTO re-enters the top loop at the
// new cursor, END unwinds), or return an error code, which the top
// loop prints before returning to the REPL
//

var statementProcs = [...]func(*machine) errCode{
	(*machine).procPrint,     // 0x80 : stPrint
	(*machine).procInput,     // 0x81 : stInput
	(*machine).procGoto,      // 0x82 : stGoto
	(*machine).procGosub,     // 0x83 : stGosub
	(*machine).procReturn,    // 0x84 : stReturn
	(*machine).procFor,       // 0x85 : stFor
	(*machine).procNext,      // 0x86 : stNext
	(*machine).procDo,        // 0x87 : stDo
	(*machine).procLoop,      // 0x88 : stLoop
	(*machine).procWhile,     // 0x89 : stWhile
	(*machine).procIf,        // 0x8a : stIf
	(*machine).procRun,       // 0x8b : stRun
	(*machine).procResume,    // 0x8c : stResume
	(*machine).procStop,      // 0x8d : stStop
	(*machine).procEnd,       // 0x8e : stEnd
	(*machine).procNew,       // 0x8f : stNew
	(*machine).procList,      // 0x90 : stList
	(*machine).procProg,      // 0x91 : stProg
	(*machine).procSave,      // 0x92 : stSave
	(*machine).procLoad,      // 0x93 : stLoad
	(*machine).procDelay,     // 0x94 : stDelay
	(*machine).procPause,     // 0x95 : stPause
	(*machine).procReset,     // 0x96 : stReset
	(*machine).procExit,      // 0x97 : stExit
	(*machine).procContinue,  // 0x98 : stContinue
	(*machine).procRandomize, // 0x99 : stRandomize
	(*machine).procData,      // 0x9a : stData
	(*machine).procRead,      // 0x9b : stRead
	(*machine).procRestore,   // 0x9c : stRestore
	(*machine).procOutp,      // 0x9d : stOutp
	(*machine).procPwm,       // 0x9e : stPwm
	(*machine).procElse,      // 0x9f : stElse
	(*machine).procElseif,    // 0xa0 : stElseif
	(*machine).procEndif,     // 0xa1 : stEndif
}

func (m *machine) interpreterMain() {

	for {

		//
		// Top of a line: the cursor sits on the length byte.  A zero
		// length is the program terminator; an END request unwinds
		// the same way
		//

		ch := m.fetch()
		if ch == stEOL || m.request == requestEnd {
			if m.lineNumber != 0 || m.request == requestEnd {
				m.clearRunState()
			}
			return
		}

		//
		// In Run mode a leading decimal literal is the line's label,
		// not code
		//

		if m.lineNumber != 0 && isDecValue(m.peek()) {
			m.skipValue()
		}

		for {
			if ec := m.checkBreak(); ec != errNone {
				m.printError(ec)
				return
			}

			m.request = requestNothing

			ch = m.fetch()
			if ch == stEOL {
				if m.lineNumber == 0 {
					return
				}
				m.lineNumber++
				break
			}

			var ec errCode

			switch {
			case ch == ' ' || ch == '\t' || ch == ':':
				// nop

			case ch == stArray:
				var pvar *nbInt
				pvar, ec = m.getArrayReference()
				if ec == errNone {
					ec = m.procLet(pvar)
				}

			case ch >= 'A' && ch <= 'Z':
				ec = m.procLet(&m.vars[ch-'A'])

			case ch == stComment:
				m.procComment()

			case ch >= stcodeStart && ch <= stcodeEnd:
				ec = statementProcs[ch-stcodeStart](m)

			default:
				ec = errSyntax
			}

			if ec != errNone {
				m.printError(ec)
				if ec != errBreak {
					m.resumePC = -1
					m.resumeLine = 0
					m.sp = 0
				}
				return
			}

			if m.request != requestNothing {
				break
			}
		}
	}
}

//
// Normal termination housekeeping: the DATA cursor, the resume
// snapshot and the control stack do not survive the run
//

func (m *machine) clearRunState() {

	m.dataPC = -1
	m.resumePC = -1
	m.resumeLine = 0
	m.sp = 0
}

//
// Break handling.  The console is polled once per dispatched opcode
// and inside every wait loop; 0x03 trips the break.  When it happens
// in Run mode the cursor and line number are snapshotted first so
// RESUME can pick up where the program stopped
//

func (m *machine) executeBreak() errCode {

	if m.lineNumber != 0 {
		m.resumePC = m.pc
		m.resumeLine = m.lineNumber
	}

	return errBreak
}

func (m *machine) checkBreak() errCode {

	if m.bios.ConsoleGetChar() == chrBreak {
		return m.executeBreak()
	}

	return errNone
}

//
// Poll for one key.  Returns -1 when nothing is pending; a break
// character turns into the break error instead of a key
//

func (m *machine) pollKey() (int, errCode) {

	ch := m.bios.ConsoleGetChar()
	if ch == chrBreak {
		return -1, m.executeBreak()
	}

	return ch, errNone
}

//
// Small cursor utilities shared by the handlers
//

func (m *machine) chkST(ch byte) errCode {

	if m.fetch() != ch {
		return errSyntax
	}

	return errNone
}

func (m *machine) checkDelimiter() errCode {

	if !isDelimiter(m.peek()) {
		return errSyntax
	}

	return errNone
}

//
// Advance the cursor past a value literal (either form)
//

func (m *machine) skipValue() {

	ch := m.fetch()
	if isValueTag(ch) {
		m.pc += valPayload(ch)
	}
}

//
// Advance an offset in buf past one opcode, stepping over value
// payloads, string bodies (honoring the backslash escape) and
// comment runs.  The offset returned sits on the next opcode; an EOL
// is never crossed
//

func nextOpcode(buf []byte, i int) int {

	if i >= len(buf) {
		return i
	}

	ch := buf[i]

	switch {
	case ch == stEOL:
		return i

	case isValueTag(ch):
		return i + 1 + valPayload(ch)

	case ch == stString:
		i++
		for i < len(buf) && buf[i] != stString && buf[i] != stEOL {
			if buf[i] == '\\' {
				i++
			}
			i++
		}
		if i < len(buf) && buf[i] == stString {
			i++
		}
		return i

	case ch == stComment:
		for i < len(buf) && buf[i] != stEOL {
			i++
		}
		return i
	}

	return i + 1
}

//
// findST: scan forward from the cursor for any of up to three target
// opcodes, skipping value payloads, strings and comments, and keeping
// a private IF depth so that targets inside nested IF/ENDIF blocks at
// a deeper level are not matched.  The scan crosses line boundaries
// (bumping *lnum) unless *lnum is 0, i.e. the REPL scratch line.
// On a hit the offset just past the found opcode is returned
//

func (m *machine) findST(st1, st2, st3 byte, lnum *int) (int, bool) {

	countIf := 0
	i := m.pc
	num := *lnum

	for {
		var ch byte

		for {
			if i >= len(m.buf) {
				return 0, false
			}
			ch = m.buf[i]
			i++

			switch {
			case isValueTag(ch):
				i += valPayload(ch)

			case ch == stComment:
				for i < len(m.buf) && m.buf[i] != stEOL {
					i++
				}
				i++
				ch = stEOL

			case ch == stString:
				for i < len(m.buf) && m.buf[i] != stString {
					if m.buf[i] == '\\' {
						i++
					}
					i++
				}
				i++

			case ch == stIf:
				countIf++

			case ch == stEndif && countIf > 0:
				countIf--

			default:
				if countIf == 0 &&
					(ch == st1 || ch == st2 || ch == st3) {
					*lnum = num
					return i, true
				}
			}

			if ch == stEOL {
				break
			}
		}

		if num == 0 {
			break
		}
		num++

		//
		// The byte after EOL is the next line's length prefix; zero
		// is the program terminator
		//

		if i >= len(m.buf) || m.buf[i] == stEOL {
			break
		}
		i++
	}

	return 0, false
}

//
// findNextLoop: like findST, but balancing loop openers against their
// terminator so EXIT, CONTINUE and a false WHILE land on the loop
// boundary at the same nesting depth.  A terminator that closes a
// nested loop may carry a trailing WHILE clause; that clause is
// skipped so its keyword is not miscounted as a fresh opener
//

func (m *machine) findNextLoop(op1, op2, term byte, lnum *int) (int, bool) {

	depth := 0
	countIf := 0
	i := m.pc
	num := *lnum

	for {
		var ch byte

		for {
			if i >= len(m.buf) {
				return 0, false
			}
			ch = m.buf[i]
			i++

			switch {
			case isValueTag(ch):
				i += valPayload(ch)

			case ch == stComment:
				for i < len(m.buf) && m.buf[i] != stEOL {
					i++
				}
				i++
				ch = stEOL

			case ch == stString:
				for i < len(m.buf) && m.buf[i] != stString {
					if m.buf[i] == '\\' {
						i++
					}
					i++
				}
				i++

			case ch == stIf:
				countIf++

			case ch == stEndif && countIf > 0:
				countIf--

			case countIf != 0:
				// ignore loop structure inside deeper IF blocks

			case ch == op1 || ch == op2:
				depth++

			case ch == term:
				if depth == 0 {
					*lnum = num
					return i, true
				}
				depth--
				for i < len(m.buf) && !isDelimiter(m.buf[i]) {
					i = nextOpcode(m.buf, i)
				}
			}

			if ch == stEOL {
				break
			}
		}

		if num == 0 {
			break
		}
		num++

		if i >= len(m.buf) || m.buf[i] == stEOL {
			break
		}
		i++
	}

	return 0, false
}

//
// Skip from offset i to the next statement delimiter, stepping over
// whole opcodes.  Used to step past a LOOP's optional WHILE clause
//

func (m *machine) skipToDelimiter(i int) int {

	for i < len(m.buf) && !isDelimiter(m.buf[i]) {
		i = nextOpcode(m.buf, i)
	}

	return i
}

//*************************************************
// Statement handlers
//*************************************************

func (m *machine) procComment() {

	for m.peek() != stEOL {
		m.pc++
	}
}

//
// GOTO and the shared jump logic.  The argument expression must
// resolve to a label; the cursor after the expression is handed back
// so GOSUB can use it as the return point
//

func (m *machine) gotoSub() (int, errCode) {

	val, ec := m.expr()
	rpc := m.pc
	if ec != errNone {
		return 0, ec
	}

	if !m.findLabel(val) {
		return 0, errLabel
	}

	m.request = requestGoto

	return rpc, errNone
}

func (m *machine) procGoto() errCode {

	_, ec := m.gotoSub()

	return ec
}

func (m *machine) procGosub() errCode {

	f, ec := m.pushStack(stGosub)
	if ec != errNone {
		return ec
	}

	rpc, ec := m.gotoSub()
	if ec != errNone {
		m.sp--
		return ec
	}

	f.retPC = rpc

	return errNone
}

//
// RETURN unwinds the control stack until the innermost GOSUB frame,
// abandoning any FOR/DO frames opened inside the subroutine
//

func (m *machine) procReturn() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	for {
		if m.sp == 0 {
			return errUXReturn
		}
		m.sp--

		f := &m.stack[m.sp]
		if f.kind == stGosub {
			m.lineNumber = f.retLine
			m.buf = m.bufferForLine(f.retLine)
			m.pc = f.retPC
			return errNone
		}
	}
}

func (m *machine) pushStack(kind byte) (*frame, errCode) {

	if m.sp >= stackNum {
		return nil, errStack
	}

	f := &m.stack[m.sp]
	f.kind = kind
	f.retPC = m.pc
	f.retLine = m.lineNumber
	m.sp++

	return f, errNone
}

func (m *machine) popStack(kind byte) *frame {

	if m.sp == 0 {
		return nil
	}
	m.sp--

	f := &m.stack[m.sp]
	if f.kind != kind {
		return nil
	}

	return f
}

func (m *machine) procFor() errCode {

	pvar, ec := m.getParameterPointer()
	if ec != errNone {
		return ec
	}

	if ec = m.chkST('='); ec != errNone {
		return ec
	}

	from, ec := m.expr()
	if ec != errNone {
		return ec
	}

	if ec = m.chkST(stTo); ec != errNone {
		return ec
	}

	limit, ec := m.expr()
	if ec != errNone {
		return ec
	}

	step := nbInt(1)
	if m.peek() == stStep {
		m.pc++
		step, ec = m.expr()
		if ec != errNone {
			return ec
		}
	}

	f, ec := m.pushStack(stFor)
	if ec != errNone {
		return ec
	}

	*pvar = from
	f.pvar = pvar
	f.limit = limit
	f.step = step

	return errNone
}

//
// NEXT.  An exact hit on the limit falls through before stepping, so
// a loop whose variable lands on the limit terminates even when the
// step would overshoot in either direction
//

func (m *machine) procNext() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	f := m.popStack(stFor)
	if f == nil {
		return errUXNext
	}

	if f.limit == *f.pvar {
		return errNone
	}

	*f.pvar += f.step
	if f.step > 0 {
		if f.limit < *f.pvar {
			return errNone
		}
	} else {
		if f.limit > *f.pvar {
			return errNone
		}
	}

	m.sp++
	m.lineNumber = f.retLine
	m.buf = m.bufferForLine(f.retLine)
	m.pc = f.retPC

	return errNone
}

//
// DO pushes a frame whose return point is the DO opcode itself: LOOP
// pops, jumps back, and DO pushes a fresh frame on re-entry
//

func (m *machine) procDo() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	f, ec := m.pushStack(stDo)
	if ec != errNone {
		return ec
	}

	f.retPC = m.pc - 1

	return errNone
}

func (m *machine) procLoop() errCode {

	f := m.popStack(stDo)
	if f == nil {
		return errUXLoop
	}

	if m.peek() == stWhile {
		m.pc++
		val, ec := m.expr()
		if ec != errNone {
			return ec
		}
		if ec = m.checkDelimiter(); ec != errNone {
			return ec
		}
		if val == 0 {
			return errNone
		}
	} else if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	m.lineNumber = f.retLine
	m.buf = m.bufferForLine(f.retLine)
	m.pc = f.retPC

	return errNone
}

//
// Pre-test WHILE.  True pushes a DO frame pointing back at the WHILE
// opcode so LOOP re-evaluates the condition; false scans to the
// matching LOOP and steps past it (and its optional clause)
//

func (m *machine) procWhile() errCode {

	top := m.pc - 1

	val, ec := m.expr()
	if ec != errNone {
		return ec
	}

	if ec = m.checkDelimiter(); ec != errNone {
		return ec
	}

	if val != 0 {
		f, ec := m.pushStack(stDo)
		if ec != errNone {
			return ec
		}
		f.retPC = top
		return errNone
	}

	lnum := m.lineNumber
	i, ok := m.findNextLoop(stDo, stWhile, stLoop, &lnum)
	if !ok {
		return errNoLoop
	}

	m.lineNumber = lnum
	m.pc = m.skipToDelimiter(i)

	return errNone
}

//
// EXIT pops the innermost loop frame and resumes past its terminator
//

func (m *machine) procExit() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	if m.sp == 0 {
		return errUXExit
	}

	f := &m.stack[m.sp-1]
	lnum := m.lineNumber

	var i int
	var ok bool

	switch f.kind {
	case stFor:
		i, ok = m.findNextLoop(stFor, stFor, stNext, &lnum)
	case stDo:
		i, ok = m.findNextLoop(stDo, stWhile, stLoop, &lnum)
	default:
		return errUXExit
	}

	if !ok {
		return errUXExit
	}

	m.sp--
	m.lineNumber = lnum
	m.pc = m.skipToDelimiter(i)

	return errNone
}

//
// CONTINUE rewinds a DO/WHILE loop to its saved opener (the opener
// re-pushes the frame), and scans forward to the matching NEXT for a
// FOR loop, leaving NEXT to do the stepping
//

func (m *machine) procContinue() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	if m.sp == 0 {
		return errUXContinue
	}

	f := &m.stack[m.sp-1]

	switch f.kind {
	case stDo:
		m.sp--
		m.lineNumber = f.retLine
		m.buf = m.bufferForLine(f.retLine)
		m.pc = f.retPC
		return errNone

	case stFor:
		lnum := m.lineNumber
		i, ok := m.findNextLoop(stFor, stFor, stNext, &lnum)
		if !ok {
			return errUXContinue
		}
		m.lineNumber = lnum
		m.pc = i - 1
		return errNone
	}

	return errUXContinue
}

//
// IF/ELSEIF/ELSE/ENDIF.  A true condition either executes the rest of
// the line (a bare value after THEN is an implicit GOTO) or, when
// false, scans at the matching depth for the next arm
//

func (m *machine) procIf() errCode {

	for {
		val, ec := m.expr()
		if ec != errNone {
			return ec
		}

		if ec = m.chkST(stThen); ec != errNone {
			return ec
		}

		if val != 0 {
			if isDecValue(m.peek()) {
				return m.procGoto()
			}
			return errNone
		}

		lnum := m.lineNumber
		i, ok := m.findST(stEndif, stElse, stElseif, &lnum)
		if !ok {
			return errNoEndif
		}

		m.lineNumber = lnum
		m.pc = i

		ch := m.buf[i-1]
		if ch == stElseif {
			continue
		}

		if ch == stElse && isDecValue(m.peek()) {
			return m.procGoto()
		}

		return errNone
	}
}

//
// ELSE/ELSEIF reached in the executed arm: everything up to the
// matching ENDIF belongs to the other arm
//

func (m *machine) procElse() errCode {

	lnum := m.lineNumber
	i, ok := m.findST(stEndif, stEndif, stEndif, &lnum)
	if !ok {
		return errNoEndif
	}

	m.lineNumber = lnum
	m.pc = i

	return errNone
}

func (m *machine) procElseif() errCode {

	return m.procElse()
}

func (m *machine) procEndif() errCode {

	return m.checkDelimiter()
}

func (m *machine) procRun() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	m.initializeVariables()
	m.lineNumber = 1
	m.buf = m.program[:]
	m.pc = 0
	m.request = requestGoto
	m.ranProgram = true

	return errNone
}

func (m *machine) procResume() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	if m.resumePC < 0 {
		return errResume
	}

	m.lineNumber = m.resumeLine
	m.buf = m.program[:]
	m.pc = m.resumePC

	return errNone
}

//
// STOP is a programmed break: same snapshot, same surface, same
// RESUME recovery
//

func (m *machine) procStop() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	return m.executeBreak()
}

func (m *machine) procEnd() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	m.request = requestEnd

	return errNone
}

func (m *machine) procNew() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	if m.lineNumber != 0 {
		return errRunMode
	}

	m.initializeVariables()
	m.programReset()

	return errNone
}

func (m *machine) procDelay() errCode {

	val, ec := m.expr()
	if ec != errNone {
		return ec
	}

	if ec = m.checkDelimiter(); ec != errNone {
		return ec
	}

	start := m.bios.TickMs()
	for m.bios.TickMs()-start < val {
		if ec := m.checkBreak(); ec != errNone {
			return ec
		}
	}

	return errNone
}

//
// PAUSE waits for (and swallows) any key
//

func (m *machine) procPause() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	for {
		ch, ec := m.pollKey()
		if ec != errNone {
			return ec
		}
		if ch >= 0 {
			return errNone
		}
	}
}

func (m *machine) procReset() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	m.bios.SystemReset()
	m.request = requestEnd

	return errNone
}

func (m *machine) procRandomize() errCode {

	val, ec := m.expr()
	if ec != errNone {
		return ec
	}

	if ec = m.checkDelimiter(); ec != errNone {
		return ec
	}

	m.bios.RandomSeed(val)

	return errNone
}

func (m *machine) procOutp() errCode {

	pin, val, ec := m.twoParams()
	if ec != errNone {
		return ec
	}

	if m.bios.GpioWrite(pin, val) != 0 {
		return errParam
	}

	return errNone
}

func (m *machine) procPwm() errCode {

	pin, val, ec := m.twoParams()
	if ec != errNone {
		return ec
	}

	if m.bios.PwmSet(pin, val) != 0 {
		return errParam
	}

	return errNone
}

func (m *machine) twoParams() (nbInt, nbInt, errCode) {

	v1, ec := m.expr()
	if ec != errNone {
		return 0, 0, ec
	}

	if ec = m.chkST(','); ec != errNone {
		return 0, 0, ec
	}

	v2, ec := m.expr()
	if ec != errNone {
		return 0, 0, ec
	}

	if ec = m.checkDelimiter(); ec != errNone {
		return 0, 0, ec
	}

	return v1, v2, errNone
}

//
// INPUT reads one console line into a variable.  A leading 0x selects
// hex; parsing stops at the first bad digit; an empty line stores 0
//

func (m *machine) procInput() errCode {

	pvar, ec := m.getParameterPointer()
	if ec != errNone {
		return ec
	}

	if ec = m.checkDelimiter(); ec != errNone {
		return ec
	}

	line, res := m.bios.ConsoleReadLine("", false)
	switch res {
	case lineBreak:
		return m.executeBreak()
	case lineEOF:
		m.request = requestEnd
		return errNone
	}

	*pvar = parseNum(line)

	return errNone
}

func parseNum(s string) nbInt {

	i := 0
	for i < len(s) && s[i] <= ' ' {
		i++
	}

	neg := false
	if i < len(s) && s[i] == '-' {
		neg = true
		i++
	}

	var val nbInt

	if i+1 < len(s) && s[i] == '0' && (s[i+1] == 'x' || s[i+1] == 'X') {
		i += 2
		for i < len(s) {
			d := hexDigitVal(s[i])
			if d < 0 {
				break
			}
			val = val*16 + nbInt(d)
			i++
		}
	} else {
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			val = val*10 + nbInt(s[i]-'0')
			i++
		}
	}

	if neg {
		val = -val
	}

	return val
}

//
// DATA is inert at runtime; its payload is skipped like a comment
// with structure
//

func (m *machine) procData() errCode {

	for !isDelimiter(m.peek()) {
		m.pc = nextOpcode(m.buf, m.pc)
	}

	return errNone
}

//
// READ detours the cursor to the DATA cursor (or the program top),
// finds the next DATA payload if not already parked on a comma,
// consumes one expression into the target, and parks the cursor for
// the next READ
//

func (m *machine) procRead() errCode {

	pvar, ec := m.getParameterPointer()
	if ec != errNone {
		return ec
	}

	if ec = m.checkDelimiter(); ec != errNone {
		return ec
	}

	savePC := m.pc
	saveBuf := m.buf

	m.buf = m.program[:]
	if m.dataPC < 0 {
		m.pc = 1
	} else {
		m.pc = m.dataPC
	}

	ec = errNone

	if m.peek() != ',' {
		lnum := 1
		i, ok := m.findST(stData, stData, stData, &lnum)
		if !ok {
			ec = errUXRead
		} else {
			m.pc = i
		}
	} else {
		m.pc++
	}

	if ec == errNone {
		var val nbInt
		val, ec = m.expr()
		if ec == errNone {
			*pvar = val
			ch := m.peek()
			if !isDelimiter(ch) && ch != ',' {
				ec = errParam
			} else {
				m.dataPC = m.pc
			}
		}
	}

	m.buf = saveBuf
	m.pc = savePC

	return ec
}

func (m *machine) procRestore() errCode {

	if ec := m.checkDelimiter(); ec != errNone {
		return ec
	}

	m.dataPC = -1

	return errNone
}

//*************************************************
// Expression evaluator
//*************************************************

//
// Four precedence tiers plus the leaf, all sharing the machine cursor
// and returning (value, error).  Every level charges the depth gauge
// on entry; blowing the cap is an error rather than a runaway
// recursion
//

func (m *machine) enterExpr() errCode {

	m.exprDepth++
	if m.exprDepth > exprDepthMax {
		m.exprDepth--
		return errExprDeep
	}

	return errNone
}

func b2i(b bool) nbInt {

	if b {
		return 1
	}

	return 0
}

//
// Tier 1: bitwise and logical connectives.  The logical forms
// evaluate both operands and squash to 0/1; they do not short-circuit
//

func (m *machine) expr() (nbInt, errCode) {

	if ec := m.enterExpr(); ec != errNone {
		return -1, ec
	}
	defer func() { m.exprDepth-- }()

	acc, ec := m.expr2()
	if ec != errNone {
		return -1, ec
	}

	for {
		var val nbInt

		ch := m.fetch()
		switch ch {
		case '&':
			if m.peek() == '&' {
				m.pc++
				val, ec = m.expr2()
				acc = b2i(acc != 0 && val != 0)
			} else {
				val, ec = m.expr2()
				acc &= val
			}

		case '|':
			if m.peek() == '|' {
				m.pc++
				val, ec = m.expr2()
				acc = b2i(acc != 0 || val != 0)
			} else {
				val, ec = m.expr2()
				acc |= val
			}

		case '^':
			val, ec = m.expr2()
			acc ^= val

		default:
			m.pc--
			return acc, errNone
		}

		if ec != errNone {
			return -1, ec
		}
	}
}

//
// Tier 2: comparisons and shifts.  The two-character forms are
// disambiguated by peeking at the next opcode
//

func (m *machine) expr2() (nbInt, errCode) {

	if ec := m.enterExpr(); ec != errNone {
		return -1, ec
	}
	defer func() { m.exprDepth-- }()

	acc, ec := m.expr3()
	if ec != errNone {
		return -1, ec
	}

	for {
		var tmp nbInt

		ch := m.fetch()
		switch ch {
		case '>':
			ch2 := m.fetch()
			if ch2 == '=' {
				tmp, ec = m.expr3()
				acc = b2i(acc >= tmp)
			} else if ch2 == ch {
				tmp, ec = m.expr3()
				acc = shiftRight(acc, tmp)
			} else {
				m.pc--
				tmp, ec = m.expr3()
				acc = b2i(acc > tmp)
			}

		case '<':
			ch2 := m.fetch()
			if ch2 == '=' {
				tmp, ec = m.expr3()
				acc = b2i(acc <= tmp)
			} else if ch2 == '>' {
				tmp, ec = m.expr3()
				acc = b2i(acc != tmp)
			} else if ch2 == ch {
				tmp, ec = m.expr3()
				acc = shiftLeft(acc, tmp)
			} else {
				m.pc--
				tmp, ec = m.expr3()
				acc = b2i(acc < tmp)
			}

		case '=':
			if m.peek() == ch {
				m.pc++
			}
			tmp, ec = m.expr3()
			acc = b2i(acc == tmp)

		case '!':
			if m.peek() != '=' {
				m.pc--
				return acc, errNone
			}
			m.pc++
			tmp, ec = m.expr3()
			acc = b2i(acc != tmp)

		default:
			m.pc--
			return acc, errNone
		}

		if ec != errNone {
			return -1, ec
		}
	}
}

//
// Tier 3: additive
//

func (m *machine) expr3() (nbInt, errCode) {

	if ec := m.enterExpr(); ec != errNone {
		return -1, ec
	}
	defer func() { m.exprDepth-- }()

	acc, ec := m.expr4()
	if ec != errNone {
		return -1, ec
	}

	for {
		var val nbInt

		ch := m.fetch()
		switch ch {
		case '+':
			val, ec = m.expr4()
			acc += val

		case '-':
			val, ec = m.expr4()
			acc -= val

		default:
			m.pc--
			return acc, errNone
		}

		if ec != errNone {
			return -1, ec
		}
	}
}

//
// Tier 4: multiplicative.  A zero divisor raises the error and leaves
// the accumulator alone
//

func (m *machine) expr4() (nbInt, errCode) {

	if ec := m.enterExpr(); ec != errNone {
		return -1, ec
	}
	defer func() { m.exprDepth-- }()

	acc, ec := m.calcValue()
	if ec != errNone {
		return -1, ec
	}

	for {
		var val nbInt

		ch := m.fetch()
		switch ch {
		case '*':
			val, ec = m.calcValue()
			acc *= val

		case '/':
			val, ec = m.calcValue()
			if ec == errNone {
				if val == 0 {
					ec = errDivZero
				} else {
					acc /= val
				}
			}

		case '%':
			val, ec = m.calcValue()
			if ec == errNone {
				if val == 0 {
					ec = errDivZero
				} else {
					acc %= val
				}
			}

		default:
			m.pc--
			return acc, errNone
		}

		if ec != errNone {
			return -1, ec
		}
	}
}

//
// The leaf: literals in both forms, variables, array cells,
// parenthesized expressions, the prefix operators, function calls and
// the system variable
//

func (m *machine) calcValue() (nbInt, errCode) {

	if ec := m.enterExpr(); ec != errNone {
		return -1, ec
	}
	defer func() { m.exprDepth-- }()

	ch := m.fetch()

	if ch >= 'A' && ch <= 'Z' {
		return m.vars[ch-'A'], errNone
	}

	if ch == stArray {
		pvar, ec := m.getArrayReference()
		if ec != errNone {
			return -1, ec
		}
		return *pvar, errNone
	}

	if ch >= '0' && ch <= '9' {
		return nbInt(ch - '0'), errNone
	}

	if isValueTag(ch) {
		if valPayload(ch) > nbIntSize {
			return -1, errSyntax
		}
		val, w := decodeValue(m.buf[m.pc:], ch)
		m.pc += w
		return val, errNone
	}

	switch ch {
	case '(':
		val, ec := m.expr()
		if ec != errNone {
			return -1, ec
		}
		if ec = m.chkST(')'); ec != errNone {
			return -1, ec
		}
		return val, errNone

	case '-':
		val, ec := m.calcValue()
		return -val, ec

	case '!':
		val, ec := m.calcValue()
		return b2i(val == 0), ec

	case '~':
		val, ec := m.calcValue()
		return ^val, ec

	case funcRnd:
		val, ec := m.calcValueFunc()
		if ec != errNone {
			return -1, ec
		}
		return m.bios.Random(val), errNone

	case funcAbs:
		val, ec := m.calcValueFunc()
		if ec != errNone {
			return -1, ec
		}
		if val < 0 {
			val = -val
		}
		return val, errNone

	case funcInp:
		val, ec := m.calcValueFunc()
		if ec != errNone {
			return -1, ec
		}
		r := m.bios.GpioRead(val)
		if r < 0 {
			return -1, errParam
		}
		return nbInt(r), errNone

	case funcAdc:
		val, ec := m.calcValueFunc()
		if ec != errNone {
			return -1, ec
		}
		r := m.bios.AdcRead(val)
		if r < 0 {
			return -1, errParam
		}
		return nbInt(r), errNone

	case funcInkey:
		val, ec := m.calcValueFunc()
		if ec != errNone {
			return -1, ec
		}
		return m.inkey(val)

	case valTick:
		return m.bios.TickMs(), errNone
	}

	return -1, errSyntax
}

//
// One parenthesized argument
//

func (m *machine) calcValueFunc() (nbInt, errCode) {

	if ec := m.chkST('('); ec != errNone {
		return -1, ec
	}

	val, ec := m.expr()
	if ec != errNone {
		return -1, ec
	}

	if ec = m.chkST(')'); ec != errNone {
		return -1, ec
	}

	return val, errNone
}

//
// INKEY(0) waits for a key; INKEY(t) polls for up to t milliseconds
// and yields -1 when nothing arrived.  Both poll the break character
//

func (m *machine) inkey(t nbInt) (nbInt, errCode) {

	if t == 0 {
		for {
			ch, ec := m.pollKey()
			if ec != errNone {
				return -1, ec
			}
			if ch >= 0 {
				return nbInt(ch), errNone
			}
		}
	}

	start := m.bios.TickMs()
	for m.bios.TickMs()-start < t {
		ch, ec := m.pollKey()
		if ec != errNone {
			return -1, ec
		}
		if ch >= 0 {
			return nbInt(ch), errNone
		}
	}

	return -1, errNone
}
