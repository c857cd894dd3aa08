package main

import (
	"strings"
	"testing"
)

//
// PROG behavior: a line that would overflow the remaining area is
// rejected with a printed error and entry continues
//

func TestProgOverflowRejectsLine(t *testing.T) {

	big := "'" + strings.Repeat("a", 60)

	lines := []string{"PROG"}
	for i := 0; i < 13; i++ {
		lines = append(lines, big)
	}
	lines = append(lines, "#", "LIST")

	b, m := runSession(t, lines)
	out := b.out.String()

	expectContains(t, out, "PG area overflow error")
	expectContains(t, out, "[757 bytes]")

	if m.programLength() != 756 {
		t.Errorf("program length %d, want 756", m.programLength())
	}
}

func TestProgDropsEmptyLines(t *testing.T) {

	_, m := runSession(t, []string{
		"PROG",
		"",
		"   ",
		"''meta comment",
		"? 1",
		"#",
	})

	//
	// Only the PRINT line is stored
	//

	if m.programLength() != 4 {
		t.Errorf("program length %d, want 4", m.programLength())
	}
}

func TestProgRejectReportsAndContinues(t *testing.T) {

	out := sessionOutput(t, []string{
		"PROG",
		"? {",
		"? 2",
		"#",
		"RUN",
	})

	expectContains(t, out, "Syntax error")
	expectSuffix(t, out, "2\r\nOK\r\n")
}

func TestProgBreakKeepsEntered(t *testing.T) {

	out := sessionOutput(t, []string{
		"PROG",
		"? 4",
		"\x03",
		"RUN",
	})

	expectContains(t, out, "Break\r\n")
	expectSuffix(t, out, "4\r\nOK\r\n")
}

//
// The persistence adapter
//

func TestSaveLoadRoundTrip(t *testing.T) {

	b, _ := runSession(t, []string{
		"PROG",
		"10 A=1",
		"? A+1",
		"#",
		"SAVE",
		"NEW",
		"LIST",
		"LOAD",
		"RUN",
	})

	out := b.out.String()

	expectContains(t, out, "[0 bytes]")
	expectSuffix(t, out, "2\r\nOK\r\n")

	if b.eep[0] != eepMagic0 || b.eep[1] != eepMagic1 {
		t.Errorf("snapshot magic = % x", b.eep[:2])
	}

	if b.eep[6] != 0 {
		t.Error("plain SAVE should not set the auto-run flag")
	}
}

func TestSaveEmptyProgram(t *testing.T) {

	out := sessionOutput(t, []string{"SAVE"})

	expectContains(t, out, "PG empty error")
}

func TestSaveEraseHeader(t *testing.T) {

	b, _ := runSession(t, []string{
		"PROG",
		"? 1",
		"#",
		"SAVE",
		"SAVE 0",
		"LOAD",
	})

	expectContains(t, b.out.String(), "PG empty error")

	if b.eep[0] != 0xff {
		t.Errorf("header byte 0 = %#x after SAVE 0", b.eep[0])
	}
}

func TestSaveAutoRunFlagAndBoot(t *testing.T) {

	b, _ := runSession(t, []string{
		"PROG",
		"? 8",
		"#",
		"SAVE !",
	})

	if b.eep[6] != 1 {
		t.Fatalf("auto-run flag = %d", b.eep[6])
	}

	//
	// A fresh machine against the same block store boots, waits out
	// the grace period, and runs the snapshot
	//

	b.out.Reset()
	b.sawEOF = false

	m := newMachine(b)
	basicInit(m)

	expectContains(t, b.out.String(), "8\r\n")
}

func TestAutoRunCancelledByBreak(t *testing.T) {

	b, _ := runSession(t, []string{
		"PROG",
		"? 8",
		"#",
		"SAVE !",
	})

	b.out.Reset()
	b.keys = []int{-1, -1, chrBreak}

	m := newMachine(b)
	basicInit(m)

	if strings.Contains(b.out.String(), "8\r\n") {
		t.Error("break during the grace period should cancel auto-run")
	}
}

func TestLoadRejectsCorruptImage(t *testing.T) {

	b, _ := runSession(t, []string{
		"PROG",
		"? 1",
		"#",
		"SAVE",
	})

	//
	// Smash the first line's length byte so the payload no longer
	// reaches its EOL
	//

	b.eep[eepHeaderSize] = 62

	b.out.Reset()
	b.sawEOF = false
	b.lines = []string{"LOAD"}

	m := newMachine(b)
	for !b.sawEOF {
		basicMain(m)
	}

	expectContains(t, b.out.String(), "PG empty error")
}

func TestLoadRejectsBadMagic(t *testing.T) {

	b := newTestBios("LOAD")
	m := newMachine(b)

	for !b.sawEOF {
		basicMain(m)
	}

	expectContains(t, b.out.String(), "PG empty error")
}

func TestLoadRejectsWideLiteral(t *testing.T) {

	//
	// A hand-built snapshot whose line holds a 4-byte literal: wider
	// than this build's integer, so LOAD must refuse it
	//

	b := newTestBios("LOAD")

	payload := []byte{7, 0x80, 0x0b, 1, 2, 3, 4, 0x00, 0x00}

	hdr := []byte{
		eepMagic0, eepMagic1, versionMajor, versionMinor,
		byte(len(payload) - 1), 0, 0, 0,
	}

	copy(b.eep[0:], hdr)
	copy(b.eep[eepHeaderSize:], payload)

	m := newMachine(b)
	for !b.sawEOF {
		basicMain(m)
	}

	expectContains(t, b.out.String(), "PG empty error")
}

//
// Label lookup
//

func TestLabelIndexRebuiltAfterProg(t *testing.T) {

	out := sessionOutput(t, []string{
		"PROG",
		"GOTO 5",
		"5 ? 1",
		"#",
		"RUN",
		"PROG",
		"GOTO 7",
		"7 ? 2",
		"#",
		"RUN",
	})

	expectContains(t, out, "1\r\n")
	expectSuffix(t, out, "2\r\nOK\r\n")
}

func TestGotoFromRepl(t *testing.T) {

	out := sessionOutput(t, []string{
		"PROG",
		"5 ? 9:END",
		"#",
		"GOTO 5",
	})

	expectSuffix(t, out, "9\r\nOK\r\n")
}

func TestListSpacing(t *testing.T) {

	out := sessionOutput(t, []string{
		"PROG",
		"10 FOR I=1 TO 3:NEXT",
		"#",
		"LIST",
	})

	expectContains(t, out, "10 FOR I=1 TO 3:NEXT\r\n")
}

func TestListByteCount(t *testing.T) {

	_, m := runSession(t, []string{
		"PROG",
		"? 1",
		"#",
	})

	//
	// One stored line: prefix + PRINT + '1' + EOL, plus the
	// terminator
	//

	if got := m.programLength(); got != 4 {
		t.Errorf("program length %d, want 4", got)
	}

	out := sessionOutput(t, []string{"LIST"})
	expectContains(t, out, "[0 bytes]")
}
