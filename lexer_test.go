package main

import (
	"bytes"
	"strings"
	"testing"
)

func tokBytes(t *testing.T, src string) []byte {

	t.Helper()

	var buf [codeLineSize]byte

	n, ec := tokenizeLine(buf[:], src)
	if ec != errNone {
		t.Fatalf("tokenize %q: error %d", src, ec)
	}

	return append([]byte{}, buf[1:1+n]...)
}

func tokError(t *testing.T, src string) errCode {

	t.Helper()

	var buf [codeLineSize]byte

	_, ec := tokenizeLine(buf[:], src)
	if ec == errNone {
		t.Fatalf("tokenize %q: expected an error", src)
	}

	return ec
}

//
// Every literal is emitted in its smallest form: an inline digit for
// 0..9, otherwise the narrowest two's-complement payload
//

func TestLiteralCompactness(t *testing.T) {

	cases := []struct {
		src  string
		want []byte
	}{
		{"?0", []byte{stPrint, '0', stEOL}},
		{"?5", []byte{stPrint, '5', stEOL}},
		{"?10", []byte{stPrint, 0x08, 10, stEOL}},
		{"?127", []byte{stPrint, 0x08, 127, stEOL}},
		{"?128", []byte{stPrint, 0x09, 0x80, 0x00, stEOL}},
		{"?-128", []byte{stPrint, 0x08, 0x80, stEOL}},
		{"?-129", []byte{stPrint, 0x09, 0x7f, 0xff, stEOL}},
		{"?32767", []byte{stPrint, 0x09, 0xff, 0x7f, stEOL}},
		{"?0x1F", []byte{stPrint, 0x0c, 0x1f, stEOL}},
		{"?0xFFFF", []byte{stPrint, 0x0c, 0xff, stEOL}},
		{"?0xFF80", []byte{stPrint, 0x0c, 0x80, stEOL}},
		{"?0x100", []byte{stPrint, 0x0d, 0x00, 0x01, stEOL}},
	}

	for _, c := range cases {
		got := tokBytes(t, c.src)
		if !bytes.Equal(got, c.want) {
			t.Errorf("%q -> % x, want % x", c.src, got, c.want)
		}
	}
}

//
// Only unary signs fold into the literal
//

func TestSignFolding(t *testing.T) {

	cases := []struct {
		src  string
		want []byte
	}{
		{"?1-1", []byte{stPrint, '1', '-', '1', stEOL}},
		{"A=-5", []byte{'A', '=', 0x08, 0xfb, stEOL}},
		{"A=2-1", []byte{'A', '=', '2', '-', '1', stEOL}},
		{"A=B-1", []byte{'A', '=', 'B', '-', '1', stEOL}},
		{"A=(1)-2", []byte{'A', '=', '(', '1', ')', '-', '2', stEOL}},
		{"@[2]-3", []byte{stArray, '[', '2', ']', '-', '3', stEOL}},
		{"A=1+-2", []byte{'A', '=', '1', '+', 0x08, 0xfe, stEOL}},
		{"FOR I=1 TO -3",
			[]byte{stFor, 'I', '=', '1', stTo, 0x08, 0xfd, stEOL}},
	}

	for _, c := range cases {
		got := tokBytes(t, c.src)
		if !bytes.Equal(got, c.want) {
			t.Errorf("%q -> % x, want % x", c.src, got, c.want)
		}
	}
}

func TestKeywordMatching(t *testing.T) {

	cases := []struct {
		src  string
		want []byte
	}{
		{"PRINT 1", []byte{stPrint, '1', stEOL}},
		{"print 1", []byte{stPrint, '1', stEOL}},
		{"? 1", []byte{stPrint, '1', stEOL}},
		{"ELSEIF", []byte{stElseif, stEOL}},
		{"ELSE", []byte{stElse, stEOL}},
		{"? INP(1)", []byte{stPrint, funcInp, '(', '1', ')', stEOL}},
		{"INPUT A", []byte{stInput, 'A', stEOL}},
		{"IF A THEN END",
			[]byte{stIf, 'A', stThen, stEnd, stEOL}},
		{"a=b", []byte{'A', '=', 'B', stEOL}},
		{"AB", []byte{'A', 'B', stEOL}},
		{"? TICK", []byte{stPrint, valTick, stEOL}},
	}

	for _, c := range cases {
		got := tokBytes(t, c.src)
		if !bytes.Equal(got, c.want) {
			t.Errorf("%q -> % x, want % x", c.src, got, c.want)
		}
	}
}

func TestStringsAndComments(t *testing.T) {

	got := tokBytes(t, `? "a\"b"`)
	want := []byte{stPrint, stString, 'a', '\\', '"', 'b', stString, stEOL}
	if !bytes.Equal(got, want) {
		t.Errorf("string -> % x, want % x", got, want)
	}

	got = tokBytes(t, "'abc")
	want = []byte{stComment, 'a', 'b', 'c', stEOL}
	if !bytes.Equal(got, want) {
		t.Errorf("comment -> % x, want % x", got, want)
	}

	//
	// A meta-comment line vanishes; a trailing meta-comment is not
	// stored
	//

	var buf [codeLineSize]byte
	n, ec := tokenizeLine(buf[:], "''dropped")
	if ec != errNone || n != 1 {
		t.Errorf("meta-comment line: n=%d ec=%d", n, ec)
	}

	got = tokBytes(t, "A=1 ''note")
	want = []byte{'A', '=', '1', stEOL}
	if !bytes.Equal(got, want) {
		t.Errorf("trailing meta-comment -> % x, want % x", got, want)
	}

	if tokError(t, `? "abc`) != errSyntax {
		t.Error("unterminated string should be a syntax error")
	}
}

func TestArrayMarker(t *testing.T) {

	got := tokBytes(t, "@[1]=2")
	want := []byte{stArray, '[', '1', ']', '=', '2', stEOL}
	if !bytes.Equal(got, want) {
		t.Errorf("array -> % x, want % x", got, want)
	}

	if tokError(t, "@x=1") != errSyntax {
		t.Error("@ without [ should be a syntax error")
	}
}

func TestInvalidCharacter(t *testing.T) {

	if tokError(t, "? {") != errSyntax {
		t.Error("brace should be a syntax error")
	}
}

func TestWhitespaceSkipping(t *testing.T) {

	if !bytes.Equal(tokBytes(t, "?\t 1"), tokBytes(t, "?1")) {
		t.Error("tabs and spaces should tokenize identically")
	}

	var buf [codeLineSize]byte
	n, ec := tokenizeLine(buf[:], "   \t  ")
	if ec != errNone || n != 1 {
		t.Errorf("blank line: n=%d ec=%d", n, ec)
	}
}

func TestLineOverflow(t *testing.T) {

	line := "?" + strings.Repeat("1+", 40) + "1"

	var buf [codeLineSize]byte
	_, ec := tokenizeLine(buf[:], line)
	if ec != errPgOver {
		t.Errorf("overflow: ec=%d, want %d", ec, errPgOver)
	}
}

//
// LIST output retokenizes to the identical bytecode
//

func TestListRoundTrip(t *testing.T) {

	corpus := []string{
		"10 A=1",
		"A=-5",
		"? 0x1F",
		`? "hi\"x"`,
		"'note to keep",
		"FOR I=1 TO 10 STEP 2:NEXT",
		"IF A=1 THEN ELSE ENDIF",
		"DATA 10,20,30",
		"5 GOSUB 300",
		"? DEC(A,205) HEX(B,-4)",
	}

	lines := append([]string{"PROG"}, corpus...)
	lines = append(lines, "#", "LIST")

	b, m := runSession(t, lines)

	//
	// The transcript is prompts, the listing, and the byte count
	// trailer; everything that is not a prompt or the trailer is a
	// listed line
	//

	var listing []string
	for _, p := range strings.Split(b.out.String(), "\r\n") {
		if p == "" || p == "OK" || strings.HasPrefix(p, "[") {
			continue
		}
		listing = append(listing, p)
	}

	if len(listing) != len(corpus) {
		t.Fatalf("listing has %d lines, want %d: %q",
			len(listing), len(corpus), listing)
	}

	var rebuilt []byte
	var buf [codeLineSize]byte

	for _, l := range listing {
		n, ec := tokenizeLine(buf[:], l)
		if ec != errNone {
			t.Fatalf("retokenize %q: error %d", l, ec)
		}
		rebuilt = append(rebuilt, buf[:n+1]...)
	}

	stored := m.program[:m.programLength()]
	if !bytes.Equal(rebuilt, stored) {
		t.Errorf("round trip mismatch:\nstored  % x\nrebuilt % x",
			stored, rebuilt)
	}
}

func TestDecodeCodeLine(t *testing.T) {

	var buf [codeLineSize]byte

	n, ec := tokenizeLine(buf[:], "10 ? 0x1F")
	if ec != errNone {
		t.Fatalf("tokenize: error %d", ec)
	}

	toks := decodeCodeLine(buf[:])

	if len(toks) < 4 {
		t.Fatalf("decoded %d tokens from %d bytes", len(toks), n)
	}

	if toks[0].Name != "LEN" || toks[0].Val != nbInt(n) {
		t.Errorf("length token = %+v", toks[0])
	}

	if toks[1].Name != "VAL" || toks[1].Val != 10 {
		t.Errorf("label token = %+v", toks[1])
	}

	if toks[2].Name != "PRINT" {
		t.Errorf("keyword token = %+v", toks[2])
	}

	if toks[3].Name != "HEXVAL" || toks[3].Val != 0x1f {
		t.Errorf("hex token = %+v", toks[3])
	}

	if toks[len(toks)-1].Name != "EOL" {
		t.Errorf("last token = %+v", toks[len(toks)-1])
	}
}
