package main

import (
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/danswartzendruber/liner"
	"golang.org/x/term"
)

//
// The host services the interpreter core runs against.  The core
// treats -1 from the GPIO/ADC/PWM calls as a parameter error, a
// negative console char as "nothing pending", and expects the tick to
// be a monotonic millisecond count that may wrap at the integer width
//

type Bios interface {
	ConsolePutChar(ch byte)
	ConsoleGetChar() int
	ConsoleReadLine(prompt string, history bool) (string, int)

	TickMs() nbInt
	RandomSeed(val nbInt)
	Random(limit nbInt) nbInt

	GpioWrite(pin, value nbInt) int
	GpioRead(pin nbInt) int
	AdcRead(ch nbInt) int
	PwmSet(pin, value nbInt) int

	EepErase(addr, length int)
	EepWrite(addr int, buf []byte)
	EepRead(addr int, buf []byte)

	SystemReset()
}

//
// The terminal host.  The session terminal is held in raw mode so
// that Ctrl-C arrives in-band as 0x03 and single characters can be
// polled without blocking (a zero read deadline on stdin).  Line
// input goes through two Liner instances, one with scrollback history
// for program entry and one without for INPUT, closed in LIFO order
// so terminal state unwinds correctly
//

type terminalBios struct {
	parserLiner *liner.State
	inputLiner  *liner.State
	rawState    *term.State
	start       time.Time
	rng         *rand.Rand
	eepFilename string

	exiting  bool
	resetReq bool
}

const eepromFilename = "eeprom.bin"

func newTerminalBios() *terminalBios {

	b := &terminalBios{
		start:       time.Now(),
		eepFilename: eepromFilename,
	}

	b.RandomSeed(0)

	var err error
	b.rawState, err = term.MakeRaw(0)
	if err != nil {
		crash("Unable to set raw mode")
	}

	b.parserLiner = setupLiner(false)
	b.inputLiner = setupLiner(true)

	return b
}

//
// Restore terminal state.  The Liner instances are closed in reverse
// order of creation, then the pre-raw state comes back
//

func (b *terminalBios) cleanup() {

	cleanupLiner(&b.inputLiner)
	cleanupLiner(&b.parserLiner)

	if b.rawState != nil {
		term.Restore(0, b.rawState)
		b.rawState = nil
	}
}

func (b *terminalBios) ConsolePutChar(ch byte) {

	os.Stdout.Write([]byte{ch})
}

//
// Non-blocking single character poll.  Ctrl-D anywhere requests an
// orderly exit; it surfaces as a break so whatever is running unwinds
// first
//

func (b *terminalBios) ConsoleGetChar() int {

	os.Stdin.SetReadDeadline(time.Now())

	var p [1]byte
	n, _ := os.Stdin.Read(p[:])

	os.Stdin.SetReadDeadline(time.Time{})

	if n != 1 {
		return -1
	}

	if p[0] == asciiEOT {
		b.exiting = true
		return chrBreak
	}

	return int(p[0])
}

//
// Read a line with editing.  ^C maps to a break, ^D to end of input;
// anything else from Liner is a hard failure
//

func (b *terminalBios) ConsoleReadLine(prompt string, history bool) (string, int) {

	l := b.inputLiner
	if history {
		l = b.parserLiner
	}

	s, err := l.Prompt(prompt)

	if err != nil {
		if err == liner.ErrPromptAborted {
			return "", lineBreak
		}
		if err == io.EOF {
			b.exiting = true
			return "", lineEOF
		}
		crash("readLine error: " + err.Error())
	}

	if len(s) > rawLineSize {
		s = s[:rawLineSize]
	}

	if history && s != "" {
		l.AppendHistory(s)
	}

	return s, lineOK
}

func (b *terminalBios) TickMs() nbInt {

	return nbInt(time.Since(b.start).Milliseconds())
}

func (b *terminalBios) RandomSeed(val nbInt) {

	if val == 0 {
		b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	} else {
		b.rng = rand.New(rand.NewSource(int64(val)))
	}
}

func (b *terminalBios) Random(limit nbInt) nbInt {

	if limit <= 0 {
		return 0
	}

	return nbInt(b.rng.Intn(int(limit)))
}

//
// GPIO/ADC/PWM on a PC host: validate the pin numbering the hardware
// port accepts and report idle levels, so programs written for the
// board run unmodified
//

func (b *terminalBios) GpioWrite(pin, value nbInt) int {

	if pin < 0 || pin > 19 {
		return -1
	}

	return 0
}

func (b *terminalBios) GpioRead(pin nbInt) int {

	if pin < 0 || pin > 19 {
		return -1
	}

	return 0
}

func (b *terminalBios) AdcRead(ch nbInt) int {

	if ch < 0 || ch > 5 {
		return -1
	}

	return 0
}

func (b *terminalBios) PwmSet(pin, value nbInt) int {

	switch pin {
	case 3, 5, 6, 9, 10, 11:
		return 0
	}

	return -1
}

//
// The block store is a flat file with EEPROM semantics: reads beyond
// what was ever written yield 0xFF, erase writes 0xFF, writes land at
// their absolute address
//

func (b *terminalBios) eepClamp(addr, length int) int {

	if addr < 0 || addr >= eepromSize {
		return 0
	}

	if addr+length > eepromSize {
		length = eepromSize - addr
	}

	return length
}

func (b *terminalBios) EepErase(addr, length int) {

	length = b.eepClamp(addr, length)
	if length == 0 {
		return
	}

	buf := make([]byte, length)
	for i := range buf {
		buf[i] = 0xff
	}

	b.EepWrite(addr, buf)
}

func (b *terminalBios) EepWrite(addr int, buf []byte) {

	length := b.eepClamp(addr, len(buf))
	if length == 0 {
		return
	}

	f, err := os.OpenFile(b.eepFilename, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	f.WriteAt(buf[:length], int64(addr))
}

func (b *terminalBios) EepRead(addr int, buf []byte) {

	length := b.eepClamp(addr, len(buf))

	for i := range buf {
		buf[i] = 0xff
	}

	if length == 0 {
		return
	}

	f, err := os.Open(b.eepFilename)
	if err != nil {
		return
	}
	defer f.Close()

	f.ReadAt(buf[:length], int64(addr))
}

//
// Soft reset: the main loop tears the machine down and boots a fresh
// one
//

func (b *terminalBios) SystemReset() {

	b.resetReq = true
}
