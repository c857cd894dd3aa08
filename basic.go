package main

import (
	"os"

	"github.com/goforj/godump"
)

var optDebug bool
var optStats bool

func main() {

	parseArgs()

	checkTerminal()

	b := newTerminalBios()
	currentBios = b

	//
	// Restore the terminal on every exit path
	//

	defer func() {
		b.cleanup()
	}()

	//
	// The outer loop is the soft-reset boundary: RESET throws the
	// whole machine away and boots a fresh one against the same
	// console
	//

	for {
		m := newMachine(b)
		m.debug = optDebug

		basicInit(m)

		for !b.exiting && !b.resetReq {
			initClock()

			basicMain(m)

			if optStats && m.ranProgram {
				printCpuUsage(m)
				m.ranProgram = false
			}
		}

		if b.exiting {
			break
		}

		b.resetReq = false
	}
}

func parseArgs() {

	for _, arg := range os.Args[1:] {
		switch arg {
		case "-debug":
			optDebug = true

		case "-stats":
			optStats = true

		case "-version":
			printVersionInfo()
			os.Exit(0)

		default:
			printUsage()
			os.Exit(1)
		}
	}
}

//
// Boot: banner, then the auto-run check.  A snapshot flagged for
// auto-run gets a 3 second grace period during which a break cancels
// the launch
//

func basicInit(m *machine) {

	m.printString("\r\n" + nameStr + " " + VERSION + "\r\n")

	m.autoRunBoot()
}

func (m *machine) autoRunBoot() {

	if !m.snapshotAutoRun() {
		return
	}

	start := m.bios.TickMs()
	for m.bios.TickMs()-start < autoRunWaitMs {
		if m.bios.ConsoleGetChar() == chrBreak {
			return
		}
	}

	if m.loadProgram() != errNone {
		return
	}

	m.initializeVariables()
	m.lineNumber = 1
	m.buf = m.program[:]
	m.pc = 0
	m.request = requestNothing
	m.ranProgram = true

	m.interpreterMain()
}

//
// One REPL cycle: prompt, read lines until one compiles to something
// executable, execute it.  RUN hands control to the program store
// from inside the same execution loop
//

func basicMain(m *machine) {

	m.lineNumber = 0
	m.request = requestNothing

	m.printString("OK\r\n")

	for {
		line, res := m.bios.ConsoleReadLine("", true)
		if res == lineEOF {
			return
		}
		if res == lineBreak {
			m.printError(errBreak)
			return
		}

		n, ec := tokenizeLine(m.code[:], line)
		if ec != errNone {
			m.printError(ec)
			return
		}

		if n > 1 {
			if m.debug {
				dumpCodeLine(m.code[:])
			}

			m.buf = m.code[:]
			m.pc = 0

			m.interpreterMain()
			return
		}
	}
}

func dumpCodeLine(buf []byte) {

	godump.Dump(decodeCodeLine(buf))
}
