package main

//
// Manifest constants for the interpreter error codes.  Every fallible
// helper returns an errCode; errNone means success.  There is no
// exception unwinding: callers check the code and return early, and
// the executor owns the single print-then-return consumer
//

type errCode uint8

const (
	errNone errCode = iota
	errSyntax
	errDivZero
	errArray
	errParam
	errStack
	errResume
	errLabel
	errRunMode
	errPgOver
	errPgEmpty
	errNoLoop
	errNoEndif
	errExprDeep
	errUXNext
	errUXReturn
	errUXLoop
	errUXExit
	errUXContinue
	errUXRead

	errBreak errCode = 255
)

//
// The codes from errUXNext upward share the "Unexpected " prefix, so
// only the statement name is stored here
//

var errorText = [...]string{
	errNone:       "",
	errSyntax:     "Syntax",
	errDivZero:    "Division by 0",
	errArray:      "Array index over",
	errParam:      "Parameter",
	errStack:      "Stack overflow",
	errResume:     "Can't resume",
	errLabel:      "Label not found",
	errRunMode:    "Not in run-mode",
	errPgOver:     "PG area overflow",
	errPgEmpty:    "PG empty",
	errNoLoop:     "Loop nothing",
	errNoEndif:    "Endif not found",
	errExprDeep:   "Expr too deep",
	errUXNext:     "Next",
	errUXReturn:   "Return",
	errUXLoop:     "Loop",
	errUXExit:     "Exit",
	errUXContinue: "Continue",
	errUXRead:     "Read",
}

//
// Print an error surface line: "<Name> error[ in <line>]", or
// "Break[ in <line>]" for the break pseudo-error.  A trailing CRLF is
// always emitted so the REPL prompt lands on a fresh line
//

func (m *machine) printError(ec errCode) {

	if ec != errNone {
		if ec == errBreak {
			m.printString("\r\nBreak")
		} else {
			m.printString("\r\n")
			if ec >= errUXNext && ec <= errUXRead {
				m.printString("Unexpected ")
			}
			m.printString(errorText[ec])
			m.printString(" error")
		}

		if m.lineNumber != 0 {
			m.printString(" in ")
			m.printVal(nbInt(m.lineNumber))
		}
	}

	m.printString("\r\n")
}
