package main

import (
	"fmt"
)

func printUsage() {

	fmt.Println("Usage: nano-basic [-debug] [-stats] [-version]")
	fmt.Println("  -debug    dump each tokenized line before executing it")
	fmt.Println("  -stats    print CPU usage after each program run")
	fmt.Println("  -version  print the version and exit")
}

func printVersionInfo() {

	fmt.Println(nameStr, VERSION)
}
