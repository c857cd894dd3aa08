package main

import (
	"testing"
)

func TestFormatValue(t *testing.T) {

	cases := []struct {
		val   nbInt
		hex   bool
		width int
		want  string
	}{
		{0, false, 0, "0"},
		{123, false, 0, "123"},
		{-45, false, 0, "-45"},
		{-32768, false, 0, "-32768"},

		{42, false, 5, "   42"},
		{42, false, -5, "00042"},
		{-42, false, 5, "  -42"},
		{-42, false, -5, "-0042"},
		{12345, false, 3, "345"},

		{255, true, 0, "FF"},
		{-1, true, 0, "FFFF"},
		{-1, true, 4, "FFFF"},
		{-1, true, -4, "FFFF"},
		{255, true, 4, "  FF"},
		{255, true, -4, "00FF"},
		{10, true, 0, "A"},

		//
		// The hundreds digit of the width positions a decimal point;
		// fractional digits ride outside the width budget
		//

		{1234, false, 205, "  12.34"},
		{5, false, 205, "   0.05"},
		{0, false, 205, "   0.00"},
		{-1234, false, 205, " -12.34"},
		{1234, false, -205, "0012.34"},
		{1234, false, 105, " 123.4"},

		//
		// Point insertion does not apply to hex; the width is still
		// taken modulo 100
		//

		{255, true, 204, "  FF"},
	}

	for _, c := range cases {
		got := formatValue(c.val, c.hex, c.width)
		if got != c.want {
			t.Errorf("formatValue(%d, %v, %d) = %q, want %q",
				c.val, c.hex, c.width, got, c.want)
		}
	}
}

func TestParseNum(t *testing.T) {

	cases := []struct {
		src  string
		want nbInt
	}{
		{"0", 0},
		{"  42", 42},
		{"-17", -17},
		{"0x10", 16},
		{"0X10", 16},
		{"-0x10", -16},
		{"12abc", 12},
		{"", 0},
		{"abc", 0},
	}

	for _, c := range cases {
		if got := parseNum(c.src); got != c.want {
			t.Errorf("parseNum(%q) = %d, want %d", c.src, got, c.want)
		}
	}
}
