package a

import "iter"

//trace:instrument(ret) // want `TRI009: ret requires Nothing to have results`
func Nothing() {}

//trace:instrument(err) // want `TRI008: err requires Numbers to yield error as the second value`
func Numbers() iter.Seq[int] {
	return nil
}

//trace:instrument(level = "loud") // want `TRI011: unknown level "loud"`
func Loud() {}

//trace:instrument(skip(missing)) // want `TRI003: missing is not a parameter of Skip`
func Skip(present int) {}

//trace:instrument
func Reserved(_traceSpan int) {} // want `TRI010: identifier _traceSpan is reserved`
