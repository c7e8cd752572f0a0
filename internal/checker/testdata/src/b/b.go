package b

// Halt stops the server process.
func Halt() {}

func Serve(addr string) {
	if addr == "" {
		Halt() // want `TRI020: "b".Halt exits the program \(silent\), span of Serve will not be closed`
	}
}

func Other() {
	Halt()
}
