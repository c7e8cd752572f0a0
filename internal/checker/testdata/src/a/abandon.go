package a

import (
	"log"
	"os"
)

//trace:instrument
func Run(code int) {
	if code != 0 {
		os.Exit(code) // want `TRI020: "os".Exit exits the program \(silent\), span of Run will not be closed`
	}
}

type Loader struct {
	log *log.Logger
}

//trace:instrument(err)
func (l *Loader) Load(path string) error {
	defer func() {
		if path == "-" {
			os.Exit(1)
		}
	}()

	if path == "" {
		l.log.Fatalf("empty path") // want `TRI020: "log".Logger.Fatalf exits the program \(format\)`
	}
	if path == "/" {
		log.Fatal("root") // want `TRI020: "log".Fatal exits the program`
	}
	return nil
}

func NotInstrumented() {
	os.Exit(2)
}
