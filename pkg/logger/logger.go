package logger

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	log  zerolog.Logger
)

// L returns the process-wide logger. JSON to stdout by default, a human
// console writer when APP_ENV=dev.
func L() *zerolog.Logger {
	once.Do(func() {
		log = zerolog.New(os.Stdout).With().Timestamp().Logger()
		if os.Getenv("APP_ENV") == "dev" {
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
		}
	})
	return &log
}
