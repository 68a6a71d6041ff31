package os

import (
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
)

func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func CheckCreateDir(path string) error {
	if path == "" || Exists(path) {
		return nil
	}
	return os.MkdirAll(path, os.ModeDir|0755)
}

// ExpectTermination returns a channel that fires on SIGINT or SIGTERM.
func ExpectTermination() chan struct{} {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{}, 1)
	go func() {
		<-signals
		done <- struct{}{}
	}()
	return done
}
