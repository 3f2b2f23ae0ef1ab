// Package runtimelog points the standard logger at a per-binary file under
// ~/.local/state/countdown.
package runtimelog

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// Dir returns the directory log files are written to.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "countdown"), nil
}

// Configure sends log output to <Dir>/<name>.log. When the file cannot be
// opened, output goes to fallback instead. The returned func closes the file.
func Configure(name string, fallback io.Writer) (path string, cleanup func()) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	dir, err := Dir()
	if err == nil {
		err = os.MkdirAll(dir, 0755)
	}
	if err != nil {
		log.SetOutput(fallback)
		return "", func() {}
	}

	path = filepath.Join(dir, name+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(fallback)
		return "", func() {}
	}

	log.SetOutput(f)
	return path, func() {
		log.SetOutput(fallback)
		_ = f.Close()
	}
}
