package logging

import (
	"io"

	"go.uber.org/multierr"
)

// TeeWriter writes to every writer, even when one of them fails.
type TeeWriter struct {
	writers []io.Writer
}

func NewTeeWriter(writers ...io.Writer) *TeeWriter {
	return &TeeWriter{writers: writers}
}

func (w *TeeWriter) Write(p []byte) (int, error) {
	var err error
	for _, writer := range w.writers {
		if _, writeErr := writer.Write(p); writeErr != nil {
			err = multierr.Append(err, writeErr)
		}
	}
	if err != nil {
		return 0, err
	}
	return len(p), nil
}
