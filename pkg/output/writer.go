// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package output records decoded treadmill state.
package output

import (
	"errors"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

// Writer records treadmill state samples
type Writer interface {
	Write(state ifit.TreadmillState) error
	Close() error
}

// multiWriter fans out every sample to all writers
type multiWriter struct {
	writers []Writer
}

// MultiWriter creates a writer that duplicates its writes to all the
// provided writers. Every writer is attempted; errors are joined.
func MultiWriter(writers ...Writer) Writer {
	all := make([]Writer, 0, len(writers))
	for _, w := range writers {
		if mw, ok := w.(*multiWriter); ok {
			all = append(all, mw.writers...)
		} else if w != nil {
			all = append(all, w)
		}
	}
	return &multiWriter{writers: all}
}

func (m *multiWriter) Write(state ifit.TreadmillState) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(state); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
