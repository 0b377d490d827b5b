// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"

	"github.com/Thermoquad/nongofit/pkg/session"
)

// iFit treadmill GATT layout
var (
	ServiceUUID, _    = bluetooth.ParseUUID("00001533-1412-efde-1523-785feabcd123")
	WriteCharUUID, _  = bluetooth.ParseUUID("00001534-1412-efde-1523-785feabcd123")
	NotifyCharUUID, _ = bluetooth.ParseUUID("00001535-1412-efde-1523-785feabcd123")
)

const (
	// notificationBacklog is how long the queue can absorb notifications
	// while the session is busy
	notificationBacklog = 5 * time.Second

	// A treadmill state arrives as four notifications
	fragmentsPerState = 4
)

// newNotificationQueue sizes the queue for notificationBacklog of full
// sequences arriving at the poll rate
func newNotificationQueue(pollInterval time.Duration) *session.Queue {
	if pollInterval <= 0 {
		return session.NewQueue(session.DefaultQueueSize)
	}
	sequences := int(notificationBacklog / pollInterval)
	return session.NewQueue(max(sequences*fragmentsPerState, session.DefaultQueueSize))
}

// errLinkLost is recorded when the adapter reports the treadmill gone
var errLinkLost = errors.New("bluetooth link lost")

// stopOnDisconnect returns a connect handler that closes q once the device at
// address disconnects. Events for other devices are ignored.
func stopOnDisconnect(q *queuedConnection, address string) func(addr string, connected bool) {
	return func(addr string, connected bool) {
		if connected || !strings.EqualFold(addr, address) {
			return
		}
		log.Warn().Str("address", address).Msg("treadmill disconnected")
		q.stop(errLinkLost)
	}
}

// Advertisement is a device seen while scanning
type Advertisement struct {
	Address   string
	Name      string
	RSSI      int16
	Treadmill bool // advertises the treadmill service
}
