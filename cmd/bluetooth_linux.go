// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"

	"github.com/Thermoquad/nongofit/pkg/ifit"
)

var adapter = bluetooth.DefaultAdapter

// BluetoothConnection subscribes to the treadmill's notify characteristic
// and writes requests to its write characteristic
type BluetoothConnection struct {
	queuedConnection
	write      bluetooth.DeviceCharacteristic
	disconnect func() error
}

func (b *BluetoothConnection) WriteFragment(f ifit.Fragment) error {
	_, err := b.write.WriteWithoutResponse(f)
	return err
}

func (b *BluetoothConnection) Close() error {
	adapter.SetConnectHandler(func(bluetooth.Device, bool) {})
	b.stop(ErrConnectionClosed)
	return b.disconnect()
}

// OpenBluetoothConnection connects to the treadmill at address (a MAC such as
// AA:BB:CC:DD:EE:FF) and subscribes to its notifications
func OpenBluetoothConnection(ctx context.Context, address string) (Connection, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable bluetooth adapter: %v", err)
	}

	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, fmt.Errorf("invalid bluetooth address %q: %v", address, err)
	}
	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}
	addr.SetRandom(true)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info().Str("address", address).Msg("connecting to treadmill")
	device, err := adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", address, err)
	}
	disconnect := func() error { return device.Disconnect() }

	services, err := device.DiscoverServices([]bluetooth.UUID{ServiceUUID})
	if err != nil || len(services) == 0 {
		disconnect()
		return nil, fmt.Errorf("treadmill service %s not found: %v", ServiceUUID, err)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{WriteCharUUID, NotifyCharUUID})
	if err != nil {
		disconnect()
		return nil, fmt.Errorf("failed to discover characteristics: %v", err)
	}

	var write, notify *bluetooth.DeviceCharacteristic
	for i := range chars {
		switch chars[i].UUID() {
		case WriteCharUUID:
			write = &chars[i]
		case NotifyCharUUID:
			notify = &chars[i]
		}
	}
	if write == nil || notify == nil {
		disconnect()
		return nil, fmt.Errorf("treadmill characteristics not found")
	}

	conn := &BluetoothConnection{
		queuedConnection: queuedConnection{queue: newNotificationQueue(config.GetDuration("request-interval"))},
		write:            *write,
		disconnect:       disconnect,
	}

	// A dropped link closes the queue, ending the session
	onDisconnect := stopOnDisconnect(&conn.queuedConnection, address)
	adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		onDisconnect(d.Address.String(), connected)
	})

	// Notifications arrive on the BLE stack's goroutine; Push copies and never blocks
	if err := notify.EnableNotifications(conn.queue.Push); err != nil {
		adapter.SetConnectHandler(func(bluetooth.Device, bool) {})
		disconnect()
		return nil, fmt.Errorf("failed to subscribe to notifications: %v", err)
	}

	log.Info().Str("address", address).Msg("subscribed to treadmill notifications")
	return conn, nil
}

// ScanAdvertisements scans until ctx is done, calling found once per device.
// Devices without the treadmill service are skipped unless all is set.
func ScanAdvertisements(ctx context.Context, all bool, found func(Advertisement)) error {
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable bluetooth adapter: %v", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			adapter.StopScan()
		case <-done:
		}
	}()

	seen := make(map[string]bool)
	err := adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		adv := Advertisement{
			Address:   result.Address.String(),
			Name:      result.LocalName(),
			RSSI:      result.RSSI,
			Treadmill: result.HasServiceUUID(ServiceUUID),
		}
		if seen[adv.Address] || (!all && !adv.Treadmill) {
			return
		}
		seen[adv.Address] = true
		found(adv)
	})
	if err != nil {
		return fmt.Errorf("scan failed: %v", err)
	}
	return nil
}
