package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vitaminmoo/rtrk-tool/internal/config"
	"github.com/vitaminmoo/rtrk-tool/internal/protocol"

	"tinygo.org/x/bluetooth"
)

// maxValueLen is the longest attribute value ATT allows. Reads use one
// extra byte so that a value the stack could not fit is detected.
const maxValueLen = 512

// Adapter implements Transport on the host Bluetooth adapter.
type Adapter struct {
	adapter *bluetooth.Adapter

	mu      sync.Mutex
	enabled bool
	devices map[string]*gattDevice
}

// gattDevice is a connected RaceTracker with its discovered characteristics.
type gattDevice struct {
	device interface{ Disconnect() error }
	chars  map[Characteristic]*bluetooth.DeviceCharacteristic
}

// NewAdapter wraps the default host adapter.
func NewAdapter() *Adapter {
	return &Adapter{
		adapter: bluetooth.DefaultAdapter,
		devices: make(map[string]*gattDevice),
	}
}

func (a *Adapter) enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enabled {
		return nil
	}
	if err := a.adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable Bluetooth: %w", err)
	}
	a.enabled = true
	return nil
}

// Connect connects to the RaceTracker with the given address or local name
// and discovers its command and device information characteristics. The
// returned device id is the address used by Read and Write.
func (a *Adapter) Connect(ctx context.Context, target string, timeout time.Duration) (string, error) {
	if err := a.enable(); err != nil {
		return "", err
	}

	result, err := a.find(ctx, target, timeout)
	if err != nil {
		return "", err
	}
	deviceID := result.Address.String()

	// a second Connect replaces the earlier link
	if err := a.Disconnect(deviceID); err != nil {
		config.Debugf("disconnect %s: %v", deviceID, err)
	}

	config.Debugf("Connecting to %s...", deviceID)
	device, err := a.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", deviceID, err)
	}

	gd, err := discover(device)
	if err != nil {
		device.Disconnect()
		return "", err
	}

	a.mu.Lock()
	a.devices[deviceID] = gd
	a.mu.Unlock()
	return deviceID, nil
}

// find scans until a device matching target is seen. Scanning only resolves
// the address; it does not pair.
func (a *Adapter) find(ctx context.Context, target string, timeout time.Duration) (bluetooth.ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		found  bluetooth.ScanResult
		ok     bool
		doneCh = make(chan error, 1)
	)
	go func() {
		doneCh <- a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			name := result.LocalName()
			address := result.Address.String()
			if config.Verbose && name != "" {
				config.Debugf("Found: '%s' (%s)", name, address)
			}
			if strings.EqualFold(address, target) || (name != "" && strings.EqualFold(name, target)) {
				found = result
				ok = true
				adapter.StopScan()
			}
		})
	}()

	select {
	case err := <-doneCh:
		if err != nil {
			return found, fmt.Errorf("scan error: %w", err)
		}
	case <-ctx.Done():
		a.adapter.StopScan()
		<-doneCh
	}
	if !ok {
		return found, fmt.Errorf("RaceTracker %q not found", target)
	}
	return found, nil
}

func discover(device bluetooth.Device) (*gattDevice, error) {
	config.Debugf("Discovering services...")
	services, err := device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover services: %w", err)
	}

	gd := &gattDevice{
		device: device,
		chars:  make(map[Characteristic]*bluetooth.DeviceCharacteristic),
	}
	wanted := []Characteristic{CommandWrite, CommandRead, Firmware}

	for i := range services {
		svcUUID := services[i].UUID().String()
		var inService []Characteristic
		for _, w := range wanted {
			if strings.EqualFold(svcUUID, w.Service) {
				inService = append(inService, w)
			}
		}
		if len(inService) == 0 {
			continue
		}
		config.Debugf("Found service: %s", svcUUID)

		chars, err := services[i].DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to discover characteristics: %w", err)
		}
		for j := range chars {
			charUUID := chars[j].UUID().String()
			config.Debugf("Found characteristic: %s", charUUID)
			for _, w := range inService {
				if strings.EqualFold(charUUID, w.Char) {
					gd.chars[w] = &chars[j]
				}
			}
		}
	}

	if gd.chars[CommandWrite] == nil {
		return nil, errors.New("write characteristic not found")
	}
	if gd.chars[CommandRead] == nil {
		return nil, errors.New("read characteristic not found")
	}
	return gd, nil
}

func (a *Adapter) characteristic(deviceID string, c Characteristic) (*bluetooth.DeviceCharacteristic, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	gd, ok := a.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("device %s not connected", deviceID)
	}
	ch, ok := gd.chars[c]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not available on %s", c, deviceID)
	}
	return ch, nil
}

// Write writes data to a characteristic of a connected device.
func (a *Adapter) Write(ctx context.Context, deviceID string, c Characteristic, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch, err := a.characteristic(deviceID, c)
	if err != nil {
		return err
	}
	// tinygo bluetooth on Linux only implements write without response
	if _, err := ch.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return nil
}

// Read reads a characteristic of a connected device.
func (a *Adapter) Read(ctx context.Context, deviceID string, c Characteristic) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch, err := a.characteristic(deviceID, c)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, maxValueLen+1)
	n, err := ch.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}
	return readValue(buf, n)
}

// readValue returns the n bytes read into buf. A read that filled buf may
// have been cut short and is rejected.
func readValue(buf []byte, n int) ([]byte, error) {
	if n >= len(buf) {
		return nil, fmt.Errorf("read %d bytes, value longer than %d: %w", n, len(buf)-1, protocol.ErrMalformedResponse)
	}
	return buf[:n], nil
}

// Disconnect drops the connection to one device.
func (a *Adapter) Disconnect(deviceID string) error {
	a.mu.Lock()
	gd, ok := a.devices[deviceID]
	delete(a.devices, deviceID)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return gd.device.Disconnect()
}

// Close disconnects every device.
func (a *Adapter) Close() error {
	a.mu.Lock()
	ids := make([]string, 0, len(a.devices))
	for id := range a.devices {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := a.Disconnect(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
