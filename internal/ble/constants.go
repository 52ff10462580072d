package ble

const (
	// RaceTrackerServiceUUID is the RaceTracker command service (fff0)
	RaceTrackerServiceUUID = "0000FFF0-0000-1000-8000-00805F9B34FB"

	// WriteCharUUID is the characteristic commands are written to (fff1)
	WriteCharUUID = "0000FFF1-0000-1000-8000-00805F9B34FB"

	// ReadCharUUID is the characteristic command replies are read from (fff2)
	ReadCharUUID = "0000FFF2-0000-1000-8000-00805F9B34FB"

	// DeviceInfoServiceUUID is the standard device information service (180a)
	DeviceInfoServiceUUID = "0000180A-0000-1000-8000-00805F9B34FB"

	// FirmwareCharUUID is the firmware revision string characteristic (2a26)
	FirmwareCharUUID = "00002A26-0000-1000-8000-00805F9B34FB"
)

// Characteristic addresses one GATT characteristic within a service.
type Characteristic struct {
	Service string
	Char    string
}

var (
	// CommandWrite is where commands are written.
	CommandWrite = Characteristic{Service: RaceTrackerServiceUUID, Char: WriteCharUUID}
	// CommandRead is where command replies and lap updates are read.
	CommandRead = Characteristic{Service: RaceTrackerServiceUUID, Char: ReadCharUUID}
	// Firmware holds the firmware revision string.
	Firmware = Characteristic{Service: DeviceInfoServiceUUID, Char: FirmwareCharUUID}
)

func (c Characteristic) String() string {
	return c.Service + "/" + c.Char
}
