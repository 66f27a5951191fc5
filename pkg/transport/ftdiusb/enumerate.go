package ftdiusb

import (
	"fmt"

	"github.com/google/gousb"
)

// CableModel names a known USB-serial cable/cradle that speaks to at least
// one supported dive computer family.
type CableModel string

const (
	CableFTDI        CableModel = "ftdi-generic"  // FT232R-based generic cable
	CableOSTCBluetooth CableModel = "ostc-3-usb"  // Heinrichs Weikamp OSTC USB/BT bridge
	CableSuuntoUSB   CableModel = "suunto-usb"     // Suunto PC interface II/III
)

// KnownCable is one (VID, PID) pair this package recognizes, paired with
// the cable model it identifies.
type KnownCable struct {
	Model    CableModel
	VID, PID gousb.ID
}

// KnownCables lists the USB-serial adapters the supported families ship
// with. Vendor/product IDs are taken from libdivecomputer's udev rules
// (driver/udev), which enumerate the same cables by the same identifiers.
var KnownCables = []KnownCable{
	{Model: CableFTDI, VID: 0x0403, PID: 0x6001},          // generic FT232R
	{Model: CableOSTCBluetooth, VID: 0x0403, PID: 0xF460}, // OSTC 3/4 USB
	{Model: CableSuuntoUSB, VID: 0x1493, PID: 0x0030},      // Suunto PC interface
}

// DetectedDevice describes one connected cable found during enumeration.
type DetectedDevice struct {
	Model      CableModel
	VID, PID   gousb.ID
	BusNumber  int
	DeviceAddr int
}

// Enumerate lists every connected USB device matching a known cable's
// (VID, PID). It opens and immediately closes each candidate only long
// enough to read its bus address; callers reopen the one they choose via
// Open.
func Enumerate() ([]DetectedDevice, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	byVIDPID := make(map[[2]gousb.ID]CableModel, len(KnownCables))
	for _, kc := range KnownCables {
		byVIDPID[[2]gousb.ID{kc.VID, kc.PID}] = kc.Model
	}

	var found []DetectedDevice
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, known := byVIDPID[[2]gousb.ID{desc.Vendor, desc.Product}]
		return known
	})
	if err != nil {
		return nil, fmt.Errorf("ftdiusb: enumerate: %w", err)
	}
	for _, d := range devices {
		model := byVIDPID[[2]gousb.ID{d.Desc.Vendor, d.Desc.Product}]
		found = append(found, DetectedDevice{
			Model:      model,
			VID:        d.Desc.Vendor,
			PID:        d.Desc.Product,
			BusNumber:  d.Desc.Bus,
			DeviceAddr: d.Desc.Address,
		})
		d.Close()
	}
	return found, nil
}
