package cuda

import (
	"fmt"

	"github.com/fxnlabs/cudabind/driver"
	"go.uber.org/zap"
)

// Device is one physical or logical compute device opened by index.
// Opening the same index twice yields two independent Device values.
type Device struct {
	handle driver.Handle
	index  int
}

// CreateSystemDevice opens device index.
func CreateSystemDevice(index int) (*Device, error) {
	d, err := Bound()
	if err != nil {
		return nil, err
	}
	detail := fmt.Sprintf("device %d", index)
	if index < 0 {
		return nil, nullHandle("create_system_device", ErrResourceNotFound, detail)
	}
	h := d.CreateSystemDevice(int32(index))
	if h.Null() {
		return nil, nullHandle("create_system_device", ErrResourceNotFound, detail)
	}
	log().Debug("device opened", zap.Int("index", index), zap.Stringer("handle", h))
	return &Device{handle: h, index: index}, nil
}

func (d *Device) Handle() driver.Handle { return d.handle }

func (d *Device) Index() int { return d.index }

// Name returns the driver's human-readable identifier for the device.
func (d *Device) Name() (string, error) {
	drv, err := Bound()
	if err != nil {
		return "", err
	}
	return drv.DeviceName(d.handle), nil
}

// CreateContext creates a context bound to this device.
func (d *Device) CreateContext() (*Context, error) {
	return CreateContext(d)
}

// Release returns the device handle to the driver.
func (d *Device) Release() error {
	drv, err := Bound()
	if err != nil {
		return err
	}
	drv.ReleaseObject(d.handle)
	log().Debug("device released", zap.Stringer("handle", d.handle))
	return nil
}
