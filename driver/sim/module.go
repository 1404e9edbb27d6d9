package sim

import (
	"os"
	"regexp"
	"unsafe"

	"github.com/fxnlabs/cudabind/driver"
)

var entryPattern = regexp.MustCompile(`\.entry\s+([A-Za-z_$][\w$]*)`)

type module struct {
	entries  map[string]bool
	unloaded bool
}

type function struct {
	name   string
	module *module
}

func parseModule(image []byte) (*module, bool) {
	m := &module{entries: make(map[string]bool)}
	for _, match := range entryPattern.FindAllSubmatch(image, -1) {
		m.entries[string(match[1])] = true
	}
	return m, len(m.entries) > 0
}

func (d *Driver) loadModule(image []byte) driver.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready() != driver.StatusSuccess {
		return 0
	}
	m, ok := parseModule(image)
	if !ok {
		return 0
	}
	return d.newHandle(m)
}

func (d *Driver) ModuleLoad(path string) driver.Handle {
	image, err := os.ReadFile(path)
	if err != nil {
		d.log.Debug("simulated module load failed")
		return 0
	}
	return d.loadModule(image)
}

func (d *Driver) ModuleLoadData(image unsafe.Pointer) driver.Handle {
	if image == nil {
		return 0
	}
	n := 0
	for *(*byte)(unsafe.Add(image, n)) != 0 {
		n++
	}
	return d.loadModule(unsafe.Slice((*byte)(image), n))
}

func (d *Driver) ModuleUnload(mod driver.Handle) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.objects[mod].(*module)
	if !ok {
		return StatusInvalidHandle
	}
	m.unloaded = true
	delete(d.objects, mod)
	return driver.StatusSuccess
}

func (d *Driver) ModuleGetFunction(mod driver.Handle, name string) driver.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.objects[mod].(*module)
	if !ok || !m.entries[name] {
		return 0
	}
	return d.newHandle(&function{name: name, module: m})
}

func (d *Driver) LaunchKernel(fn driver.Handle, gridX, gridY, gridZ, blockX, blockY, blockZ, sharedMemBytes int32, stream driver.Handle, params unsafe.Pointer) driver.Status {
	d.mu.Lock()
	if st := d.ready(); st != driver.StatusSuccess {
		d.mu.Unlock()
		return st
	}
	f, ok := d.objects[fn].(*function)
	if !ok || f.module.unloaded {
		d.mu.Unlock()
		return StatusInvalidHandle
	}
	k, ok := d.kernels[f.name]
	d.mu.Unlock()
	if !ok {
		return StatusNotSupported
	}
	if gridX < 1 || gridY < 1 || gridZ < 1 || blockX < 1 || blockY < 1 || blockZ < 1 || sharedMemBytes < 0 {
		return StatusInvalidValue
	}
	if len(k.Params) > 0 && params == nil {
		return StatusInvalidValue
	}

	// Parameter values are captured at launch time, so the caller may reuse
	// or release the argument block as soon as this call returns.
	args := make([][]byte, len(k.Params))
	for i, width := range k.Params {
		slot := *(*unsafe.Pointer)(unsafe.Add(params, i*int(unsafe.Sizeof(uintptr(0)))))
		if slot == nil {
			return StatusInvalidValue
		}
		args[i] = append([]byte(nil), unsafe.Slice((*byte)(slot), width)...)
	}
	e := &Exec{
		Grid:      [3]int{int(gridX), int(gridY), int(gridZ)},
		Block:     [3]int{int(blockX), int(blockY), int(blockZ)},
		SharedMem: int(sharedMemBytes),
		args:      args,
		d:         d,
	}
	return d.submit(stream, func() driver.Status {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := k.Run(e); err != nil {
			d.log.Debug("simulated kernel failed")
			return StatusLaunchFailed
		}
		return driver.StatusSuccess
	})
}
