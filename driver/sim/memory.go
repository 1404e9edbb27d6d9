package sim

import (
	"unsafe"

	"github.com/fxnlabs/cudabind/driver"
)

func newAllocation(addr uint64, size int64) *allocation {
	// Backed by uint64 words so every element view is naturally aligned.
	words := make([]uint64, (size+7)/8)
	var data []byte
	if len(words) > 0 {
		data = unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
	}
	return &allocation{addr: addr, data: data}
}

func (d *Driver) MemAlloc(size int64) driver.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready() != driver.StatusSuccess || size < 0 {
		return 0
	}
	if d.used+size > d.opts.MemoryLimit {
		d.log.Debug("simulated allocation exceeds memory limit")
		return 0
	}
	a := newAllocation(d.nextAddr, size)
	span := uint64(size)
	if span == 0 {
		span = 1
	}
	d.nextAddr += (span + addressAlign - 1) / addressAlign * addressAlign
	d.used += size
	return d.newHandle(a)
}

func (d *Driver) MemFree(buf driver.Handle) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.objects[buf].(*allocation)
	if !ok {
		return StatusInvalidHandle
	}
	d.used -= int64(len(a.data))
	delete(d.objects, buf)
	return driver.StatusSuccess
}

func (d *Driver) BufferPtr(buf driver.Handle) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.objects[buf].(*allocation)
	if !ok {
		return 0
	}
	return int64(a.addr)
}

// lookup must be called with d.mu held.
func (d *Driver) lookup(h driver.Handle, size int64) (*allocation, driver.Status) {
	if st := d.ready(); st != driver.StatusSuccess {
		return nil, st
	}
	a, ok := d.objects[h].(*allocation)
	if !ok {
		return nil, StatusInvalidHandle
	}
	if size < 0 || size > int64(len(a.data)) {
		return nil, StatusInvalidValue
	}
	return a, driver.StatusSuccess
}

// find returns the allocation holding [addr, addr+n). It must be called with d.mu held.
func (d *Driver) find(addr uint64, n int) (*allocation, bool) {
	for _, obj := range d.objects {
		a, ok := obj.(*allocation)
		if !ok {
			continue
		}
		if addr >= a.addr && addr+uint64(n) <= a.addr+uint64(len(a.data)) {
			return a, true
		}
	}
	return nil, false
}

func (d *Driver) htod(dst driver.Handle, src unsafe.Pointer, size int64) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, st := d.lookup(dst, size)
	if st != driver.StatusSuccess {
		return st
	}
	if size > 0 {
		copy(a.data[:size], unsafe.Slice((*byte)(src), size))
	}
	return driver.StatusSuccess
}

func (d *Driver) dtoh(dst unsafe.Pointer, src driver.Handle, size int64) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, st := d.lookup(src, size)
	if st != driver.StatusSuccess {
		return st
	}
	if size > 0 {
		copy(unsafe.Slice((*byte)(dst), size), a.data[:size])
	}
	return driver.StatusSuccess
}

func (d *Driver) dtod(dst, src driver.Handle, size int64) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	to, st := d.lookup(dst, size)
	if st != driver.StatusSuccess {
		return st
	}
	from, st := d.lookup(src, size)
	if st != driver.StatusSuccess {
		return st
	}
	copy(to.data[:size], from.data[:size])
	return driver.StatusSuccess
}

func (d *Driver) MemcpyHtoD(dst driver.Handle, src unsafe.Pointer, size int64) driver.Status {
	d.record("htod", size, false)
	return d.submit(0, func() driver.Status { return d.htod(dst, src, size) })
}

func (d *Driver) MemcpyDtoH(dst unsafe.Pointer, src driver.Handle, size int64) driver.Status {
	d.record("dtoh", size, false)
	return d.submit(0, func() driver.Status { return d.dtoh(dst, src, size) })
}

func (d *Driver) MemcpyDtoD(dst, src driver.Handle, size int64) driver.Status {
	d.record("dtod", size, false)
	return d.submit(0, func() driver.Status { return d.dtod(dst, src, size) })
}

func (d *Driver) MemcpyHtoDAsync(dst driver.Handle, src unsafe.Pointer, size int64, stream driver.Handle) driver.Status {
	d.record("htod", size, true)
	return d.submit(stream, func() driver.Status { return d.htod(dst, src, size) })
}

func (d *Driver) MemcpyDtoHAsync(dst unsafe.Pointer, src driver.Handle, size int64, stream driver.Handle) driver.Status {
	d.record("dtoh", size, true)
	return d.submit(stream, func() driver.Status { return d.dtoh(dst, src, size) })
}

func (d *Driver) MemcpyDtoDAsync(dst, src driver.Handle, size int64, stream driver.Handle) driver.Status {
	d.record("dtod", size, true)
	return d.submit(stream, func() driver.Status { return d.dtod(dst, src, size) })
}
