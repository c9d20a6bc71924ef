//go:build !no_automation

package automation

import (
	"context"
	"math"
	"time"

	lua "github.com/yuin/gopher-lua"

	"thread-go-home/internal/codes"
	"thread-go-home/internal/device"
	"thread-go-home/internal/wire"
)

// maxHandlersPerScript caps on() registrations per script.
const maxHandlersPerScript = 100

// settingTimeout bounds device.set.
const settingTimeout = 5 * time.Second

// registerDeviceModule installs the globals on, after and log and the
// device table in L.
func registerDeviceModule(L *lua.LState, vm *scriptVM, e *Engine) {
	L.SetGlobal("on", L.NewFunction(func(L *lua.LState) int { return luaOn(L, vm) }))
	L.SetGlobal("after", L.NewFunction(func(L *lua.LState) int { return luaAfter(L, vm, e) }))
	L.SetGlobal("log", L.NewFunction(func(L *lua.LState) int { return luaLog(L, vm, e) }))

	mod := L.NewTable()
	mod.RawSetString("status", L.NewFunction(func(L *lua.LState) int { return deviceStatus(L, e) }))
	mod.RawSetString("name", L.NewFunction(func(L *lua.LState) int { return deviceName(L, e) }))
	mod.RawSetString("kind", L.NewFunction(func(L *lua.LState) int { return deviceKind(L, e) }))
	mod.RawSetString("reading", L.NewFunction(func(L *lua.LState) int { return deviceReading(L, e) }))
	mod.RawSetString("measurement", L.NewFunction(func(L *lua.LState) int { return deviceMeasurement(L, e) }))
	mod.RawSetString("list", L.NewFunction(func(L *lua.LState) int { return deviceList(L, e) }))
	mod.RawSetString("set", L.NewFunction(func(L *lua.LState) int { return deviceSet(L, vm, e) }))
	L.SetGlobal("device", mod)
}

// on(event, fn) or on(event, serial, fn). Event "*" matches every type.
func luaOn(L *lua.LState, vm *scriptVM) int {
	h := luaEventHandler{eventType: L.CheckString(1)}
	if L.GetTop() >= 3 {
		h.serial = checkSerial(L, 2)
		h.fn = L.CheckFunction(3)
	} else {
		h.fn = L.CheckFunction(2)
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(vm.handlers) >= maxHandlersPerScript {
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	return 0
}

// after(seconds, fn) runs fn on the script's VM once the delay has passed.
func luaAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}
		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
				e.logger.Error("after callback error", "id", vm.id, "err", err)
			}
		}:
		default:
			e.logger.Warn("after: command channel full", "id", vm.id)
		}
	}()
	return 0
}

func luaLog(L *lua.LState, vm *scriptVM, e *Engine) int {
	msg := L.CheckString(1)
	if vm.logf != nil {
		vm.logf(msg)
		return 0
	}
	e.logger.Info("script log", "id", vm.id, "msg", msg)
	return 0
}

// checkSerial reads a serial number argument. Strings of 16 characters are
// hex, anything else decimal.
func checkSerial(L *lua.LState, n int) uint64 {
	serial, err := device.ParseSerial(L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return serial
}

func lookup(L *lua.LState, e *Engine) (device.Device, bool) {
	return e.hub.Registry().Get(checkSerial(L, 1))
}

// device.status(serial) returns the status name, or nil for an unknown device.
func deviceStatus(L *lua.LState, e *Engine) int {
	dev, ok := lookup(L, e)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(dev.EffectiveStatus(e.now()).String()))
	return 1
}

// device.name(serial) returns the display name, or nil.
func deviceName(L *lua.LState, e *Engine) int {
	dev, ok := lookup(L, e)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(dev.DisplayName()))
	return 1
}

// device.kind(serial) returns the device kind, or nil.
func deviceKind(L *lua.LState, e *Engine) int {
	dev, ok := lookup(L, e)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(string(dev.Kind())))
	return 1
}

// device.reading(serial, key) returns the latest reading, or nil.
func deviceReading(L *lua.LState, e *Engine) int {
	key := L.CheckString(2)
	dev, ok := lookup(L, e)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	v, ok := dev.Readings()[key]
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(v))
	return 1
}

// device.measurement(serial, type[, channel]) returns the value and unix
// time of the latest measurement of that type, or nil. The type is a
// measurement name or its numeric code.
func deviceMeasurement(L *lua.LState, e *Engine) int {
	serial := checkSerial(L, 1)
	var mt codes.MeasurementType
	switch arg := L.Get(2).(type) {
	case lua.LNumber:
		mt = codes.MeasurementTypeFromInt(clampCode(arg))
	case lua.LString:
		mt = codes.ParseMeasurementType(string(arg))
		if mt == codes.MeasurementOther {
			L.ArgError(2, "unknown measurement type "+string(arg))
			return 0
		}
	default:
		L.ArgError(2, "measurement type expected")
		return 0
	}
	anyChannel := L.Get(3) == lua.LNil
	ch := codes.SensorChannelFromInt(clampCode(L.OptNumber(3, 0)))

	ms, err := e.hub.Registry().Measurements(serial)
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	for i := len(ms) - 1; i >= 0; i-- {
		m := ms[i]
		if m.Type != mt || (!anyChannel && m.Channel != ch) {
			continue
		}
		L.Push(lua.LNumber(m.Float()))
		if m.Timestamp != nil {
			L.Push(lua.LNumber(m.Timestamp.Unix()))
		} else {
			L.Push(lua.LNil)
		}
		return 2
	}
	L.Push(lua.LNil)
	return 1
}

// clampCode narrows a Lua number to the int32 range of wire codes.
func clampCode(n lua.LNumber) int32 {
	f := math.Trunc(float64(n))
	switch {
	case math.IsNaN(f):
		return -1
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

// device.list() returns {serial, name, kind, status} for every device.
func deviceList(L *lua.LState, e *Engine) int {
	now := e.now()
	tbl := L.NewTable()
	for i, dev := range e.hub.Registry().List() {
		d := L.NewTable()
		d.RawSetString("serial", lua.LString(formatSerial(dev.Identity())))
		d.RawSetString("name", lua.LString(dev.DisplayName()))
		d.RawSetString("kind", lua.LString(string(dev.Kind())))
		d.RawSetString("status", lua.LString(dev.EffectiveStatus(now).String()))
		tbl.RawSetInt(i+1, d)
	}
	L.Push(tbl)
	return 1
}

// device.set(serial, type, channel, value) pushes a setting. The type is a
// setting name or its numeric code. It returns true, or false and a message.
func deviceSet(L *lua.LState, vm *scriptVM, e *Engine) int {
	serial := checkSerial(L, 1)
	var st codes.SettingType
	switch arg := L.Get(2).(type) {
	case lua.LNumber:
		st = codes.SettingTypeFromCode(int32(arg))
	case lua.LString:
		st = codes.ParseSettingType(string(arg))
		if st == codes.SettingUnknown {
			L.ArgError(2, "unknown setting type "+string(arg))
			return 0
		}
	default:
		L.ArgError(2, "setting type expected")
		return 0
	}
	s := wire.Setting{
		Type:    st,
		Channel: int32(L.CheckInt(3)),
		Value:   int32(L.CheckInt(4)),
	}

	ctx, cancel := context.WithTimeout(vm.ctx, settingTimeout)
	defer cancel()
	if err := e.hub.PushSetting(ctx, serial, s); err != nil {
		e.logger.Warn("device.set failed", "id", vm.id, "serial", formatSerial(serial), "err", err)
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}
