package codes

import "slices"

// DevType is the device type code reported in heartbeats.
type DevType uint8

const (
	DevTypeBorderRouter      DevType = 0
	DevTypeHortiLed          DevType = 1
	DevTypeHortiPlantSensor  DevType = 2
	DevTypeWeatherStation    DevType = 3
	DevTypeEnvironmentSensor DevType = 4
	DevTypeGarageDoor        DevType = 5
	DevTypeGetshopModule     DevType = 16
	DevTypeGetshopLock       DevType = 17
	DevTypeStaySerosModule   DevType = 18
	DevTypeStayIdlock        DevType = 19
	DevTypeTeLys             DevType = 20

	// DevTypeUnknown is returned by ParseDevType for names it does not know.
	DevTypeUnknown DevType = 0xFF
)

var devTypes = newTable(map[DevType]string{
	DevTypeBorderRouter:      "BorderRouter",
	DevTypeHortiLed:          "HortiLed",
	DevTypeHortiPlantSensor:  "HortiPlantSensor",
	DevTypeWeatherStation:    "WeatherStation",
	DevTypeEnvironmentSensor: "EnvironmentSensor",
	DevTypeGarageDoor:        "GarageDoor",
	DevTypeGetshopModule:     "GetshopModule",
	DevTypeGetshopLock:       "GetshopLock",
	DevTypeStaySerosModule:   "StaySerosModule",
	DevTypeStayIdlock:        "StayIdlock",
	DevTypeTeLys:             "TeLys",
})

var devTypeLabels = map[DevType]string{
	DevTypeBorderRouter:      "BorderRouter",
	DevTypeHortiLed:          "Horticulture: LED-panel",
	DevTypeHortiPlantSensor:  "Horticulture: Soil Sensor",
	DevTypeWeatherStation:    "Weather Station",
	DevTypeEnvironmentSensor: "Environment sensor",
	DevTypeGarageDoor:        "Garage door control",
	DevTypeGetshopModule:     "GetShop Module 1.5",
	DevTypeGetshopLock:       "GetShop Module 1.9",
	DevTypeStaySerosModule:   "StaySeros Module",
	DevTypeStayIdlock:        "StayIdlock",
	DevTypeTeLys:             "TeLys",
}

// DevTypeFromCode never fails; unnamed codes are preserved.
func DevTypeFromCode(c uint8) DevType { return DevType(c) }

// Code returns the wire code.
func (t DevType) Code() uint8 { return uint8(t) }

// Known reports whether the code has a named variant.
func (t DevType) Known() bool {
	_, ok := devTypes.name(t)
	return ok
}

func (t DevType) String() string {
	if n, ok := devTypes.name(t); ok {
		return n
	}
	return unnamed("Unknown", int64(t))
}

// Label returns the human readable product name.
func (t DevType) Label() string {
	if l, ok := devTypeLabels[t]; ok {
		return l
	}
	return "Unknown device"
}

// ParseDevType maps a name produced by String back to its type.
func ParseDevType(name string) DevType {
	return devTypes.parse(name, DevTypeUnknown)
}

// DevTypes lists the named device types in code order.
func DevTypes() []DevType {
	v := devTypes.values()
	slices.Sort(v)
	return v
}
