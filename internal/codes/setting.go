package codes

import "slices"

// SettingType identifies a configurable device parameter.
type SettingType int32

const (
	SettingDevType           SettingType = 0
	SettingFwBranch          SettingType = 1
	SettingNetworkID         SettingType = 9
	SettingDimTime           SettingType = 10
	SettingTimeOn            SettingType = 11
	SettingTimeOff           SettingType = 12
	SettingPwmVal            SettingType = 13
	SettingLedMode           SettingType = 14
	SettingLogInterval       SettingType = 20
	SettingDefaultPos        SettingType = 30
	SettingDefaultSpeed      SettingType = 40
	SettingDoorlockMode      SettingType = 50
	SettingDoorlockOpenTime  SettingType = 52
	SettingDoorlockCode      SettingType = 53
	SettingDoorlockCodeValid SettingType = 54

	// SettingUnknown is returned by ParseSettingType for names it does not know.
	SettingUnknown SettingType = -1
)

var settingTypes = newTable(map[SettingType]string{
	SettingDevType:           "DevType",
	SettingFwBranch:          "FwBranch",
	SettingNetworkID:         "NetworkId",
	SettingDimTime:           "DimTime",
	SettingTimeOn:            "TimeOn",
	SettingTimeOff:           "TimeOff",
	SettingPwmVal:            "PwmVal",
	SettingLedMode:           "LedMode",
	SettingLogInterval:       "LogInterval",
	SettingDefaultPos:        "DefaultPos",
	SettingDefaultSpeed:      "DefaultSpeed",
	SettingDoorlockMode:      "DoorlockMode",
	SettingDoorlockOpenTime:  "DoorlockOpenTime",
	SettingDoorlockCode:      "DoorlockCode",
	SettingDoorlockCodeValid: "DoorlockCodeValid",
})

func SettingTypeFromCode(c int32) SettingType { return SettingType(c) }

func (t SettingType) Code() int32 { return int32(t) }

func (t SettingType) Known() bool {
	_, ok := settingTypes.name(t)
	return ok
}

func (t SettingType) String() string {
	if n, ok := settingTypes.name(t); ok {
		return n
	}
	return unnamed("Unknown", int64(t))
}

func ParseSettingType(name string) SettingType {
	return settingTypes.parse(name, SettingUnknown)
}

// SettingTypes lists the named setting types in code order.
func SettingTypes() []SettingType {
	v := settingTypes.values()
	slices.Sort(v)
	return v
}
