package api

import "thread-go-home/internal/codes"

// SettingTypeInfo describes a setting a client may change.
type SettingTypeInfo struct {
	ID           codes.SettingType `json:"settingTypeId"`
	Name         string            `json:"settingTypeName"`
	Description  string            `json:"settingTypeDescription"`
	Unit         string            `json:"settingTypeUnit"`
	Icon         string            `json:"settingTypeIcon"`
	Channel      int32             `json:"channel"`
	DefaultValue int32             `json:"defaultValue"`
	MinValue     int32             `json:"minValue"`
	MaxValue     int32             `json:"maxValue"`
}

func (SettingTypeInfo) Kind() string { return "SettingTypes" }

// SettingTypeCatalog lists every named setting type with its value range.
func SettingTypeCatalog() []SettingTypeInfo {
	out := make([]SettingTypeInfo, 0, len(codes.SettingTypes()))
	for _, t := range codes.SettingTypes() {
		info := SettingTypeInfo{ID: t, Name: t.String(), MaxValue: 1<<31 - 1}
		switch t {
		case codes.SettingDimTime, codes.SettingTimeOn, codes.SettingTimeOff:
			info.Unit, info.MaxValue = "min", 24*60
		case codes.SettingPwmVal:
			info.Unit, info.MaxValue, info.DefaultValue = "%", 100, 100
		case codes.SettingLogInterval:
			info.Unit, info.MinValue, info.MaxValue, info.DefaultValue = "s", 10, 86400, 300
		case codes.SettingDoorlockOpenTime:
			info.Unit, info.MaxValue, info.DefaultValue = "s", 600, 5
		case codes.SettingLedMode, codes.SettingDoorlockMode, codes.SettingDoorlockCodeValid:
			info.MaxValue = 255
		}
		out = append(out, info)
	}
	return out
}

// LookupSettingType returns the catalog entry for t.
func LookupSettingType(t codes.SettingType) (SettingTypeInfo, bool) {
	for _, info := range SettingTypeCatalog() {
		if info.ID == t {
			return info, true
		}
	}
	return SettingTypeInfo{}, false
}
