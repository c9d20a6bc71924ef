package codes

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
)

func TestDevTypeRoundTripAllCodes(t *testing.T) {
	for c := 0; c <= 0xFF; c++ {
		if got := DevTypeFromCode(uint8(c)).Code(); got != uint8(c) {
			t.Fatalf("code %d round-tripped to %d", c, got)
		}
	}
	for _, v := range DevTypes() {
		if DevTypeFromCode(v.Code()) != v {
			t.Errorf("%s did not survive its code", v)
		}
		if ParseDevType(v.String()) != v {
			t.Errorf("ParseDevType(%q) = %v", v.String(), ParseDevType(v.String()))
		}
	}
}

func TestDevTypeUnknown(t *testing.T) {
	v := DevTypeFromCode(42)
	if v.Known() {
		t.Fatal("code 42 should not be named")
	}
	if v.String() != "Unknown(42)" {
		t.Errorf("String() = %q", v.String())
	}
	if v.Label() != "Unknown device" {
		t.Errorf("Label() = %q", v.Label())
	}
	if ParseDevType("Toaster") != DevTypeUnknown {
		t.Error("unknown name should map to DevTypeUnknown")
	}
	if DevTypeHortiLed.Label() != "Horticulture: LED-panel" {
		t.Errorf("Label() = %q", DevTypeHortiLed.Label())
	}
}

func TestDevStatus(t *testing.T) {
	for c := 0; c <= 0xFF; c++ {
		if DevStatusFromCode(uint8(c)).Code() != uint8(c) {
			t.Fatalf("status code %d not preserved", c)
		}
	}
	tests := []struct {
		name string
		want DevStatus
	}{
		{"Error", StatusError},
		{"RunningOk", StatusRunningOk},
		{"Downloading", StatusDownloading},
		{"Flashing", StatusFlashing},
		{"Rebooting", StatusRebooting},
		{"Offline", StatusOffline},
		{"Unknown", StatusUnknown},
		{"garbage", StatusUnknown},
	}
	for _, tt := range tests {
		if got := ParseDevStatus(tt.name); got != tt.want {
			t.Errorf("ParseDevStatus(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
	if DevStatus(9).String() != "Unknown(9)" {
		t.Errorf("String() = %q", DevStatus(9).String())
	}
}

func TestMeasurementTypeTable(t *testing.T) {
	tests := []struct {
		code uint8
		want MeasurementType
		name string
	}{
		{13, MeasureAmbientTemperature, "AmbientTemperature"},
		{16, MeasureHumidity, "Humidity"},
		{59, MeasureAll, "All"},
		{60, MeasureSpectralF1, "SensorChanF1_415"},
		{68, MeasureSpectralNIR, "SensorChanNir"},
		{70, MeasureTds, "Tds"},
		{101, MeasureUptimeCounter, "UptimeCounter"},
	}
	for _, tt := range tests {
		got := MeasurementTypeFromCode(tt.code)
		if got != tt.want {
			t.Errorf("FromCode(%d) = %v, want %v", tt.code, got, tt.want)
		}
		if got.String() != tt.name {
			t.Errorf("String() = %q, want %q", got.String(), tt.name)
		}
		if ParseMeasurementType(tt.name) != tt.want {
			t.Errorf("Parse(%q) mismatch", tt.name)
		}
	}

	other := MeasurementTypeFromCode(71)
	if other.Known() || other.Code() != 71 || other.String() != "Other(71)" {
		t.Errorf("code 71: known=%v code=%d str=%q", other.Known(), other.Code(), other.String())
	}
	if ParseMeasurementType("Flux") != MeasurementOther {
		t.Error("unknown name should map to MeasurementOther")
	}
	if MeasurementTypeFromInt(-3) != MeasurementOther {
		t.Error("negative code should map to MeasurementOther")
	}
}

func TestNamesAreUnique(t *testing.T) {
	seen := map[string]MeasurementType{}
	for v, n := range measurementTypes.names {
		if prev, ok := seen[n]; ok {
			t.Fatalf("name %q used by %d and %d", n, prev, v)
		}
		seen[n] = v
	}
}

func TestConnectedAndSettingTypes(t *testing.T) {
	for _, c := range []int32{-100, -1, 0, 7, 12, 13, 1 << 20} {
		if ConnectedTypeFromCode(c).Code() != c {
			t.Errorf("connected code %d not preserved", c)
		}
		if SettingTypeFromCode(c).Code() != c {
			t.Errorf("setting code %d not preserved", c)
		}
	}
	if ConnectedTypeFromCode(7) != ConnectedWateringPump {
		t.Error("7 should be WateringPump")
	}
	if ConnectedTypeFromCode(99).String() != "Other(99)" {
		t.Errorf("String() = %q", ConnectedTypeFromCode(99).String())
	}
	if ParseConnectedType("Kettle") != ConnectedOther {
		t.Error("unknown connected name should be ConnectedOther")
	}
	if ParseSettingType("LedMode") != SettingLedMode {
		t.Error("LedMode lookup failed")
	}
	if ParseSettingType("Volume") != SettingUnknown {
		t.Error("unknown setting name should be SettingUnknown")
	}
	types := SettingTypes()
	if len(types) != 15 || types[0] != SettingDevType || types[len(types)-1] != SettingDoorlockCodeValid {
		t.Errorf("SettingTypes() = %v", types)
	}
}

func TestJSONUsesCodes(t *testing.T) {
	b, err := json.Marshal(struct {
		T DevType         `json:"type"`
		S DevStatus       `json:"status"`
		M MeasurementType `json:"measurement"`
	}{DevTypeTeLys, StatusFlashing, MeasureHumidity})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":20,"status":4,"measurement":16}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}

func TestMeasurementTypeAllCodes(t *testing.T) {
	for c := 0; c <= 0xFF; c++ {
		v := MeasurementTypeFromCode(uint8(c))
		if v.Code() != uint8(c) {
			t.Fatalf("code %d round-tripped to %d", c, v.Code())
		}
		if MeasurementTypeFromInt(int32(c)) != v {
			t.Errorf("FromInt(%d) = %v", c, MeasurementTypeFromInt(int32(c)))
		}
		if v.Known() {
			if ParseMeasurementType(v.String()) != v {
				t.Errorf("Parse(%q) = %v, want %v", v.String(), ParseMeasurementType(v.String()), v)
			}
		} else if v.String() != fmt.Sprintf("Other(%d)", c) {
			t.Errorf("code %d: String() = %q", c, v.String())
		}
	}
	for _, c := range []int32{-1, 256, math.MinInt32, math.MaxInt32} {
		if MeasurementTypeFromInt(c) != MeasurementOther {
			t.Errorf("FromInt(%d) = %v", c, MeasurementTypeFromInt(c))
		}
	}
	if n := len(measurementTypes.values()); n != 73 {
		t.Errorf("%d named measurement types", n)
	}
}

func TestSensorChannelAllCodes(t *testing.T) {
	for c := 0; c <= 0xFF; c++ {
		ch := SensorChannelFromCode(uint8(c))
		if ch.Code() != uint8(c) || SensorChannelFromInt(int32(c)) != ch {
			t.Fatalf("channel %d not preserved", c)
		}
		if ch.String() != fmt.Sprintf("Other(%d)", c) {
			t.Errorf("String() = %q", ch.String())
		}
	}
	for _, c := range []int32{-1, 256, math.MinInt32, math.MaxInt32} {
		if SensorChannelFromInt(c) != SensorChannel(0xFF) {
			t.Errorf("FromInt(%d) = %d", c, SensorChannelFromInt(c))
		}
	}
}

func TestNamedVariantsRoundTrip(t *testing.T) {
	for _, v := range statuses.values() {
		if ParseDevStatus(v.String()) != v || DevStatusFromCode(v.Code()) != v {
			t.Errorf("status %v did not round-trip", v)
		}
	}
	for _, v := range connectedTypes.values() {
		if !v.Known() || ParseConnectedType(v.String()) != v || ConnectedTypeFromCode(v.Code()) != v {
			t.Errorf("connected type %v did not round-trip", v)
		}
	}
	for _, v := range SettingTypes() {
		if !v.Known() || ParseSettingType(v.String()) != v || SettingTypeFromCode(v.Code()) != v {
			t.Errorf("setting type %v did not round-trip", v)
		}
	}
}

func TestWideCodesPreserved(t *testing.T) {
	wide := []int32{math.MinInt32, math.MaxInt32}
	for c := int32(-300); c <= 300; c++ {
		wide = append(wide, c)
	}
	for _, c := range wide {
		ct := ConnectedTypeFromCode(c)
		if ct.Code() != c {
			t.Fatalf("connected code %d not preserved", c)
		}
		if !ct.Known() && ct.String() != fmt.Sprintf("Other(%d)", c) {
			t.Errorf("connected %d: String() = %q", c, ct.String())
		}
		st := SettingTypeFromCode(c)
		if st.Code() != c {
			t.Fatalf("setting code %d not preserved", c)
		}
		if !st.Known() && st.String() != fmt.Sprintf("Unknown(%d)", c) {
			t.Errorf("setting %d: String() = %q", c, st.String())
		}
	}
}
