package device

import (
	"time"

	"thread-go-home/internal/codes"
	"thread-go-home/internal/wire"
)

// SoilSensor is a horticulture plant sensor.
type SoilSensor struct {
	Info
	SoilMoisture *Reading `json:"soilMoisture,omitempty"`
	Temp         *Reading `json:"temp,omitempty"`
	Humidity     *Reading `json:"humidity,omitempty"`
	Light        *Reading `json:"light,omitempty"`
	Battery      *Reading `json:"battery,omitempty"`
}

func (*SoilSensor) Kind() Kind             { return KindSoilSensor }
func (*SoilSensor) DeviceTypeName() string { return "Soil Sensor" }

func (d *SoilSensor) Readings() map[string]float64 {
	out := map[string]float64{}
	putReading(out, "soilMoisture", d.SoilMoisture)
	putReading(out, "temp", d.Temp)
	putReading(out, "humidity", d.Humidity)
	putReading(out, "light", d.Light)
	putReading(out, "battery", d.Battery)
	return out
}

// Humidity on channel 1 is the probe in the soil; channel 0 is the air.
func (d *SoilSensor) applyReading(m wire.Measurement, at time.Time) {
	switch m.Type {
	case codes.MeasureHumidity:
		if m.Channel.Code() == 1 {
			d.SoilMoisture = readingOf(m, at)
		} else {
			d.Humidity = readingOf(m, at)
		}
	case codes.MeasureAmbientTemperature, codes.MeasureDieTemp:
		d.Temp = readingOf(m, at)
	case codes.MeasureIlluminanceVisible:
		d.Light = readingOf(m, at)
	case codes.MeasureVoltage, codes.MeasureGaugeVoltage:
		d.Battery = readingOf(m, at)
	}
}

func (d *SoilSensor) clone() Device {
	return &SoilSensor{
		Info:         d.cloneInfo(),
		SoilMoisture: cloneReading(d.SoilMoisture),
		Temp:         cloneReading(d.Temp),
		Humidity:     cloneReading(d.Humidity),
		Light:        cloneReading(d.Light),
		Battery:      cloneReading(d.Battery),
	}
}

// EnvSensor is an environment sensor or weather station.
type EnvSensor struct {
	Info
	Temp     *Reading `json:"temp,omitempty"`
	Humidity *Reading `json:"humidity,omitempty"`
	Pressure *Reading `json:"pressure,omitempty"`
	Battery  *Reading `json:"battery,omitempty"`
}

func (*EnvSensor) Kind() Kind             { return KindEnvSensor }
func (*EnvSensor) DeviceTypeName() string { return "Environmental Sensor" }

func (d *EnvSensor) Readings() map[string]float64 {
	out := map[string]float64{}
	putReading(out, "temp", d.Temp)
	putReading(out, "humidity", d.Humidity)
	putReading(out, "pressure", d.Pressure)
	putReading(out, "battery", d.Battery)
	return out
}

func (d *EnvSensor) applyReading(m wire.Measurement, at time.Time) {
	switch m.Type {
	case codes.MeasureAmbientTemperature, codes.MeasureDieTemp:
		d.Temp = readingOf(m, at)
	case codes.MeasureHumidity:
		d.Humidity = readingOf(m, at)
	case codes.MeasurePressure:
		d.Pressure = readingOf(m, at)
	case codes.MeasureVoltage, codes.MeasureGaugeVoltage:
		d.Battery = readingOf(m, at)
	}
}

func (d *EnvSensor) clone() Device {
	return &EnvSensor{
		Info:     d.cloneInfo(),
		Temp:     cloneReading(d.Temp),
		Humidity: cloneReading(d.Humidity),
		Pressure: cloneReading(d.Pressure),
		Battery:  cloneReading(d.Battery),
	}
}

// Router is a mains powered mesh node without sensors of its own.
type Router struct {
	Info
}

func (*Router) Kind() Kind             { return KindRouter }
func (*Router) DeviceTypeName() string { return "Router" }

func (*Router) Readings() map[string]float64 { return map[string]float64{} }

func (*Router) applyReading(wire.Measurement, time.Time) {}

func (d *Router) clone() Device { return &Router{Info: d.cloneInfo()} }

// LedPanel is a grow light controller. Its driver channels are reported as
// connected devices.
type LedPanel struct {
	Info
	DieTemp *Reading `json:"dieTemp,omitempty"`
}

func (*LedPanel) Kind() Kind             { return KindLedPanel }
func (*LedPanel) DeviceTypeName() string { return "LED Panel" }

func (d *LedPanel) Readings() map[string]float64 {
	out := map[string]float64{}
	putReading(out, "dieTemp", d.DieTemp)
	return out
}

func (d *LedPanel) applyReading(m wire.Measurement, at time.Time) {
	if m.Type == codes.MeasureDieTemp {
		d.DieTemp = readingOf(m, at)
	}
}

func (d *LedPanel) clone() Device {
	return &LedPanel{Info: d.cloneInfo(), DieTemp: cloneReading(d.DieTemp)}
}

// TeLys is a battery powered tracker.
type TeLys struct {
	Info
	Battery *Reading `json:"battery,omitempty"`
	Charge  *Reading `json:"charge,omitempty"`
}

func (*TeLys) Kind() Kind             { return KindTeLys }
func (*TeLys) DeviceTypeName() string { return "TeLys" }

func (d *TeLys) Readings() map[string]float64 {
	out := map[string]float64{}
	putReading(out, "battery", d.Battery)
	putReading(out, "charge", d.Charge)
	return out
}

func (d *TeLys) applyReading(m wire.Measurement, at time.Time) {
	switch m.Type {
	case codes.MeasureVoltage, codes.MeasureGaugeVoltage:
		d.Battery = readingOf(m, at)
	case codes.MeasureGaugeStateOfCharge:
		d.Charge = readingOf(m, at)
	}
}

func (d *TeLys) clone() Device {
	return &TeLys{Info: d.cloneInfo(), Battery: cloneReading(d.Battery), Charge: cloneReading(d.Charge)}
}
