package codes

// MeasurementType identifies the quantity carried by a measurement frame.
type MeasurementType uint8

const (
	MeasureAccelX                        MeasurementType = 0
	MeasureAccelY                        MeasurementType = 1
	MeasureAccelZ                        MeasurementType = 2
	MeasureAccelXYZ                      MeasurementType = 3
	MeasureGyroX                         MeasurementType = 4
	MeasureGyroY                         MeasurementType = 5
	MeasureGyroZ                         MeasurementType = 6
	MeasureGyroXYZ                       MeasurementType = 7
	MeasureMagnX                         MeasurementType = 8
	MeasureMagnY                         MeasurementType = 9
	MeasureMagnZ                         MeasurementType = 10
	MeasureMagnXYZ                       MeasurementType = 11
	MeasureDieTemp                       MeasurementType = 12
	MeasureAmbientTemperature            MeasurementType = 13
	MeasurePressure                      MeasurementType = 14
	MeasureProximity                     MeasurementType = 15
	MeasureHumidity                      MeasurementType = 16
	MeasureIlluminanceVisible            MeasurementType = 17
	MeasureIlluminanceInfraRed           MeasurementType = 18
	MeasureIlluminanceRed                MeasurementType = 19
	MeasureIlluminanceGreen              MeasurementType = 20
	MeasureIlluminanceBlue               MeasurementType = 21
	MeasureAltitude                      MeasurementType = 22
	MeasurePM1                           MeasurementType = 23
	MeasurePM25                          MeasurementType = 24
	MeasurePM10                          MeasurementType = 25
	MeasureDistance                      MeasurementType = 26
	MeasureCo2Level                      MeasurementType = 27
	MeasureO2Level                       MeasurementType = 28
	MeasureVocLevel                      MeasurementType = 29
	MeasureGasSensorResistance           MeasurementType = 30
	MeasureVoltage                       MeasurementType = 31
	MeasureShuntVoltage                  MeasurementType = 32
	MeasureCurrent                       MeasurementType = 33
	MeasurePower                         MeasurementType = 34
	MeasureResistance                    MeasurementType = 35
	MeasureRotation                      MeasurementType = 36
	MeasurePositionDeltaX                MeasurementType = 37
	MeasurePositionDeltaY                MeasurementType = 38
	MeasurePositionDeltaZ                MeasurementType = 39
	MeasureRPM                           MeasurementType = 40
	MeasureGaugeVoltage                  MeasurementType = 41
	MeasureGaugeAvgCurrent               MeasurementType = 42
	MeasureGaugeStandbyCurrent           MeasurementType = 43
	MeasureGaugeMaxLoadCurrent           MeasurementType = 44
	MeasureGaugeTemperature              MeasurementType = 45
	MeasureGaugeStateOfCharge            MeasurementType = 46
	MeasureGaugeFullChargeCapacity       MeasurementType = 47
	MeasureGaugeRemainingChargeCapacity  MeasurementType = 48
	MeasureGaugeNominalAvailableCapacity MeasurementType = 49
	MeasureGaugeFullAvailableCapacity    MeasurementType = 50
	MeasureGaugeAvgPower                 MeasurementType = 51
	MeasureGaugeStateOfHealth            MeasurementType = 52
	MeasureGaugeTimeToEmpty              MeasurementType = 53
	MeasureGaugeTimeToFull               MeasurementType = 54
	MeasureGaugeCycleCount               MeasurementType = 55
	MeasureGaugeDesignVoltage            MeasurementType = 56
	MeasureGaugeDesiredVoltage           MeasurementType = 57
	MeasureGaugeDesiredChargingCurrent   MeasurementType = 58
	MeasureAll                           MeasurementType = 59
	// Spectral channels F1..F8 cover 415, 445, 480, 515, 555, 590, 630 and 680 nm.
	MeasureSpectralF1    MeasurementType = 60
	MeasureSpectralF2    MeasurementType = 61
	MeasureSpectralF3    MeasurementType = 62
	MeasureSpectralF4    MeasurementType = 63
	MeasureSpectralF5    MeasurementType = 64
	MeasureSpectralF6    MeasurementType = 65
	MeasureSpectralF7    MeasurementType = 66
	MeasureSpectralF8    MeasurementType = 67
	MeasureSpectralNIR   MeasurementType = 68
	MeasurePhSensor      MeasurementType = 69
	MeasureTds           MeasurementType = 70
	MeasureDoorlockLogs  MeasurementType = 100
	MeasureUptimeCounter MeasurementType = 101

	// MeasurementOther is returned by ParseMeasurementType for names it does not know.
	MeasurementOther MeasurementType = 255
)

var measurementTypes = newTable(map[MeasurementType]string{
	MeasureAccelX:                        "AccelX",
	MeasureAccelY:                        "AccelY",
	MeasureAccelZ:                        "AccelZ",
	MeasureAccelXYZ:                      "AccelXYZ",
	MeasureGyroX:                         "GyroX",
	MeasureGyroY:                         "GyroY",
	MeasureGyroZ:                         "GyroZ",
	MeasureGyroXYZ:                       "GyroXYZ",
	MeasureMagnX:                         "MagnX",
	MeasureMagnY:                         "MagnY",
	MeasureMagnZ:                         "MagnZ",
	MeasureMagnXYZ:                       "MagnXYZ",
	MeasureDieTemp:                       "DieTemp",
	MeasureAmbientTemperature:            "AmbientTemperature",
	MeasurePressure:                      "Pressure",
	MeasureProximity:                     "Proximity",
	MeasureHumidity:                      "Humidity",
	MeasureIlluminanceVisible:            "IlluminanceVisible",
	MeasureIlluminanceInfraRed:           "IlluminanceInfraRed",
	MeasureIlluminanceRed:                "IlluminanceRed",
	MeasureIlluminanceGreen:              "IlluminanceGreen",
	MeasureIlluminanceBlue:               "IlluminanceBlue",
	MeasureAltitude:                      "Altitude",
	MeasurePM1:                           "PM1_0",
	MeasurePM25:                          "PM2_5",
	MeasurePM10:                          "PM10",
	MeasureDistance:                      "Distance",
	MeasureCo2Level:                      "Co2Level",
	MeasureO2Level:                       "O2Level",
	MeasureVocLevel:                      "VocLevel",
	MeasureGasSensorResistance:           "GasSensorResistance",
	MeasureVoltage:                       "Voltage",
	MeasureShuntVoltage:                  "ShuntVoltage",
	MeasureCurrent:                       "Current",
	MeasurePower:                         "Power",
	MeasureResistance:                    "Resistance",
	MeasureRotation:                      "Rotation",
	MeasurePositionDeltaX:                "PositionDeltaX",
	MeasurePositionDeltaY:                "PositionDeltaY",
	MeasurePositionDeltaZ:                "PositionDeltaZ",
	MeasureRPM:                           "RPM",
	MeasureGaugeVoltage:                  "GaugeVoltage",
	MeasureGaugeAvgCurrent:               "GaugeAvgCurrent",
	MeasureGaugeStandbyCurrent:           "GaugeStandbyCurrent",
	MeasureGaugeMaxLoadCurrent:           "GaugeMaxLoadCurrent",
	MeasureGaugeTemperature:              "GaugeTemperature",
	MeasureGaugeStateOfCharge:            "GaugeStateOfCharge",
	MeasureGaugeFullChargeCapacity:       "GaugeFullChargeCapacity",
	MeasureGaugeRemainingChargeCapacity:  "GaugeRemainingChargeCapacity",
	MeasureGaugeNominalAvailableCapacity: "GaugeNominalAvailableCapacity",
	MeasureGaugeFullAvailableCapacity:    "GaugeFullAvailableCapacity",
	MeasureGaugeAvgPower:                 "GaugeAvgPower",
	MeasureGaugeStateOfHealth:            "GaugeStateOfHealth",
	MeasureGaugeTimeToEmpty:              "GaugeTimeToEmpty",
	MeasureGaugeTimeToFull:               "GaugeTimeToFull",
	MeasureGaugeCycleCount:               "GaugeCycleCount",
	MeasureGaugeDesignVoltage:            "GaugeDesignVoltage",
	MeasureGaugeDesiredVoltage:           "GaugeDesiredVoltage",
	MeasureGaugeDesiredChargingCurrent:   "GaugeDesiredChargingCurrent",
	MeasureAll:                           "All",
	MeasureSpectralF1:                    "SensorChanF1_415",
	MeasureSpectralF2:                    "SensorChanF2_445",
	MeasureSpectralF3:                    "SensorChanF3_480",
	MeasureSpectralF4:                    "SensorChanF4_515",
	MeasureSpectralF5:                    "SensorChanF5_555",
	MeasureSpectralF6:                    "SensorChanF6_590",
	MeasureSpectralF7:                    "SensorChanF7_630",
	MeasureSpectralF8:                    "SensorChanF8_680",
	MeasureSpectralNIR:                   "SensorChanNir",
	MeasurePhSensor:                      "PhSensor",
	MeasureTds:                           "Tds",
	MeasureDoorlockLogs:                  "DoorlockLogs",
	MeasureUptimeCounter:                 "UptimeCounter",
})

func MeasurementTypeFromCode(c uint8) MeasurementType { return MeasurementType(c) }

// MeasurementTypeFromInt maps values outside a byte to MeasurementOther.
func MeasurementTypeFromInt(c int32) MeasurementType {
	if c < 0 || c > 0xFF {
		return MeasurementOther
	}
	return MeasurementType(c)
}

func (m MeasurementType) Code() uint8 { return uint8(m) }

func (m MeasurementType) Known() bool {
	_, ok := measurementTypes.name(m)
	return ok
}

func (m MeasurementType) String() string {
	if n, ok := measurementTypes.name(m); ok {
		return n
	}
	return unnamed("Other", int64(m))
}

func ParseMeasurementType(name string) MeasurementType {
	return measurementTypes.parse(name, MeasurementOther)
}

// SensorChannel is the sensor index on a device. It has no named values.
type SensorChannel uint8

func SensorChannelFromCode(c uint8) SensorChannel { return SensorChannel(c) }

// SensorChannelFromInt maps values outside a byte to channel 255.
func SensorChannelFromInt(c int32) SensorChannel {
	if c < 0 || c > 0xFF {
		return SensorChannel(0xFF)
	}
	return SensorChannel(c)
}

func (c SensorChannel) Code() uint8 { return uint8(c) }

func (c SensorChannel) String() string { return unnamed("Other", int64(c)) }
