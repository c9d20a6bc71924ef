package codes

// ConnectedType identifies a peripheral attached to a parent device.
type ConnectedType int32

const (
	ConnectedDefault            ConnectedType = 0
	ConnectedHortiLed1          ConnectedType = 1
	ConnectedHortiLed2          ConnectedType = 2
	ConnectedHortiLed3          ConnectedType = 3
	ConnectedHortiLed4          ConnectedType = 4
	ConnectedHortiLed5          ConnectedType = 5
	ConnectedShmt3xSensor       ConnectedType = 6
	ConnectedWateringPump       ConnectedType = 7
	ConnectedFanController      ConnectedType = 8
	ConnectedFlickeringLed      ConnectedType = 9
	ConnectedStepperMotorDriver ConnectedType = 10
	ConnectedDoorLock           ConnectedType = 11
	ConnectedDoorSensor         ConnectedType = 12

	// ConnectedOther is returned by ParseConnectedType for names it does not know.
	ConnectedOther ConnectedType = -1
)

var connectedTypes = newTable(map[ConnectedType]string{
	ConnectedDefault:            "Default",
	ConnectedHortiLed1:          "HortiLed1",
	ConnectedHortiLed2:          "HortiLed2",
	ConnectedHortiLed3:          "HortiLed3",
	ConnectedHortiLed4:          "HortiLed4",
	ConnectedHortiLed5:          "HortiLed5",
	ConnectedShmt3xSensor:       "Shmt3xSensor",
	ConnectedWateringPump:       "WateringPump",
	ConnectedFanController:      "FanController",
	ConnectedFlickeringLed:      "FlickeringLed",
	ConnectedStepperMotorDriver: "StepperMotorDriver",
	ConnectedDoorLock:           "DoorLock",
	ConnectedDoorSensor:         "DoorSensor",
})

func ConnectedTypeFromCode(c int32) ConnectedType { return ConnectedType(c) }

func (t ConnectedType) Code() int32 { return int32(t) }

func (t ConnectedType) Known() bool {
	_, ok := connectedTypes.name(t)
	return ok
}

func (t ConnectedType) String() string {
	if n, ok := connectedTypes.name(t); ok {
		return n
	}
	return unnamed("Other", int64(t))
}

func ParseConnectedType(name string) ConnectedType {
	return connectedTypes.parse(name, ConnectedOther)
}
