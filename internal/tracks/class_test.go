package tracks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/ant"
)

func TestDeviceClass_Lattice(t *testing.T) {
	assert.True(t, ClassPowerMeter.Less(ClassSmartTrainer))
	assert.False(t, ClassSmartTrainer.Less(ClassPowerMeter))
	assert.False(t, ClassPowerMeter.Less(ClassPowerMeter))

	assert.False(t, ClassHeartRate.Less(ClassSmartTrainer), "different families are incomparable")
	assert.False(t, ClassSmartTrainer.Less(ClassHeartRate))
	assert.False(t, ClassUnknown.Less(ClassPowerMeter))

	assert.True(t, ClassPowerMeter.Comparable(ClassSmartTrainer))
	assert.False(t, ClassPowerMeter.Comparable(ClassHeartRate))
}

func TestClassForDeviceType(t *testing.T) {
	assert.Equal(t, ClassPowerMeter, ClassForDeviceType(ant.DeviceTypePower))
	assert.Equal(t, ClassSmartTrainer, ClassForDeviceType(ant.DeviceTypeFitnessEquipment))
	assert.Equal(t, ClassHeartRate, ClassForDeviceType(ant.DeviceTypeHeartRate))
	assert.Equal(t, ClassUnknown, ClassForDeviceType(0x79))
}

func TestDeviceClass_Text(t *testing.T) {
	for _, class := range []DeviceClass{ClassPowerMeter, ClassSmartTrainer, ClassHeartRate} {
		text, err := class.MarshalText()
		require.NoError(t, err)

		var parsed DeviceClass
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, class, parsed)
	}

	var c DeviceClass
	assert.Error(t, c.UnmarshalText([]byte("toaster")))

	parsed, err := ParseClass(" Smart_Trainer ")
	require.NoError(t, err)
	assert.Equal(t, ClassSmartTrainer, parsed)
}

func TestStats(t *testing.T) {
	var s Stats
	s.Add(100)
	s.Add(300)
	assert.Equal(t, 300.0, s.Max)
	assert.Equal(t, 200.0, s.Average)
	assert.Equal(t, 2, s.Count)

	s.ResetSegment()
	s.Add(50)
	assert.Equal(t, 50.0, s.SegmentAverage)
	assert.Equal(t, 1, s.SegmentCount)
	assert.Equal(t, 150.0, s.Average)
	assert.Equal(t, 300.0, s.Max)
}
