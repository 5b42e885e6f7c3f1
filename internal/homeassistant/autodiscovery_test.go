package homeassistant

import (
	"testing"

	"github.com/resident-x/go-lynx/internal/domain"
	"github.com/resident-x/go-lynx/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAutoDiscovery(t *testing.T) *AutoDiscovery {
	t.Helper()
	ad, err := New(Config{
		Enabled:            true,
		DiscoveryPrefix:    "homeassistant",
		DeviceName:         "Danfoss TLX Pro",
		DeviceManufacturer: "Danfoss Solar Inverters",
		DeviceModel:        "TLX Pro",
		RetainDiscovery:    true,
	}, "danfoss_tlx")
	require.NoError(t, err)
	return ad
}

func TestAnnouncements(t *testing.T) {
	ad := testAutoDiscovery(t)
	reg := registry.NewTLX(2)
	dev := domain.DeviceInfo{Serial: "121000G101", FirmwareVersion: "2.61"}

	announcements := ad.Announcements(reg, dev)
	// One message per parameter plus the synthesized text sensor.
	require.Len(t, announcements, reg.Len()+1)

	byName := make(map[string]Announcement)
	for _, a := range announcements {
		byName[a.Message.UniqueID] = a
	}

	power, ok := byName["danfoss_tlx_121000g101_grid_power_total"]
	require.True(t, ok)
	assert.Equal(t, "homeassistant/sensor/danfoss_tlx_121000g101_grid_power_total/config", power.Topic)
	assert.Equal(t, "Grid Power", power.Message.Name)
	assert.Equal(t, "mdi:solar-power", power.Message.Icon)
	assert.Equal(t, "power", power.Message.DeviceClass)
	assert.Equal(t, "W", power.Message.UnitOfMeasurement)
	assert.Equal(t, "measurement", power.Message.StateClass)
	assert.Equal(t, "danfoss_tlx/grid_power_total", power.Message.StateTopic)
	assert.Equal(t, "danfoss_tlx/status", power.Message.AvailabilityTopic)
	assert.Equal(t, "online", power.Message.PayloadAvailable)
	assert.Equal(t, "offline", power.Message.PayloadNotAvailable)

	assert.Equal(t, []string{"danfoss_tlx_121000g101"}, power.Message.Device.Identifiers)
	assert.Equal(t, "Danfoss TLX Pro (121000G101)", power.Message.Device.Name)
	assert.Equal(t, "121000G101", power.Message.Device.SerialNumber)
	assert.Equal(t, "2.61", power.Message.Device.SwVersion)

	text, ok := byName["danfoss_tlx_121000g101_operation_mode_text"]
	require.True(t, ok)
	assert.Equal(t, "Operation Mode", text.Message.Name)
	assert.Equal(t, "danfoss_tlx/operation_mode_text", text.Message.StateTopic)
	assert.Empty(t, text.Message.DeviceClass)
}

func TestDisplayNameFallback(t *testing.T) {
	ad := testAutoDiscovery(t)

	// Parameters without an override get a title-cased name.
	assert.Equal(t, "Pv Voltage 1", ad.displayName("pv_voltage_1"))
	assert.Equal(t, "Grid Frequency Avg", ad.displayName("grid_frequency_avg"))
	// Overridden names win.
	assert.Equal(t, "Grid Power", ad.displayName("grid_power_total"))
}

func TestRetain(t *testing.T) {
	ad := testAutoDiscovery(t)
	assert.True(t, ad.Retain())
}
