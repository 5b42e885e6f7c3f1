package registry

import (
	"fmt"

	"github.com/resident-x/go-lynx/internal/protocol"
)

// ModuleCommBoard is the module ID of the TLX communication board, the
// subsystem owning every parameter in this table.
const ModuleCommBoard = 8

// Classification values shared by the TLX table. They follow the Home
// Assistant device class vocabulary so the bridge layer can reuse them
// directly.
const (
	ClassEnergy      = "energy"
	ClassPower       = "power"
	ClassVoltage     = "voltage"
	ClassCurrent     = "current"
	ClassFrequency   = "frequency"
	ClassTemperature = "temperature"
	ClassIrradiance  = "irradiance"

	stateMeasurement     = "measurement"
	stateTotalIncreasing = "total_increasing"
)

// NewTLX builds the parameter registry for a Danfoss TLX Pro inverter. The
// table follows appendix C of the vendor guide. Scale values are divisors:
// the inverter reports grid voltage in tenths of a volt, so a scale of 10
// turns the raw value into volts. String-3 parameters exist only on the
// larger three-string models (TLX 10k/12.5k/15k) and are included when
// pvStrings is at least 3.
func NewTLX(pvStrings int) *Registry {
	defs := []ParameterDefinition{
		// Raw production counters (index 0x01).
		{Name: "total_energy", Index: 0x01, Subindex: 0x02, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "Wh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "Total energy production over lifetime"},
		{Name: "energy_today", Index: 0x01, Subindex: 0x04, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "Wh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "Energy production since last power-up"},

		// Smoothed measurements (index 0x02), DC side per PV string.
		{Name: "pv_voltage_1", Index: 0x02, Subindex: 0x28, DataType: protocol.DataTypeUnsigned16, Scale: 10, Unit: "V",
			Classification: ClassVoltage, StateClass: stateMeasurement, Description: "PV voltage, input 1"},
		{Name: "pv_voltage_2", Index: 0x02, Subindex: 0x29, DataType: protocol.DataTypeUnsigned16, Scale: 10, Unit: "V",
			Classification: ClassVoltage, StateClass: stateMeasurement, Description: "PV voltage, input 2"},
		{Name: "pv_voltage_3", Index: 0x02, Subindex: 0x2A, DataType: protocol.DataTypeUnsigned16, Scale: 10, Unit: "V",
			Classification: ClassVoltage, StateClass: stateMeasurement, Description: "PV voltage, input 3"},
		{Name: "pv_current_1", Index: 0x02, Subindex: 0x2D, DataType: protocol.DataTypeUnsigned16, Scale: 1000, Unit: "A",
			Classification: ClassCurrent, StateClass: stateMeasurement, Description: "PV current, input 1"},
		{Name: "pv_current_2", Index: 0x02, Subindex: 0x2E, DataType: protocol.DataTypeUnsigned16, Scale: 1000, Unit: "A",
			Classification: ClassCurrent, StateClass: stateMeasurement, Description: "PV current, input 2"},
		{Name: "pv_current_3", Index: 0x02, Subindex: 0x2F, DataType: protocol.DataTypeUnsigned16, Scale: 1000, Unit: "A",
			Classification: ClassCurrent, StateClass: stateMeasurement, Description: "PV current, input 3"},
		{Name: "pv_power_1", Index: 0x02, Subindex: 0x32, DataType: protocol.DataTypeUnsigned16, Scale: 1, Unit: "W",
			Classification: ClassPower, StateClass: stateMeasurement, Description: "PV power, input 1"},
		{Name: "pv_power_2", Index: 0x02, Subindex: 0x33, DataType: protocol.DataTypeUnsigned16, Scale: 1, Unit: "W",
			Classification: ClassPower, StateClass: stateMeasurement, Description: "PV power, input 2"},
		{Name: "pv_power_3", Index: 0x02, Subindex: 0x34, DataType: protocol.DataTypeUnsigned16, Scale: 1, Unit: "W",
			Classification: ClassPower, StateClass: stateMeasurement, Description: "PV power, input 3"},
		{Name: "pv_energy_1", Index: 0x02, Subindex: 0x37, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "Wh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "PV energy, input 1"},
		{Name: "pv_energy_2", Index: 0x02, Subindex: 0x38, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "Wh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "PV energy, input 2"},
		{Name: "pv_energy_3", Index: 0x02, Subindex: 0x39, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "Wh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "PV energy, input 3"},

		// AC side, per phase.
		{Name: "grid_voltage_l1", Index: 0x02, Subindex: 0x3C, DataType: protocol.DataTypeUnsigned16, Scale: 10, Unit: "V",
			Classification: ClassVoltage, StateClass: stateMeasurement, Description: "Grid voltage, phase L1"},
		{Name: "grid_voltage_l2", Index: 0x02, Subindex: 0x3D, DataType: protocol.DataTypeUnsigned16, Scale: 10, Unit: "V",
			Classification: ClassVoltage, StateClass: stateMeasurement, Description: "Grid voltage, phase L2"},
		{Name: "grid_voltage_l3", Index: 0x02, Subindex: 0x3E, DataType: protocol.DataTypeUnsigned16, Scale: 10, Unit: "V",
			Classification: ClassVoltage, StateClass: stateMeasurement, Description: "Grid voltage, phase L3"},
		{Name: "grid_voltage_l1_avg", Index: 0x02, Subindex: 0x5B, DataType: protocol.DataTypeUnsigned16, Scale: 10, Unit: "V",
			Classification: ClassVoltage, StateClass: stateMeasurement, Description: "Grid voltage, 10-min mean, phase L1"},
		{Name: "grid_voltage_l2_avg", Index: 0x02, Subindex: 0x5C, DataType: protocol.DataTypeUnsigned16, Scale: 10, Unit: "V",
			Classification: ClassVoltage, StateClass: stateMeasurement, Description: "Grid voltage, 10-min mean, phase L2"},
		{Name: "grid_voltage_l3_avg", Index: 0x02, Subindex: 0x5D, DataType: protocol.DataTypeUnsigned16, Scale: 10, Unit: "V",
			Classification: ClassVoltage, StateClass: stateMeasurement, Description: "Grid voltage, 10-min mean, phase L3"},
		{Name: "grid_current_l1", Index: 0x02, Subindex: 0x3F, DataType: protocol.DataTypeUnsigned32, Scale: 1000, Unit: "A",
			Classification: ClassCurrent, StateClass: stateMeasurement, Description: "Grid current, phase L1"},
		{Name: "grid_current_l2", Index: 0x02, Subindex: 0x40, DataType: protocol.DataTypeUnsigned32, Scale: 1000, Unit: "A",
			Classification: ClassCurrent, StateClass: stateMeasurement, Description: "Grid current, phase L2"},
		{Name: "grid_current_l3", Index: 0x02, Subindex: 0x41, DataType: protocol.DataTypeUnsigned32, Scale: 1000, Unit: "A",
			Classification: ClassCurrent, StateClass: stateMeasurement, Description: "Grid current, phase L3"},
		{Name: "grid_power_l1", Index: 0x02, Subindex: 0x42, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "W",
			Classification: ClassPower, StateClass: stateMeasurement, Description: "Grid power, phase L1"},
		{Name: "grid_power_l2", Index: 0x02, Subindex: 0x43, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "W",
			Classification: ClassPower, StateClass: stateMeasurement, Description: "Grid power, phase L2"},
		{Name: "grid_power_l3", Index: 0x02, Subindex: 0x44, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "W",
			Classification: ClassPower, StateClass: stateMeasurement, Description: "Grid power, phase L3"},
		{Name: "grid_power_total", Index: 0x02, Subindex: 0x46, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "W",
			Classification: ClassPower, StateClass: stateMeasurement, Description: "Grid power, sum of L1+L2+L3"},
		{Name: "grid_energy_today_l1", Index: 0x02, Subindex: 0x47, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "Wh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "Grid energy today, phase L1"},
		{Name: "grid_energy_today_l2", Index: 0x02, Subindex: 0x48, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "Wh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "Grid energy today, phase L2"},
		{Name: "grid_energy_today_l3", Index: 0x02, Subindex: 0x49, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "Wh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "Grid energy today, phase L3"},
		{Name: "grid_energy_today_total", Index: 0x02, Subindex: 0x4A, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "Wh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "Grid energy today, sum of L1+L2+L3"},
		{Name: "grid_dc_l1", Index: 0x02, Subindex: 0x4C, DataType: protocol.DataTypeSigned32, Scale: 1, Unit: "mA",
			Classification: ClassCurrent, StateClass: stateMeasurement, Description: "Grid current, DC content, phase L1"},
		{Name: "grid_dc_l2", Index: 0x02, Subindex: 0x4D, DataType: protocol.DataTypeSigned32, Scale: 1, Unit: "mA",
			Classification: ClassCurrent, StateClass: stateMeasurement, Description: "Grid current, DC content, phase L2"},
		{Name: "grid_dc_l3", Index: 0x02, Subindex: 0x4E, DataType: protocol.DataTypeSigned32, Scale: 1, Unit: "mA",
			Classification: ClassCurrent, StateClass: stateMeasurement, Description: "Grid current, DC content, phase L3"},
		{Name: "grid_frequency_avg", Index: 0x02, Subindex: 0x50, DataType: protocol.DataTypeUnsigned32, Scale: 1000, Unit: "Hz",
			Classification: ClassFrequency, StateClass: stateMeasurement, Description: "Grid frequency, mean of L1+L2+L3"},
		{Name: "grid_frequency_l1", Index: 0x02, Subindex: 0x61, DataType: protocol.DataTypeUnsigned32, Scale: 1000, Unit: "Hz",
			Classification: ClassFrequency, StateClass: stateMeasurement, Description: "Grid frequency, phase L1"},
		{Name: "grid_frequency_l2", Index: 0x02, Subindex: 0x62, DataType: protocol.DataTypeUnsigned32, Scale: 1000, Unit: "Hz",
			Classification: ClassFrequency, StateClass: stateMeasurement, Description: "Grid frequency, phase L2"},
		{Name: "grid_frequency_l3", Index: 0x02, Subindex: 0x63, DataType: protocol.DataTypeUnsigned32, Scale: 1000, Unit: "Hz",
			Classification: ClassFrequency, StateClass: stateMeasurement, Description: "Grid frequency, phase L3"},

		// Sensor inputs, only meaningful when physically connected.
		{Name: "irradiance", Index: 0x02, Subindex: 0x02, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "W/m²",
			Classification: ClassIrradiance, StateClass: stateMeasurement, Description: "Global irradiance"},
		{Name: "ambient_temp", Index: 0x02, Subindex: 0x03, DataType: protocol.DataTypeSigned16, Scale: 1, Unit: "°C",
			Classification: ClassTemperature, StateClass: stateMeasurement, Description: "Ambient temperature"},
		{Name: "pv_array_temp", Index: 0x02, Subindex: 0x04, DataType: protocol.DataTypeSigned16, Scale: 1, Unit: "°C",
			Classification: ClassTemperature, StateClass: stateMeasurement, Description: "PV array temperature"},

		// Status (index 0x0A).
		{Name: "operation_mode", Index: 0x0A, Subindex: 0x02, DataType: protocol.DataTypeUnsigned16, Scale: 1,
			Description: "Operation mode ID"},
		{Name: "latest_event", Index: 0x0A, Subindex: 0x28, DataType: protocol.DataTypeUnsigned16, Scale: 1,
			Description: "Latest event code"},

		// System information.
		{Name: "hardware_type", Index: 0x1E, Subindex: 0x14, DataType: protocol.DataTypeUnsigned8, Scale: 1,
			Description: "Hardware type ID (6=10kW, 7=12.5kW, 8=15kW)"},
		{Name: "sw_version", Index: 0x32, Subindex: 0x28, DataType: protocol.DataTypeUnsigned32, Scale: 100,
			Description: "Software package version"},
		{Name: "nominal_power", Index: 0x47, Subindex: 0x01, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "W",
			Classification: ClassPower, Description: "Nominal AC power"},

		// Energy log (index 120).
		{Name: "production_today_log", Index: 120, Subindex: 10, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "Wh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "Inverter production today"},
		{Name: "production_this_week", Index: 120, Subindex: 20, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "Wh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "Inverter production this week"},
		{Name: "production_this_month", Index: 120, Subindex: 30, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "Wh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "Inverter production this month"},
		{Name: "production_this_year", Index: 120, Subindex: 50, DataType: protocol.DataTypeUnsigned32, Scale: 1, Unit: "kWh",
			Classification: ClassEnergy, StateClass: stateTotalIncreasing, Description: "Inverter production this year"},
	}

	if pvStrings < 3 {
		filtered := defs[:0]
		for _, def := range defs {
			switch def.Name {
			case "pv_voltage_3", "pv_current_3", "pv_power_3", "pv_energy_3":
				continue
			}
			filtered = append(filtered, def)
		}
		defs = filtered
	}

	for i := range defs {
		defs[i].ModuleID = ModuleCommBoard
	}
	return MustNew(defs)
}

// RealtimeNames returns the frequently polled measurement parameters, in
// registry order, restricted to names present in r.
func RealtimeNames(r *Registry) []string {
	return present(r,
		"grid_power_total", "grid_power_l1", "grid_power_l2", "grid_power_l3",
		"pv_voltage_1", "pv_voltage_2", "pv_voltage_3",
		"pv_current_1", "pv_current_2", "pv_current_3",
		"pv_power_1", "pv_power_2", "pv_power_3",
		"grid_voltage_l1", "grid_voltage_l2", "grid_voltage_l3",
		"grid_current_l1", "grid_current_l2", "grid_current_l3",
		"grid_frequency_avg",
		"operation_mode",
		"grid_energy_today_total",
	)
}

// EnergyNames returns the production counters polled on the slower cadence.
func EnergyNames(r *Registry) []string {
	return present(r,
		"total_energy", "energy_today",
		"grid_energy_today_total",
		"grid_energy_today_l1", "grid_energy_today_l2", "grid_energy_today_l3",
		"pv_energy_1", "pv_energy_2", "pv_energy_3",
		"production_today_log", "production_this_week",
		"production_this_month", "production_this_year",
	)
}

// SystemNames returns the static device information parameters polled
// rarely.
func SystemNames(r *Registry) []string {
	return present(r, "nominal_power", "sw_version", "hardware_type")
}

func present(r *Registry, names ...string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if r.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// operationModes maps the operation_mode parameter value to status text
// (vendor guide appendix C, status information).
var operationModes = map[int]string{
	0: "not available",
	1: "off",
	2: "standby",
	3: "starting",
	4: "producing",
	5: "grid fault",
	6: "failure",
	7: "self test",
	8: "sleeping",
}

// OperationModeText returns the status text for an operation_mode value.
func OperationModeText(mode int) string {
	if text, ok := operationModes[mode]; ok {
		return text
	}
	return fmt.Sprintf("unknown (%d)", mode)
}
