// Package validate classifies gateway payloads as generic. The gateway
// returns placeholder values while the vehicle is asleep or the telematics
// unit has no fresh data; those payloads must never replace a real reading.
package validate

import (
	"errors"
	"fmt"

	"github.com/pfrederiksen/saic-ls/internal/saic"
)

// ErrMalformedPayload is returned when a payload lacks the structure needed
// to classify it.
var ErrMalformedPayload = errors.New("malformed payload")

// Sentinel values observed in generic responses.
const (
	DefaultStatusThreshold     = 0
	DefaultSOCThreshold        = 1000
	DefaultTemperatureSentinel = -40
	DefaultExtremeTemperature  = -128
)

// Sentinel check names, as reported by Reasons.
const (
	ReasonZeroOdometerAndRanges = "zero_odometer_and_ranges"
	ReasonNonPositiveOdometer   = "non_positive_odometer"
	ReasonInteriorTemp          = "interior_temperature_sentinel"
	ReasonExteriorTemp          = "exterior_temperature_sentinel"
	ReasonExtremeTemp           = "extreme_temperature_sentinel"
	ReasonSOCOutOfRange         = "soc_out_of_range"
)

// StatusRules selects which status sentinels mark a payload as generic. A
// payload is generic when any enabled check fires.
type StatusRules struct {
	ZeroOdometerAndRanges bool `mapstructure:"zero_odometer_and_ranges"`
	NonPositiveOdometer   bool `mapstructure:"non_positive_odometer"`
	InteriorTempSentinel  bool `mapstructure:"interior_temp_sentinel"`
	ExteriorTempSentinel  bool `mapstructure:"exterior_temp_sentinel"`
	ExtremeTempSentinel   bool `mapstructure:"extreme_temp_sentinel"`

	StatusThreshold     int `mapstructure:"status_threshold"`
	TemperatureSentinel int `mapstructure:"temperature_sentinel"`
	ExtremeTemperature  int `mapstructure:"extreme_temperature"`
}

// ChargingRules configures the charging check.
type ChargingRules struct {
	SOCThreshold int `mapstructure:"soc_threshold"`
}

// Validator classifies payloads. The zero value enables nothing; use
// NewValidator for the defaults.
type Validator struct {
	Status   StatusRules   `mapstructure:"status"`
	Charging ChargingRules `mapstructure:"charging"`
}

// NewValidator returns the default rules. The extreme temperature sentinel is
// off: some firmware reports -128 for a single missing sensor while the rest
// of the payload is real.
func NewValidator() *Validator {
	return &Validator{
		Status: StatusRules{
			ZeroOdometerAndRanges: true,
			NonPositiveOdometer:   true,
			InteriorTempSentinel:  true,
			ExteriorTempSentinel:  true,
			StatusThreshold:       DefaultStatusThreshold,
			TemperatureSentinel:   DefaultTemperatureSentinel,
			ExtremeTemperature:    DefaultExtremeTemperature,
		},
		Charging: ChargingRules{
			SOCThreshold: DefaultSOCThreshold,
		},
	}
}

// IsGenericStatus reports whether status is a placeholder.
func (v *Validator) IsGenericStatus(status *saic.StatusPayload) (bool, error) {
	reasons, err := v.StatusReasons(status)
	return len(reasons) > 0, err
}

// IsGenericCharging reports whether charging is a placeholder.
func (v *Validator) IsGenericCharging(charging *saic.ChargingPayload) (bool, error) {
	reasons, err := v.ChargingReasons(charging)
	return len(reasons) > 0, err
}

// StatusReasons returns the names of the status checks that fired.
func (v *Validator) StatusReasons(status *saic.StatusPayload) ([]string, error) {
	if status == nil {
		return nil, fmt.Errorf("status: nil payload: %w", ErrMalformedPayload)
	}
	b := status.Basic
	if b == nil {
		return nil, fmt.Errorf("status: missing basicVehicleStatus: %w", ErrMalformedPayload)
	}
	if b.Mileage == nil {
		return nil, fmt.Errorf("status: missing mileage: %w", ErrMalformedPayload)
	}

	r := v.Status
	var reasons []string

	if r.ZeroOdometerAndRanges &&
		*b.Mileage == r.StatusThreshold &&
		equals(b.FuelRange, r.StatusThreshold) &&
		equals(b.FuelRangeElec, r.StatusThreshold) {
		reasons = append(reasons, ReasonZeroOdometerAndRanges)
	}

	if r.NonPositiveOdometer && *b.Mileage <= 0 {
		reasons = append(reasons, ReasonNonPositiveOdometer)
	}

	if r.InteriorTempSentinel && equals(b.InteriorTemperature, r.TemperatureSentinel) {
		reasons = append(reasons, ReasonInteriorTemp)
	}

	if r.ExteriorTempSentinel && equals(b.ExteriorTemperature, r.TemperatureSentinel) {
		reasons = append(reasons, ReasonExteriorTemp)
	}

	if r.ExtremeTempSentinel &&
		(equals(b.InteriorTemperature, r.ExtremeTemperature) || equals(b.ExteriorTemperature, r.ExtremeTemperature)) {
		reasons = append(reasons, ReasonExtremeTemp)
	}

	return reasons, nil
}

// ChargingReasons returns the names of the charging checks that fired.
func (v *Validator) ChargingReasons(charging *saic.ChargingPayload) ([]string, error) {
	if charging == nil {
		return nil, fmt.Errorf("charging: nil payload: %w", ErrMalformedPayload)
	}
	m := charging.Mgmt
	if m == nil {
		return nil, fmt.Errorf("charging: missing chrgMgmtData: %w", ErrMalformedPayload)
	}

	if m.BmsPackSOCDsp != nil && *m.BmsPackSOCDsp > v.Charging.SOCThreshold {
		return []string{ReasonSOCOutOfRange}, nil
	}
	return nil, nil
}

// equals treats a missing field as not matching any sentinel.
func equals(field *int, want int) bool {
	return field != nil && *field == want
}
