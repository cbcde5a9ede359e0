package saic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Client is the subset of the SAIC gateway the coordinator and the command
// path depend on. Implementations must be safe for concurrent use.
type Client interface {
	// Login establishes a session unless a valid one is already held. It
	// returns *AuthError when the gateway rejects the credentials.
	Login(ctx context.Context) error

	// ListVehicles returns every vehicle bound to the account.
	ListVehicles(ctx context.Context) ([]VehicleInfo, error)

	// GetStatus returns the latest vehicle status as reported by the gateway.
	GetStatus(ctx context.Context, vin string) (*StatusPayload, error)

	// GetChargingStatus returns the battery management and charging data.
	GetChargingStatus(ctx context.Context, vin string) (*ChargingPayload, error)

	// SendCommand issues a remote control command.
	SendCommand(ctx context.Context, vin string, cmd Command) error
}

// VehicleInfo is the static descriptor of a vehicle bound to the account.
type VehicleInfo struct {
	VIN           string       `json:"vin"`
	BrandName     string       `json:"brandName"`
	ModelName     string       `json:"modelName"`
	ModelYear     string       `json:"modelYear"`
	Series        string       `json:"series"`
	Configuration []ConfigItem `json:"vehicleModelConfiguration"`
}

// ConfigItem is one code/value pair of the vehicle model configuration.
type ConfigItem struct {
	Code  string `json:"itemCode"`
	Name  string `json:"itemName,omitempty"`
	Value string `json:"itemValue"`
}

// StatusPayload is the vehicle status response. Raw values are kept in the
// units the gateway reports; conversion happens in the model package.
type StatusPayload struct {
	Basic      *BasicVehicleStatus `json:"basicVehicleStatus"`
	GPS        *GPSPosition        `json:"gpsPosition,omitempty"`
	StatusTime int64               `json:"statusTime,omitempty"`
}

// BasicVehicleStatus holds the scalar status fields. Every field is optional.
type BasicVehicleStatus struct {
	PowerMode    *int `json:"powerMode,omitempty"`
	EngineStatus *int `json:"engineStatus,omitempty"`
	LockStatus   *int `json:"lockStatus,omitempty"`

	DriverDoor    *int `json:"driverDoor,omitempty"`
	PassengerDoor *int `json:"passengerDoor,omitempty"`
	RearLeftDoor  *int `json:"rearLeftDoor,omitempty"`
	RearRightDoor *int `json:"rearRightDoor,omitempty"`
	BootStatus    *int `json:"bootStatus,omitempty"`
	BonnetStatus  *int `json:"bonnetStatus,omitempty"`
	SunroofStatus *int `json:"sunroofStatus,omitempty"`

	RemoteClimateStatus     *int `json:"remoteClimateStatus,omitempty"`
	RearWindowHeatState     *int `json:"rmtHtdRrWndSt,omitempty"`
	FrontLeftSeatHeatLevel  *int `json:"frontLeftSeatHeatLevel,omitempty"`
	FrontRightSeatHeatLevel *int `json:"frontRightSeatHeatLevel,omitempty"`

	// Mileage and ranges are reported in tenths of a kilometre.
	Mileage       *int `json:"mileage,omitempty"`
	FuelRange     *int `json:"fuelRange,omitempty"`
	FuelRangeElec *int `json:"fuelRangeElec,omitempty"`
	FuelLevelPrc  *int `json:"fuelLevelPrc,omitempty"`

	InteriorTemperature *int `json:"interiorTemperature,omitempty"`
	ExteriorTemperature *int `json:"exteriorTemperature,omitempty"`
	BatteryVoltage      *int `json:"batteryVoltage,omitempty"`

	FrontLeftTyrePressure  *int `json:"frontLeftTyrePressure,omitempty"`
	FrontRightTyrePressure *int `json:"frontRightTyrePressure,omitempty"`
	RearLeftTyrePressure   *int `json:"rearLeftTyrePressure,omitempty"`
	RearRightTyrePressure  *int `json:"rearRightTyrePressure,omitempty"`

	// ExtendedData1 carries the displayed SOC on electric models.
	ExtendedData1 *int `json:"extendedData1,omitempty"`
}

// GPSPosition is the last known location fix.
type GPSPosition struct {
	GPSStatus *int      `json:"gpsStatus,omitempty"`
	WayPoint  *WayPoint `json:"wayPoint,omitempty"`
	Timestamp int64     `json:"timeStamp,omitempty"`
}

// WayPoint holds position, heading and speed.
type WayPoint struct {
	Position *Position `json:"position,omitempty"`
	Heading  *int      `json:"heading,omitempty"`
	Speed    *int      `json:"speed,omitempty"`
}

// Position is a coordinate in millionths of a degree.
type Position struct {
	Latitude  int `json:"latitude"`
	Longitude int `json:"longitude"`
	Altitude  int `json:"altitude"`
}

// ChargingPayload is the charging management response.
type ChargingPayload struct {
	Mgmt   *ChargeMgmtData  `json:"chrgMgmtData"`
	Charge *RvsChargeStatus `json:"rvsChargeStatus,omitempty"`
}

// ChargeMgmtData is the battery management system view of charging.
type ChargeMgmtData struct {
	BmsChrgSts               *int `json:"bmsChrgSts,omitempty"`
	BmsPackSOCDsp            *int `json:"bmsPackSOCDsp,omitempty"`
	BmsPackCrnt              *int `json:"bmsPackCrnt,omitempty"`
	BmsPackVol               *int `json:"bmsPackVol,omitempty"`
	BmsOnBdChrgTrgtSOCDspCmd *int `json:"bmsOnBdChrgTrgtSOCDspCmd,omitempty"`
	BmsAltngChrgCrntDspCmd   *int `json:"bmsAltngChrgCrntDspCmd,omitempty"`
	BmsEstdElecRng           *int `json:"bmsEstdElecRng,omitempty"`
	ChrgngRmnngTime          *int `json:"chrgngRmnngTime,omitempty"`
	ChrgngAddedElecRng       *int `json:"chrgngAddedElecRng,omitempty"`
	BmsPTCHeatResp           *int `json:"bmsPTCHeatResp,omitempty"`
}

// RvsChargeStatus is the remote vehicle service view of charging.
type RvsChargeStatus struct {
	Mileage                   *int `json:"mileage,omitempty"`
	ChargingDuration          *int `json:"chargingDuration,omitempty"`
	TotalBatteryCapacity      *int `json:"totalBatteryCapacity,omitempty"`
	ChargingGunState          *int `json:"chargingGunState,omitempty"`
	MileageSinceLastCharge    *int `json:"mileageSinceLastCharge,omitempty"`
	PowerUsageSinceLastCharge *int `json:"powerUsageSinceLastCharge,omitempty"`
	FuelRangeElec             *int `json:"fuelRangeElec,omitempty"`
}

// Session is an authenticated gateway session.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the session can still be used at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Token != "" && now.Add(time.Minute).Before(s.ExpiresAt)
}

// ErrNotAuthenticated is returned when a request needs a session and no
// credentials are configured to obtain one.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrNotFound is returned for unknown gateway resources and for VINs that are
// not bound to the account.
var ErrNotFound = errors.New("not found")

// AuthError is returned when the gateway rejects the account credentials.
// It is never retried by callers; the user has to fix the credentials.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// IsAuthError reports whether err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// APIError is a non-zero gateway envelope code.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Code, e.Message)
}

// SessionExpired reports whether the error means the session must be
// re-established before retrying.
func (e *APIError) SessionExpired() bool {
	if e.Code == 401 {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "invalid session") ||
		strings.Contains(msg, "token expired") ||
		strings.Contains(msg, "not logged in")
}
