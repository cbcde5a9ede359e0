package saic

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const (
	vehicleListPath   = "vehicle/list"
	vehicleStatusPath = "vehicle/status"
	chargingPath      = "vehicle/charging/mgmtData"
)

type vehicleListResponse struct {
	VinList []VehicleInfo `json:"vinList"`
}

// ListVehicles retrieves the vehicles bound to the account.
func (c *HTTPClient) ListVehicles(ctx context.Context) ([]VehicleInfo, error) {
	var resp vehicleListResponse
	if err := c.call(ctx, http.MethodGet, vehicleListPath, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return resp.VinList, nil
}

// GetStatus retrieves the vehicle status. A response without data yields a
// nil payload and no error; the caller decides how to treat it.
func (c *HTTPClient) GetStatus(ctx context.Context, vin string) (*StatusPayload, error) {
	var resp *StatusPayload
	query := url.Values{"vin": {vin}}
	if err := c.call(ctx, http.MethodGet, vehicleStatusPath, query, nil, &resp); err != nil {
		return nil, fmt.Errorf("get vehicle status: %w", err)
	}
	return resp, nil
}

// GetChargingStatus retrieves the charging management data.
func (c *HTTPClient) GetChargingStatus(ctx context.Context, vin string) (*ChargingPayload, error) {
	var resp *ChargingPayload
	query := url.Values{"vin": {vin}}
	if err := c.call(ctx, http.MethodGet, chargingPath, query, nil, &resp); err != nil {
		return nil, fmt.Errorf("get charging status: %w", err)
	}
	return resp, nil
}
