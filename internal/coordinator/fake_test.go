package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/pfrederiksen/saic-ls/internal/model"
	"github.com/pfrederiksen/saic-ls/internal/saic"
	"github.com/pfrederiksen/saic-ls/internal/tracker"
)

const testVIN = "LSJA24U66MG000001"

func intPtr(v int) *int { return &v }

// fakeClient is a scriptable saic.Client.
type fakeClient struct {
	mu sync.Mutex

	loginErr error
	vehicles []saic.VehicleInfo
	status   func() (*saic.StatusPayload, error)
	charging func() (*saic.ChargingPayload, error)
	delay    time.Duration

	statusCalls   int
	chargingCalls int
	statusTimes   []time.Time
	inflight      int
	maxInflight   int
	commands      []saic.Command
}

func newFakeClient(vehicleType string) *fakeClient {
	info := saic.VehicleInfo{VIN: testVIN, ModelName: "MG4", Series: "EH32 S"}
	switch vehicleType {
	case "BEV":
		info.Configuration = []saic.ConfigItem{{Code: "EV", Value: "1"}}
	case "ICE":
		info.ModelName = "MG ZS"
		info.Series = "ZS"
		info.Configuration = []saic.ConfigItem{{Code: "BType", Value: "0"}}
	}

	f := &fakeClient{vehicles: []saic.VehicleInfo{info}}
	f.setStatus(statusPayload(0, 1), nil)
	f.setCharging(chargingPayload(0, 805), nil)
	return f
}

func (f *fakeClient) setStatus(p *saic.StatusPayload, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = func() (*saic.StatusPayload, error) { return p, err }
}

func (f *fakeClient) setCharging(p *saic.ChargingPayload, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charging = func() (*saic.ChargingPayload, error) { return p, err }
}

func (f *fakeClient) calls() (status, charging int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls, f.chargingCalls
}

func (f *fakeClient) Login(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginErr
}

func (f *fakeClient) ListVehicles(ctx context.Context) ([]saic.VehicleInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]saic.VehicleInfo(nil), f.vehicles...), nil
}

func (f *fakeClient) GetStatus(ctx context.Context, vin string) (*saic.StatusPayload, error) {
	f.mu.Lock()
	f.statusCalls++
	f.statusTimes = append(f.statusTimes, time.Now())
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	fn, delay := f.status, f.delay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return fn()
}

func (f *fakeClient) GetChargingStatus(ctx context.Context, vin string) (*saic.ChargingPayload, error) {
	f.mu.Lock()
	f.chargingCalls++
	fn := f.charging
	f.mu.Unlock()
	return fn()
}

func (f *fakeClient) SendCommand(ctx context.Context, vin string, cmd saic.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return nil
}

func statusPayload(powerMode, lock int) *saic.StatusPayload {
	return &saic.StatusPayload{
		Basic: &saic.BasicVehicleStatus{
			PowerMode:           intPtr(powerMode),
			LockStatus:          intPtr(lock),
			DriverDoor:          intPtr(0),
			Mileage:             intPtr(123450),
			FuelRangeElec:       intPtr(3100),
			InteriorTemperature: intPtr(20),
			ExteriorTemperature: intPtr(15),
		},
	}
}

func genericStatus() *saic.StatusPayload {
	return &saic.StatusPayload{
		Basic: &saic.BasicVehicleStatus{
			PowerMode:     intPtr(0),
			Mileage:       intPtr(0),
			FuelRange:     intPtr(0),
			FuelRangeElec: intPtr(0),
		},
	}
}

func chargingPayload(state, soc int) *saic.ChargingPayload {
	return &saic.ChargingPayload{
		Mgmt: &saic.ChargeMgmtData{
			BmsChrgSts:    intPtr(state),
			BmsPackSOCDsp: intPtr(soc),
		},
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Retry = RetryPolicy{Limit: 3, Backoff: time.Millisecond}
	return opts
}

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	ts        map[string]tracker.Timestamps
	snapshots map[string]*model.VehicleSnapshot
	loadErr   error
}

func newMemStore() *memStore {
	return &memStore{
		ts:        make(map[string]tracker.Timestamps),
		snapshots: make(map[string]*model.VehicleSnapshot),
	}
}

func (s *memStore) LoadTimestamps(ctx context.Context, vin string) (tracker.Timestamps, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ts[vin], s.loadErr
}

func (s *memStore) SaveTimestamps(ctx context.Context, vin string, ts tracker.Timestamps) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ts[vin] = ts
	return nil
}

func (s *memStore) SaveSnapshot(ctx context.Context, snap *model.VehicleSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.VIN] = snap
	return nil
}
