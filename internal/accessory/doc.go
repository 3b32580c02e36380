// Package accessory models one DSP-W215 as a smart-home outlet.
//
// An Outlet wraps an hnap client with the lifecycle a home automation bridge
// needs: it logs in once at start-up, records the plug's identity, and then
// serves power and temperature reads while caching the last known values.
//
//	client := hnap.NewClient(hnap.HostURL("192.168.0.20"), pin)
//	outlet := accessory.New("Desk lamp", client, logger)
//	if err := outlet.Bootstrap(ctx); err != nil {
//	    return err
//	}
//	on, err := outlet.On(ctx)
//
// When a state read exhausts its "ERROR" budget the outlet logs in again and
// retries the read once before reporting the failure.
package accessory
