package telemetry

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
)

// StatsAdvertiser publishes the pipeline's presence over mDNS so a
// monitoring tool on the same network segment can discover it without a
// configured address, the same zero-config discovery role dnssd plays
// for device pairing elsewhere in the examples this project draws on.
type StatsAdvertiser struct {
	responder dnssd.Responder
	handle    dnssd.ServiceHandle
	cancel    context.CancelFunc
}

// StartStatsAdvertiser advertises a "_tetrasdr._tcp" service at port
// carrying txt as its TXT records. The records are fixed at the time of
// the call; later changes to the caller's counters are not re-advertised.
func StartStatsAdvertiser(ctx context.Context, instanceName string, port int, txt map[string]string) (*StatsAdvertiser, error) {
	cfg := dnssd.Config{
		Name: instanceName,
		Type: "_tetrasdr._tcp",
		Port: port,
		Text: txt,
	}
	service, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build mdns service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("telemetry: new mdns responder: %w", err)
	}
	handle, err := responder.Add(service)
	if err != nil {
		return nil, fmt.Errorf("telemetry: register mdns service: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		_ = responder.Respond(runCtx)
	}()

	return &StatsAdvertiser{responder: responder, handle: handle, cancel: cancel}, nil
}

// Stop withdraws the advertised service and stops the responder.
func (a *StatsAdvertiser) Stop() {
	a.cancel()
}
