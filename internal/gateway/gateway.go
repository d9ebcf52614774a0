// Package gateway bundles the remote capabilities the campaign core depends on.
package gateway

import (
	"errors"

	"insta-outreach/internal/core/ports"
)

// Gateway is passed explicitly into the orchestrator; nothing here is global.
type Gateway struct {
	Instagram ports.Instagram
	Brain     ports.Brain
	Pages     ports.PageFetcher
}

func (g Gateway) Validate() error {
	var errs []error
	if g.Instagram == nil {
		errs = append(errs, errors.New("gateway: instagram capability is required"))
	}
	if g.Brain == nil {
		errs = append(errs, errors.New("gateway: text generation capability is required"))
	}
	if g.Pages == nil {
		errs = append(errs, errors.New("gateway: page fetcher is required"))
	}
	return errors.Join(errs...)
}
