package notifier

import (
	"context"
	"errors"

	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"
)

// MultiNotifier fans a transition out to every notifier; all are tried.
type MultiNotifier []out.DeliveryNotifier

func (m MultiNotifier) NotifyPhaseChanged(ctx context.Context, d domain.ActiveDelivery, t domain.Transition) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = append(errs, n.NotifyPhaseChanged(ctx, d, t))
	}
	return errors.Join(errs...)
}

type MultiAlerter []out.UserAlerter

func (m MultiAlerter) Alert(ctx context.Context, userID string, alert out.Alert) error {
	var errs []error
	for _, a := range m {
		if a == nil {
			continue
		}
		errs = append(errs, a.Alert(ctx, userID, alert))
	}
	return errors.Join(errs...)
}
