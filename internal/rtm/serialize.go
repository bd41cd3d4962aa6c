package rtm

import (
	"context"
	"fmt"

	"github.com/danmuck/rtmctl/internal/orb"
)

// SerializeComponents puts every component onto the first component's
// execution context so they run one after another in list order.
// A failed add stops the walk without rollback: components before the
// failing one stay on the shared context and the rest keep their own.
func SerializeComponents(ctx context.Context, comps []*Component) error {
	if len(comps) == 0 {
		return nil
	}
	ec := comps[0].ec
	if ec == nil {
		return fmt.Errorf("%w: %s", ErrNoExecutionContext, comps[0].ref.ObjectID())
	}
	for _, c := range comps[1:] {
		rc, err := ec.AddComponent(ctx, c.ref)
		if err != nil {
			return fmt.Errorf("rtm: add %s to %s: %w", c.ref.ObjectID(), ec.ObjectID(), err)
		}
		if rc != orb.RTCOK {
			return fmt.Errorf("%w: add %s to %s returned %s", ErrLifecycle, c.ref.ObjectID(), ec.ObjectID(), rc)
		}
		c.ec = ec
	}
	return nil
}
