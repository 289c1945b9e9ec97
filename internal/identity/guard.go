package identity

import (
	"strings"

	"github.com/vietanh2810/mc-economy/internal/domain"
)

// RequireHuman returns a violation when actorID is missing or matches the
// forbidden policy, and nil otherwise.
func RequireHuman(c Classifier, actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return domain.NewViolation(domain.ReasonMissingActor, "an actor identity is required")
	}
	if c.IsForbidden(actorID) {
		return domain.NewViolation(domain.ReasonForbiddenActor, "actor %q is not a human identity", actorID)
	}
	return nil
}
