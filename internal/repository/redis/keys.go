package redis

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "ticketticket:v1"

func KeyListing(id uuid.UUID) string {
	return fmt.Sprintf("%s:listing:%s", ns, id)
}

func KeyEvent(id uuid.UUID) string {
	return fmt.Sprintf("%s:event:%s", ns, id)
}

func KeyEventList() string {
	return ns + ":events"
}

func KeyUserProfile(id uuid.UUID) string {
	return fmt.Sprintf("%s:user:%s:profile", ns, id)
}

// KeyRateLimitPrefix is the limiter prefix for one scope, e.g. "messages".
func KeyRateLimitPrefix(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func KeyIdemListing(hostID uuid.UUID, idemKey string) string {
	return fmt.Sprintf("%s:idem:listings:%s:%s", ns, hostID, idemKey)
}

func ChannelConversation(id uuid.UUID) string {
	return fmt.Sprintf("%s:conversation:%s:messages", ns, id)
}
