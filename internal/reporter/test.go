package reporter

import "github.com/setevik/faultwatch/internal/fault"

// TestMessage creates a synthetic notification for checking transport connectivity.
func TestMessage(instance, to string) Message {
	return Message{
		To:       to,
		Subject:  "Test notification from faultwatch: " + instance,
		Body:     "This is a test notification to verify delivery.\nIf you see this, faultwatch is configured correctly.\n",
		Severity: fault.SevNotice,
		Kind:     KindTest,
	}
}
