package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewEscalationNotifier_DisabledWhenEmailOff(t *testing.T) {
	n := NewEscalationNotifier(zap.NewNop(), Config{Enabled: false, APIKey: "x", ToEmail: "ops@example.com"})
	assert.False(t, n.config.Enabled)
}

func TestNewEscalationNotifier_DisabledWhenAPIKeyMissing(t *testing.T) {
	n := NewEscalationNotifier(zap.NewNop(), Config{Enabled: true, ToEmail: "ops@example.com"})
	assert.False(t, n.config.Enabled)
}

func TestNewEscalationNotifier_DisabledWhenToEmailMissing(t *testing.T) {
	n := NewEscalationNotifier(zap.NewNop(), Config{Enabled: true, APIKey: "x"})
	assert.False(t, n.config.Enabled)
}

func TestNotifyEscalation_NoopWhenDisabled(t *testing.T) {
	n := NewEscalationNotifier(zap.NewNop(), Config{Enabled: false})
	err := n.NotifyEscalation(context.Background(), "S1", "policy_escalate", "eu-west1")
	assert.NoError(t, err)
}
