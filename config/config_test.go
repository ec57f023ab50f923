package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresTossSecrets(t *testing.T) {
	t.Setenv("TOSS_SECRET_KEY", "")
	t.Setenv("TOSS_WEBHOOK_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOSS_SECRET_KEY", "sk_test_abc")
	t.Setenv("TOSS_WEBHOOK_SECRET", "whsec_abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(470000), cfg.Camp.FeeAmount)
	assert.Equal(t, 10*time.Minute, cfg.Camp.PendingTimeout)
	assert.Equal(t, "https://api.tosspayments.com", cfg.Toss.APIBaseURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TOSS_SECRET_KEY", "sk_test_abc")
	t.Setenv("TOSS_WEBHOOK_SECRET", "whsec_abc")
	t.Setenv("CAMP_FEE_AMOUNT", "50000")
	t.Setenv("PENDING_TIMEOUT_MINUTES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(50000), cfg.Camp.FeeAmount)
	assert.Equal(t, 5*time.Minute, cfg.Camp.PendingTimeout)
}
