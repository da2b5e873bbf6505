package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 8*time.Second, cfg.Moderation.ClassifierTimeout)
	assert.Equal(t, RewritePolicyDeliver, cfg.Moderation.RewritePolicy)
	assert.Equal(t, []string{"idiota", "burro", "estúpido", "imbecil", "retardado"}, cfg.Moderation.Denylist)
	assert.Equal(t, 100, cfg.Ledger.PointsPerLevel)
	assert.Equal(t, 5*time.Second, cfg.Moderation.ListCacheTTL)
	assert.True(t, cfg.Notifications.EmergencyBypassSuppression)
	assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, ClassifierGemini, cfg.Classifier.Provider)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("MODERATION_REWRITE_POLICY", " HOLD ")
	v.Set("MODERATION_CLASSIFIER_TIMEOUT", "not-a-duration")
	v.Set("NOTIFY_EMERGENCY_BYPASS_SUPPRESSION", false)
	v.Set("LEDGER_POINTS_PER_LEVEL", 0)
	v.Set("MODERATION_LIST_CACHE_TTL", "5s")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, RewritePolicyHold, cfg.Moderation.RewritePolicy)
	assert.Equal(t, 8*time.Second, cfg.Moderation.ClassifierTimeout)
	assert.False(t, cfg.Notifications.EmergencyBypassSuppression)
	assert.Equal(t, 100, cfg.Ledger.PointsPerLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestUnknownRewritePolicyFallsBackToDeliver(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("MODERATION_REWRITE_POLICY", "drop")

	assert.Equal(t, RewritePolicyDeliver, fromViper(v).Moderation.RewritePolicy)
}
